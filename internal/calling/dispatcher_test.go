package calling

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"callpilot/internal/ats"
	"callpilot/internal/config"
	"callpilot/internal/interview"
	"callpilot/internal/taskqueue"
	"callpilot/internal/telephony"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryHistory marks an application interviewed once the engine accepted its call,
// the way the engine's interview callback does.
type memoryHistory struct {
	mu    sync.Mutex
	taken map[[3]int64]bool
	err   error
}

func (h *memoryHistory) AlreadyInterviewed(_ context.Context, org, cand, app int64) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.taken[[3]int64{org, cand, app}], h.err
}

func (h *memoryHistory) record(org, cand, app int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.taken == nil {
		h.taken = map[[3]int64]bool{}
	}
	h.taken[[3]int64{org, cand, app}] = true
}

type fakeEngine struct {
	calls   []CallRequest
	err     error
	history *memoryHistory
}

func (e *fakeEngine) InitiateCall(_ context.Context, req CallRequest) error {
	e.calls = append(e.calls, req)
	if e.err != nil {
		return e.err
	}
	if e.history != nil {
		e.history.record(req.OrganizationID, req.CandidateID, req.ApplicationID)
	}
	return nil
}

func sampleCall() Call {
	return Call{Request: CallRequest{
		ToPhoneNumber:   "+447700900123",
		FromPhoneNumber: "+441234567890",
		OrganizationID:  7,
		ApplicationID:   500,
		CandidateID:     900,
		JobTitle:        "Carer",
		JobID:           1,
		CandidateName:   "Jane Doe",
		InterviewType:   InterviewTypeGeneral,
		VoiceID:         "voice-1",
	}}
}

func TestDispatch_SecondDispatchIsNoOp(t *testing.T) {
	history := &memoryHistory{}
	engine := &fakeEngine{history: history}
	q := taskqueue.NewMemoryQueue()
	d := NewDispatcher(history, engine, q)
	ctx := context.Background()

	out, err := d.Dispatch(ctx, sampleCall())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, out)

	out, err = d.Dispatch(ctx, sampleCall())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)

	assert.Len(t, engine.calls, 1)
	updates := q.OfKind(taskqueue.KindApplicationStatus)
	require.Len(t, updates, 1)
	u, err := taskqueue.Decode[StatusUpdate](updates[0])
	require.NoError(t, err)
	assert.Equal(t, StatusUpdate{OrganizationID: 7, ApplicationID: 500}, u)
}

func TestDispatch_RetryBypassesHistory(t *testing.T) {
	history := &memoryHistory{}
	history.record(7, 900, 500)
	engine := &fakeEngine{}
	d := NewDispatcher(history, engine, taskqueue.NewMemoryQueue())

	call := sampleCall()
	call.IsRetry = true
	out, err := d.Dispatch(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, out)
	assert.Len(t, engine.calls, 1)
}

func TestDispatch_EngineFailureIsNotRetried(t *testing.T) {
	engine := &fakeEngine{err: &EngineError{Code: 502, Body: "bad gateway"}}
	q := taskqueue.NewMemoryQueue()
	d := NewDispatcher(&memoryHistory{}, engine, q)

	out, err := d.Dispatch(context.Background(), sampleCall())
	assert.Equal(t, OutcomeFailed, out)
	var eerr *EngineError
	assert.True(t, errors.As(err, &eerr))
	assert.Len(t, engine.calls, 1)
	assert.Empty(t, q.Enqueued)
}

func TestDispatch_StatusUpdateQueueFailureStillDispatched(t *testing.T) {
	q := taskqueue.NewMemoryQueue()
	q.FailWith = errors.New("redis down")
	d := NewDispatcher(&memoryHistory{}, &fakeEngine{}, q)

	out, err := d.Dispatch(context.Background(), sampleCall())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, out)
}

func TestScheduleAndHandleTask(t *testing.T) {
	q := taskqueue.NewMemoryQueue()
	call := sampleCall()
	call.Request.InterviewType = ""
	call.IsRetry = true

	task, err := Schedule(context.Background(), q, call, 240*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 240*time.Second, taskqueue.Delay(task))

	engine := &fakeEngine{}
	d := NewDispatcher(&memoryHistory{}, engine, taskqueue.NewMemoryQueue())
	require.NoError(t, d.HandleTask(context.Background(), task))
	require.Len(t, engine.calls, 1)
	assert.Equal(t, InterviewTypeGeneral, engine.calls[0].InterviewType)
	assert.Equal(t, []string{}, engine.calls[0].PrimaryQuestions)
}

func TestEngineClient_PostsInitiateCall(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		if got["candidate_id"] == float64(13) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewEngineClient(config.CallingConfig{BaseURL: srv.URL + "/", Timeout: time.Second}, srv.Client())
	req := sampleCall().Request
	req.JobDetails = ats.JobDetails{Location: "Leeds"}
	req.PrimaryQuestions = []string{"Q1"}
	req.CandidateEmail = "jane@example.com"
	require.NoError(t, c.InitiateCall(context.Background(), req))

	assert.Equal(t, "/initiate-call", path)
	for _, key := range []string{
		"to_phone_number", "from_phone_number", "organization_id", "application_id", "candidate_id",
		"job_title", "job_id", "job_details", "candidate_first_name", "interview_type", "primary_questions",
		"should_end_if_primary_question_failed", "welcome_message_audio_url", "welcome_text", "voice_id",
		"candidate_email",
	} {
		assert.Contains(t, got, key)
	}
	assert.Len(t, got, 16)
	assert.Equal(t, "Jane Doe", got["candidate_first_name"])
	assert.Equal(t, "Leeds", got["job_details"].(map[string]any)["location"])

	req.CandidateID = 13
	var eerr *EngineError
	require.True(t, errors.As(c.InitiateCall(context.Background(), req), &eerr))
	assert.Equal(t, http.StatusInternalServerError, eerr.Code)
}

type fakeConfigs struct {
	cfg interview.CallConfig
	err error
}

func (f fakeConfigs) Config(context.Context, int64) (interview.CallConfig, error) { return f.cfg, f.err }

type recordingWriter struct {
	updates [][2]int64
}

func (w *recordingWriter) UpdateApplicationStatus(_ context.Context, app, status int64) bool {
	w.updates = append(w.updates, [2]int64{app, status})
	return true
}

func TestStatusSyncer_DefaultsToStatusWhenPlaced(t *testing.T) {
	w := &recordingWriter{}
	var openedPlatform int64
	open := func(_ context.Context, platformID int64) (StatusWriter, error) {
		openedPlatform = platformID
		return w, nil
	}
	s := NewStatusSyncer(fakeConfigs{cfg: interview.CallConfig{PlatformID: 70, StatusWhenCallIsPlaced: 23}}, open)
	ctx := context.Background()

	require.NoError(t, s.Apply(ctx, StatusUpdate{OrganizationID: 7, ApplicationID: 500}))
	require.NoError(t, s.Apply(ctx, StatusUpdate{OrganizationID: 7, ApplicationID: 501, StatusID: 22}))
	assert.Equal(t, int64(70), openedPlatform)
	assert.Equal(t, [][2]int64{{500, 23}, {501, 22}}, w.updates)
}

func TestStatusSyncer_SkipsWithoutConfigOrStatus(t *testing.T) {
	w := &recordingWriter{}
	open := func(context.Context, int64) (StatusWriter, error) { return w, nil }
	ctx := context.Background()

	require.NoError(t, NewStatusSyncer(fakeConfigs{err: interview.ErrConfigNotFound}, open).Apply(ctx, StatusUpdate{OrganizationID: 7, ApplicationID: 1}))
	require.NoError(t, NewStatusSyncer(fakeConfigs{cfg: interview.CallConfig{PlatformID: 70}}, open).Apply(ctx, StatusUpdate{OrganizationID: 7, ApplicationID: 1}))
	assert.Empty(t, w.updates)
}

func TestFollowups_QueueTasks(t *testing.T) {
	q := taskqueue.NewMemoryQueue()
	f := NewFollowups(q)
	ctx := context.Background()

	require.NoError(t, f.ApplicationStatus(ctx, 7, 500, 22))
	require.NoError(t, f.SMS(ctx, 7, "+447700900123", "+441234567890", "upload here"))

	statuses := q.OfKind(taskqueue.KindApplicationStatus)
	require.Len(t, statuses, 1)
	u, _ := taskqueue.Decode[StatusUpdate](statuses[0])
	assert.Equal(t, StatusUpdate{OrganizationID: 7, ApplicationID: 500, StatusID: 22}, u)

	sms := q.OfKind(taskqueue.KindSMS)
	require.Len(t, sms, 1)
	m, _ := taskqueue.Decode[telephony.Message](sms[0])
	assert.Equal(t, "upload here", m.Body)
}
