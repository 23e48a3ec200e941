package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"callpilot/internal/ats"
	"callpilot/internal/calling"
	"callpilot/internal/greeting"
	"callpilot/internal/interview"
	"callpilot/internal/orgs"
	"callpilot/internal/subscription"
	"callpilot/internal/taskqueue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeSession struct {
	ads     []ats.JobAd
	apps    map[string][]ats.Application
	appsErr map[string]error
}

func (s *fakeSession) ListJobAds(context.Context) ([]ats.JobAd, error) { return s.ads, nil }

func (s *fakeSession) FetchJobDetails(_ context.Context, self string) ats.JobDetails {
	if self == "" {
		return ats.JobDetails{}
	}
	return ats.JobDetails{Summary: "details for " + self}
}

func (s *fakeSession) ListApplications(_ context.Context, url string) ([]ats.Application, error) {
	if err := s.appsErr[url]; err != nil {
		return nil, err
	}
	return s.apps[url], nil
}

type fakeSpeaker struct {
	scripts []string
	failFor string
}

func (f *fakeSpeaker) Generate(_ context.Context, script, voiceID string) (greeting.Audio, error) {
	f.scripts = append(f.scripts, script)
	if f.failFor != "" && script == greeting.WelcomeScript("Acme", f.failFor) {
		return greeting.Audio{}, &greeting.SpeechGenerationError{Cause: errors.New("quota exceeded")}
	}
	return greeting.Audio{URL: "https://media.example.com/" + voiceID + ".mp3", Script: script}, nil
}

func app(id int64, status int64, updated time.Time, phone string) ats.Application {
	return ats.Application{
		ApplicationID: id,
		StatusID:      status,
		UpdatedAt:     updated.Format(time.RFC3339),
		Candidate:     ats.Candidate{CandidateID: id * 10, FirstName: "Cand", LastName: "Idate", Email: "c@example.com", Phone: phone},
	}
}

type fixture struct {
	orch    *Orchestrator
	queue   *taskqueue.MemoryQueue
	speaker *fakeSpeaker
	session *fakeSession
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	dir := orgs.NewMemoryRepo()
	dir.PutOrganization(orgs.Organization{ID: 7, Name: "Acme"})
	dir.PutPlatform(orgs.Platform{ID: 70, OrganizationID: 7})

	repo := interview.NewMemoryRepo()
	repo.PutQuestion(interview.PrimaryQuestion{ID: 1, Question: "Right to work?", Status: interview.QuestionActive})
	svc := interview.NewService(repo, dir, nil)
	_, err := svc.CreateConfig(ctx, 7, interview.ConfigInput{
		PlatformID:                     70,
		FromNumber:                     "+441234567890",
		EndCallIfPrimaryAnswerNegative: true,
		ApplicationStatusForCalling:    11,
		JobAdStatusForCalling:          "Current",
		CallingTimeAfterStatusUpdate:   30,
		StatusForUnsuccessfulCall:      21,
		StatusForSuccessfulCall:        22,
		VoiceID:                        "voice-1",
		QuestionIDs:                    []int64{1},
	})
	require.NoError(t, err)

	old := now.Add(-2 * time.Hour)
	sess := &fakeSession{
		ads: []ats.JobAd{
			{AdID: 1, Title: "Carer", State: "Current", Links: ats.Links{Self: "/jobads/1", Applications: "/jobads/1/applications"}},
			{AdID: 2, Title: "Nurse", State: "Expired", Links: ats.Links{Applications: "/jobads/2/applications"}},
			{AdID: 3, Title: "Driver", State: "Current", Links: ats.Links{Self: "/jobads/3", Applications: "/jobads/3/applications"}},
			{AdID: 4, Title: "Cook", State: "Current", Links: ats.Links{Applications: "/jobads/4/applications"}},
			{AdID: 5, Title: "Porter", State: "Current"},
		},
		apps: map[string][]ats.Application{
			"/jobads/1/applications": {
				app(100, 11, old, "+447700900100"),
				app(101, 11, now.Add(-10*time.Minute), "+447700900101"),
				app(102, 99, old, "+447700900102"),
				app(103, 11, old, ""),
				app(104, 11, old, "+447700900104"),
			},
			"/jobads/2/applications": {app(200, 11, old, "+447700900200")},
			"/jobads/3/applications": {app(300, 11, old, "+447700900300")},
			"/jobads/4/applications": {app(400, 11, old, "+447700900400")},
		},
		appsErr: map[string]error{},
	}

	q := taskqueue.NewMemoryQueue()
	speaker := &fakeSpeaker{}
	subs := subscription.NewService(subscription.NewMemoryRepo())
	open := func(_ context.Context, platformID int64) (Session, error) {
		require.Equal(t, int64(70), platformID)
		return sess, nil
	}
	orch := NewOrchestrator(svc, dir, open, speaker, q, subs)
	orch.clock = func() time.Time { return now }
	return fixture{orch: orch, queue: q, speaker: speaker, session: sess}
}

func scheduledCalls(t *testing.T, q *taskqueue.MemoryQueue) ([]calling.Call, []time.Duration) {
	t.Helper()
	var calls []calling.Call
	var delays []time.Duration
	for _, task := range q.OfKind(taskqueue.KindInterviewCall) {
		c, err := taskqueue.Decode[calling.Call](task)
		require.NoError(t, err)
		calls = append(calls, c)
		delays = append(delays, taskqueue.Delay(task))
	}
	return calls, delays
}

func TestBulkInterviewCalls_StaggersEligibleCandidates(t *testing.T) {
	fx := newFixture(t)

	sum, err := fx.orch.BulkInterviewCalls(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.JobAds)
	assert.Equal(t, 4, sum.Eligible)
	assert.Equal(t, 4, sum.Scheduled)
	assert.Equal(t, []SkippedJobAd{{AdID: 5, Title: "Porter", Reason: reasonNoApplicationsLink}}, sum.Skipped)

	calls, delays := scheduledCalls(t, fx.queue)
	require.Len(t, calls, 4)
	assert.Equal(t, []time.Duration{0, 120 * time.Second, 240 * time.Second, 360 * time.Second}, delays)

	var apps []int64
	for _, c := range calls {
		apps = append(apps, c.Request.ApplicationID)
	}
	assert.Equal(t, []int64{100, 104, 300, 400}, apps)

	first := calls[0].Request
	assert.Equal(t, "+447700900100", first.ToPhoneNumber)
	assert.Equal(t, "+441234567890", first.FromPhoneNumber)
	assert.Equal(t, "Cand Idate", first.CandidateName)
	assert.Equal(t, int64(1), first.JobID)
	assert.Equal(t, []string{"Right to work?"}, first.PrimaryQuestions)
	assert.True(t, first.EndOnNegativeAnswer)
	assert.Equal(t, greeting.WelcomeScript("Acme", "Carer"), first.WelcomeText)
	assert.Equal(t, "details for /jobads/1", first.JobDetails.Summary)
	assert.Equal(t, "", calls[3].Request.JobDetails.Summary, "no self link")
	assert.False(t, calls[0].IsRetry)

	assert.Len(t, fx.speaker.scripts, 3, "one greeting per job ad with candidates")
	assert.Equal(t, calls[0].Request.WelcomeAudioURL, calls[1].Request.WelcomeAudioURL)
}

func TestBulkInterviewCalls_GreetingFailureSkipsJobAd(t *testing.T) {
	fx := newFixture(t)
	fx.speaker.failFor = "Carer"
	fx.session.appsErr["/jobads/3/applications"] = errors.New("ats 500")

	sum, err := fx.orch.BulkInterviewCalls(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Scheduled)
	assert.ElementsMatch(t, []SkippedJobAd{
		{AdID: 1, Title: "Carer", Reason: reasonGreeting},
		{AdID: 3, Title: "Driver", Reason: reasonApplications},
		{AdID: 5, Title: "Porter", Reason: reasonNoApplicationsLink},
	}, sum.Skipped)

	calls, delays := scheduledCalls(t, fx.queue)
	require.Len(t, calls, 1)
	assert.Equal(t, int64(400), calls[0].Request.ApplicationID)
	assert.Equal(t, []time.Duration{0}, delays)
}

func TestBulkInterviewCalls_MissingConfigIsNoOp(t *testing.T) {
	fx := newFixture(t)
	sum, err := fx.orch.BulkInterviewCalls(context.Background(), 8)
	require.NoError(t, err)
	assert.True(t, sum.ConfigMissing)
	assert.Empty(t, fx.queue.Enqueued)
}

func TestBulkInterviewCalls_QueueFailureCounted(t *testing.T) {
	fx := newFixture(t)
	fx.queue.FailWith = errors.New("redis down")
	sum, err := fx.orch.BulkInterviewCalls(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Failed)
	assert.Equal(t, 0, sum.Scheduled)
}

func activeCall(org int64, limit int, status string, feature subscription.FeatureType) subscription.Subscription {
	return subscription.Subscription{
		OrganizationID: org,
		AvailableLimit: limit,
		Status:         status,
		PlanFeature:    subscription.PlanFeature{Feature: subscription.Feature{Type: feature}},
	}
}

func TestInitiateAll_QueuesEntitledOrganizations(t *testing.T) {
	fx := newFixture(t)
	fx.orch.subs = subscription.NewService(subscription.NewMemoryRepo(
		activeCall(7, 10, subscription.StatusActive, subscription.FeatureAICall),
		activeCall(8, 0, subscription.StatusActive, subscription.FeatureAICall),
		activeCall(9, 5, subscription.StatusHidden, subscription.FeatureAICall),
		activeCall(10, 5, subscription.StatusActive, subscription.FeatureAISMS),
		activeCall(11, 1, subscription.StatusActive, subscription.FeatureAICall),
	))

	n, err := fx.orch.InitiateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var orgIDs []int64
	for _, task := range fx.queue.OfKind(taskqueue.KindCampaignBulk) {
		req, err := taskqueue.Decode[BulkRequest](task)
		require.NoError(t, err)
		orgIDs = append(orgIDs, req.OrganizationID)
		assert.Equal(t, time.Duration(0), taskqueue.Delay(task))
	}
	assert.Equal(t, []int64{7, 11}, orgIDs)
}

func TestHandleTask_RunsBulk(t *testing.T) {
	fx := newFixture(t)
	task, err := taskqueue.NewMemoryQueue().Enqueue(context.Background(), taskqueue.KindCampaignBulk, BulkRequest{OrganizationID: 7}, 0)
	require.NoError(t, err)
	require.NoError(t, fx.orch.HandleTask(context.Background(), task))
	assert.Len(t, fx.queue.OfKind(taskqueue.KindInterviewCall), 4)
}

type onceLocker struct{ taken bool }

func (l *onceLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.taken {
		return nil, false, nil
	}
	l.taken = true
	return func(context.Context) error { return nil }, true, nil
}

func TestScheduler_TickRunsOncePerLease(t *testing.T) {
	fx := newFixture(t)
	fx.orch.subs = subscription.NewService(subscription.NewMemoryRepo(activeCall(7, 1, subscription.StatusActive, subscription.FeatureAICall)))
	s := NewScheduler(fx.orch, &onceLocker{}, nil)

	assert.True(t, s.Tick(context.Background(), time.Minute))
	assert.False(t, s.Tick(context.Background(), time.Minute))
	assert.Len(t, fx.queue.OfKind(taskqueue.KindCampaignBulk), 1)
}
