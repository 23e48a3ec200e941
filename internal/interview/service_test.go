package interview

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"callpilot/internal/orgs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusCall struct{ org, app, status int64 }

type smsCall struct {
	org            int64
	to, from, body string
}

type fakeFollowups struct {
	statuses []statusCall
	sms      []smsCall
	err      error
}

func (f *fakeFollowups) ApplicationStatus(_ context.Context, org, app, status int64) error {
	f.statuses = append(f.statuses, statusCall{org, app, status})
	return f.err
}

func (f *fakeFollowups) SMS(_ context.Context, org int64, to, from, body string) error {
	f.sms = append(f.sms, smsCall{org, to, from, body})
	return f.err
}

func ptr(v int64) *int64 { return &v }

type fixture struct {
	svc       *Service
	repo      *MemoryRepo
	dir       *orgs.MemoryRepo
	followups *fakeFollowups
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := NewMemoryRepo()
	dir := orgs.NewMemoryRepo()
	dir.PutOrganization(orgs.Organization{ID: 7, Name: "Acme", Status: orgs.StatusActive})
	dir.PutOrganization(orgs.Organization{ID: 8, Name: "Other", Status: orgs.StatusActive})
	dir.PutPlatform(orgs.Platform{ID: 70, OrganizationID: 7, Platform: "jobadder"})
	dir.PutPlatform(orgs.Platform{ID: 80, OrganizationID: 8, Platform: "jobadder"})
	repo.PutQuestion(PrimaryQuestion{ID: 1, Question: "Do you have the right to work in the UK?", Status: QuestionActive})
	repo.PutQuestion(PrimaryQuestion{ID: 2, Question: "Can you start within a month?", Status: QuestionActive})
	repo.PutQuestion(PrimaryQuestion{ID: 3, Question: "Retired question", Status: QuestionHidden})
	f := &fakeFollowups{}
	return fixture{svc: NewService(repo, dir, f), repo: repo, dir: dir, followups: f}
}

func validConfig() ConfigInput {
	return ConfigInput{
		PlatformID:                   70,
		FromNumber:                   "+441234567890",
		ApplicationStatusForCalling:  11,
		JobAdStatusForCalling:        "Current",
		CallingTimeAfterStatusUpdate: 30,
		StatusForUnsuccessfulCall:    21,
		StatusForSuccessfulCall:      22,
		StatusWhenCallIsPlaced:       23,
		VoiceID:                      "voice-1",
		SendDocumentUploadLink:       true,
		DocumentUploadLink:           "https://docs.example.com/upload",
		QuestionIDs:                  []int64{2, 1},
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Fields
}

func TestCreateConfig_KeepsQuestionOrder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cfg, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.OrganizationID)
	assert.Equal(t, []string{"Can you start within a month?", "Do you have the right to work in the UK?"}, cfg.QuestionTexts())

	_, err = fx.svc.CreateConfig(ctx, 7, validConfig())
	assert.Equal(t, "Call configuration already exists.", fieldErrors(t, err)["details"])
}

func TestCreateConfig_Validation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	in := validConfig()
	in.PlatformID = 80
	in.FromNumber = " "
	in.DocumentUploadLink = ""
	in.QuestionIDs = []int64{1, 99}
	fields := fieldErrors(t, func() error { _, err := fx.svc.CreateConfig(ctx, 7, in); return err }())

	assert.Equal(t, "Invalid platform ID", fields["platform_id"])
	assert.Contains(t, fields, "from_number")
	assert.Contains(t, fields, "document_upload_link")
	assert.Equal(t, "Some question IDs are invalid.", fields["primary_question_ids"])

	_, err := fx.svc.Config(ctx, 7)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestUpdateConfig_NilQuestionsKeepLinks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)

	in := validConfig()
	in.QuestionIDs = nil
	in.FromNumber = "+449999999999"
	cfg, err := fx.svc.UpdateConfig(ctx, 7, in)
	require.NoError(t, err)
	assert.Equal(t, "+449999999999", cfg.FromNumber)
	assert.Len(t, cfg.Questions, 2)

	in.QuestionIDs = []int64{}
	cfg, err = fx.svc.UpdateConfig(ctx, 7, in)
	require.NoError(t, err)
	assert.Empty(t, cfg.Questions)
}

func TestDeleteConfig(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteConfig(ctx, 7))
	assert.ErrorIs(t, fx.svc.DeleteConfig(ctx, 7), ErrConfigNotFound)

	qs, err := fx.svc.ActiveQuestions(ctx)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestCreate_RequiresOrganizationAndConfig(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, CreateInput{OrganizationID: 404})
	assert.Equal(t, "No organization found with this given ID.", fieldErrors(t, err)["organization_id"])

	_, err = fx.svc.Create(ctx, CreateInput{OrganizationID: 7})
	assert.Equal(t, "No config found for this organization.", fieldErrors(t, err)["details"])
}

func TestCreate_SuccessfulSchedulesStatusAndSMS(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)

	iv, err := fx.svc.Create(ctx, CreateInput{
		OrganizationID: 7,
		ApplicationID:  ptr(500),
		CandidateID:    ptr(900),
		CandidatePhone: "+447700900123",
		AIDecision:     DecisionSuccessful,
		CallDuration:   "95",
	})
	require.NoError(t, err)
	assert.Equal(t, TypeAICall, iv.Type)
	assert.Equal(t, StatusCompleted, iv.Status)

	assert.Equal(t, []statusCall{{7, 500, 22}}, fx.followups.statuses)
	require.Len(t, fx.followups.sms, 1)
	assert.Equal(t, smsCall{7, "+447700900123", "+441234567890", DocumentLinkMessage("https://docs.example.com/upload")}, fx.followups.sms[0])
}

func TestCreate_UnsuccessfulOnlyMovesStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)

	_, err = fx.svc.Create(ctx, CreateInput{OrganizationID: 7, ApplicationID: ptr(501), CandidatePhone: "+447700900123", AIDecision: DecisionUnsuccessful})
	require.NoError(t, err)
	assert.Equal(t, []statusCall{{7, 501, 21}}, fx.followups.statuses)
	assert.Empty(t, fx.followups.sms)
}

func TestCreate_NoApplicationNoFollowups(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)

	_, err = fx.svc.Create(ctx, CreateInput{OrganizationID: 7, AIDecision: DecisionSuccessful, CandidatePhone: "+447700900123"})
	require.NoError(t, err)
	assert.Empty(t, fx.followups.statuses)
	assert.Empty(t, fx.followups.sms)
}

func TestCreate_FollowupFailureKeepsInterview(t *testing.T) {
	fx := newFixture(t)
	fx.followups.err = errors.New("queue down")
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)

	iv, err := fx.svc.Create(ctx, CreateInput{OrganizationID: 7, ApplicationID: ptr(502), AIDecision: DecisionUserDisconnect})
	require.NoError(t, err)
	_, err = fx.svc.Get(ctx, 7, iv.ID)
	assert.NoError(t, err)
}

func TestCreateInput_DurationAcceptsNumber(t *testing.T) {
	var in CreateInput
	require.NoError(t, json.Unmarshal([]byte(`{"organization_id":7,"call_duration":95}`), &in))
	assert.Equal(t, FlexString("95"), in.CallDuration)
	require.NoError(t, json.Unmarshal([]byte(`{"call_duration":"1:35"}`), &in))
	assert.Equal(t, FlexString("1:35"), in.CallDuration)
}

func conversationFor(interviewID int64, text string) ConversationInput {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return ConversationInput{
		CallSID:        "CA123",
		ApplicationID:  500,
		InterviewID:    interviewID,
		OrganizationID: 7,
		CandidateID:    900,
		JobID:          42,
		Text:           text,
		Messages:       json.RawMessage(`[{"role":"assistant","content":"Hello"}]`),
		MessageCount:   1,
		StartedAt:      start,
		EndedAt:        start.Add(2 * time.Minute),
		CandidateName:  "Jane Doe",
		CandidateEmail: "jane@example.com",
		CandidatePhone: "+447700900123",
	}
}

func TestSaveConversation_UpsertsByCallSID(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)
	iv, err := fx.svc.Create(ctx, CreateInput{OrganizationID: 7, ApplicationID: ptr(500), CandidateID: ptr(900), AIDecision: DecisionSuccessful})
	require.NoError(t, err)

	first, created, err := fx.svc.SaveConversation(ctx, conversationFor(iv.ID, "first"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := fx.svc.SaveConversation(ctx, conversationFor(iv.ID, "second"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	got, err := fx.svc.Conversation(ctx, 7, "CA123")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Text)

	_, err = fx.svc.Conversation(ctx, 8, "CA123")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := fx.svc.List(ctx, ListFilter{OrganizationID: 7})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Conversation)
	assert.Equal(t, "second", list[0].Conversation.Text)
}

func TestSaveConversation_Validation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, _, err := fx.svc.SaveConversation(ctx, ConversationInput{CallSID: "CA1"})
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "interview_id")
	assert.Contains(t, fields, "conversation_json")

	_, _, err = fx.svc.SaveConversation(ctx, conversationFor(12345, "x"))
	assert.Equal(t, "No interview found for this organization.", fieldErrors(t, err)["interview_id"])
}

func TestSaveConversation_CallSIDStaysWithItsOrganization(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)
	other := validConfig()
	other.PlatformID = 80
	_, err = fx.svc.CreateConfig(ctx, 8, other)
	require.NoError(t, err)

	mine, err := fx.svc.Create(ctx, CreateInput{OrganizationID: 7, ApplicationID: ptr(500), CandidateID: ptr(900), AIDecision: DecisionSuccessful})
	require.NoError(t, err)
	theirs, err := fx.svc.Create(ctx, CreateInput{OrganizationID: 8, ApplicationID: ptr(600), CandidateID: ptr(901), AIDecision: DecisionSuccessful})
	require.NoError(t, err)

	_, _, err = fx.svc.SaveConversation(ctx, conversationFor(mine.ID, "mine"))
	require.NoError(t, err)

	hijack := conversationFor(theirs.ID, "theirs")
	hijack.OrganizationID = 8
	_, _, err = fx.svc.SaveConversation(ctx, hijack)
	assert.Equal(t, "This call is recorded for another organization.", fieldErrors(t, err)["call_sid"])

	got, err := fx.svc.Conversation(ctx, 7, "CA123")
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Text)
	assert.Equal(t, mine.ID, got.InterviewID)
}

func TestDisconnected_FiltersByDecisionAndJob(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)

	for _, in := range []CreateInput{
		{OrganizationID: 7, JobID: ptr(1), AIDecision: DecisionUserDisconnect},
		{OrganizationID: 7, JobID: ptr(2), AIDecision: DecisionNetworkDisconnect},
		{OrganizationID: 7, JobID: ptr(1), AIDecision: DecisionSuccessful},
	} {
		_, err := fx.svc.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := fx.svc.Disconnected(ctx, 7, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	job1, err := fx.svc.Disconnected(ctx, 7, ptr(1), 10)
	require.NoError(t, err)
	require.Len(t, job1, 1)
	assert.Equal(t, DecisionUserDisconnect, job1[0].AIDecision)

	other, err := fx.svc.Disconnected(ctx, 8, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAlreadyInterviewed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.CreateConfig(ctx, 7, validConfig())
	require.NoError(t, err)

	ok, err := fx.svc.AlreadyInterviewed(ctx, 7, 900, 500)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fx.svc.Create(ctx, CreateInput{OrganizationID: 7, CandidateID: ptr(900), ApplicationID: ptr(500), AIDecision: DecisionUnsuccessful})
	require.NoError(t, err)

	ok, err = fx.svc.AlreadyInterviewed(ctx, 7, 900, 500)
	require.NoError(t, err)
	assert.True(t, ok)
}
