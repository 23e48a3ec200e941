package interview

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"callpilot/pkg/utils"
)

// Repository is the persistence contract for interviews, transcripts and call configuration.
// Every read is scoped by organization.
type Repository interface {
	CreateInterview(ctx context.Context, iv Interview) (Interview, error)
	GetInterview(ctx context.Context, organizationID, id int64) (Interview, error)
	ListInterviews(ctx context.Context, f ListFilter) ([]Interview, error)
	InterviewExists(ctx context.Context, organizationID, candidateID, applicationID int64) (bool, error)

	// UpsertConversation inserts or overwrites by call SID; created reports which happened.
	UpsertConversation(ctx context.Context, c Conversation) (conv Conversation, created bool, err error)
	GetConversation(ctx context.Context, organizationID int64, callSID string) (Conversation, error)
	ConversationsByInterview(ctx context.Context, organizationID int64, interviewIDs []int64) (map[int64]Conversation, error)

	GetConfig(ctx context.Context, organizationID int64) (CallConfig, error)
	CreateConfig(ctx context.Context, c CallConfig, questionIDs []int64) (CallConfig, error)
	UpdateConfig(ctx context.Context, c CallConfig, questionIDs []int64) (CallConfig, error)
	DeleteConfig(ctx context.Context, organizationID int64) error

	QuestionsByIDs(ctx context.Context, ids []int64) ([]PrimaryQuestion, error)
	ListQuestions(ctx context.Context, status string) ([]PrimaryQuestion, error)
}

type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const interviewColumns = `id, organization_id, application_id, candidate_id, candidate_name, candidate_email,
       candidate_phone, job_id, job_title, job_details, interview_status, ai_decision, started_at, ended_at,
       call_sid, call_duration, call_status, disconnection_reason, from_number, type, status, created_at, updated_at`

type scanner interface{ Scan(...any) error }

func scanInterview(row scanner) (Interview, error) {
	var iv Interview
	var app, cand, job sql.NullInt64
	var details []byte
	var started, ended sql.NullTime
	if err := row.Scan(
		&iv.ID,
		&iv.OrganizationID,
		&app,
		&cand,
		&iv.CandidateName,
		&iv.CandidateEmail,
		&iv.CandidatePhone,
		&job,
		&iv.JobTitle,
		&details,
		&iv.InterviewStatus,
		&iv.AIDecision,
		&started,
		&ended,
		&iv.CallSID,
		&iv.CallDuration,
		&iv.CallStatus,
		&iv.DisconnectionReason,
		&iv.FromNumber,
		&iv.Type,
		&iv.Status,
		&iv.CreatedAt,
		&iv.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Interview{}, ErrNotFound
		}
		return Interview{}, err
	}
	iv.ApplicationID = nullInt(app)
	iv.CandidateID = nullInt(cand)
	iv.JobID = nullInt(job)
	if len(details) > 0 {
		iv.JobDetails = json.RawMessage(details)
	}
	iv.StartedAt = nullTime(started)
	iv.EndedAt = nullTime(ended)
	return iv, nil
}

func (r *PostgresRepo) CreateInterview(ctx context.Context, iv Interview) (Interview, error) {
	q := `
INSERT INTO interviews (
  organization_id, application_id, candidate_id, candidate_name, candidate_email, candidate_phone,
  job_id, job_title, job_details, interview_status, ai_decision, started_at, ended_at, call_sid,
  call_duration, call_status, disconnection_reason, from_number, type, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$21
)
RETURNING ` + interviewColumns
	now := r.clock().UTC()
	return scanInterview(r.db.QueryRowContext(ctx, q,
		iv.OrganizationID,
		iv.ApplicationID,
		iv.CandidateID,
		iv.CandidateName,
		iv.CandidateEmail,
		iv.CandidatePhone,
		iv.JobID,
		iv.JobTitle,
		jsonArg(iv.JobDetails),
		iv.InterviewStatus,
		iv.AIDecision,
		iv.StartedAt,
		iv.EndedAt,
		iv.CallSID,
		iv.CallDuration,
		iv.CallStatus,
		iv.DisconnectionReason,
		iv.FromNumber,
		string(iv.Type),
		string(iv.Status),
		now,
	))
}

func (r *PostgresRepo) GetInterview(ctx context.Context, organizationID, id int64) (Interview, error) {
	q := `SELECT ` + interviewColumns + ` FROM interviews WHERE organization_id = $1 AND id = $2`
	return scanInterview(r.db.QueryRowContext(ctx, q, organizationID, id))
}

func (r *PostgresRepo) ListInterviews(ctx context.Context, f ListFilter) ([]Interview, error) {
	var b strings.Builder
	args := []any{f.OrganizationID}
	b.WriteString(`SELECT ` + interviewColumns + ` FROM interviews WHERE organization_id = $1`)
	if f.JobID != nil {
		args = append(args, *f.JobID)
		b.WriteString(` AND job_id = $` + strconv.Itoa(len(args)))
	}
	if len(f.AIDecisions) > 0 {
		args = append(args, f.AIDecisions)
		b.WriteString(` AND ai_decision = ANY($` + strconv.Itoa(len(args)) + `)`)
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		b.WriteString(` AND created_at >= $` + strconv.Itoa(len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		b.WriteString(` AND created_at < $` + strconv.Itoa(len(args)))
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC`)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) InterviewExists(ctx context.Context, organizationID, candidateID, applicationID int64) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM interviews
  WHERE organization_id = $1 AND candidate_id = $2 AND application_id = $3
)
`
	var ok bool
	err := r.db.QueryRowContext(ctx, q, organizationID, candidateID, applicationID).Scan(&ok)
	return ok, err
}

const conversationColumns = `id, organization_id, interview_id, call_sid, application_id, candidate_id,
       candidate_name, candidate_email, candidate_phone, job_id, conversation_text, conversation_json,
       message_count, started_at, ended_at, created_at, updated_at`

func scanConversation(row scanner, extra ...any) (Conversation, error) {
	var c Conversation
	var msgs []byte
	dest := []any{
		&c.ID,
		&c.OrganizationID,
		&c.InterviewID,
		&c.CallSID,
		&c.ApplicationID,
		&c.CandidateID,
		&c.CandidateName,
		&c.CandidateEmail,
		&c.CandidatePhone,
		&c.JobID,
		&c.Text,
		&msgs,
		&c.MessageCount,
		&c.StartedAt,
		&c.EndedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	c.Messages = json.RawMessage(msgs)
	return c, nil
}

func (r *PostgresRepo) UpsertConversation(ctx context.Context, c Conversation) (Conversation, bool, error) {
	q := `
INSERT INTO interview_conversations (
  organization_id, interview_id, call_sid, application_id, candidate_id, candidate_name, candidate_email,
  candidate_phone, job_id, conversation_text, conversation_json, message_count, started_at, ended_at,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13,$14,$15,$15
)
ON CONFLICT (call_sid) DO UPDATE SET
  interview_id = EXCLUDED.interview_id,
  application_id = EXCLUDED.application_id,
  candidate_id = EXCLUDED.candidate_id,
  candidate_name = EXCLUDED.candidate_name,
  candidate_email = EXCLUDED.candidate_email,
  candidate_phone = EXCLUDED.candidate_phone,
  job_id = EXCLUDED.job_id,
  conversation_text = EXCLUDED.conversation_text,
  conversation_json = EXCLUDED.conversation_json,
  message_count = EXCLUDED.message_count,
  started_at = EXCLUDED.started_at,
  ended_at = EXCLUDED.ended_at,
  updated_at = EXCLUDED.updated_at
WHERE interview_conversations.organization_id = EXCLUDED.organization_id
RETURNING ` + conversationColumns + `, (xmax = 0) AS created`
	var created bool
	out, err := scanConversation(r.db.QueryRowContext(ctx, q,
		c.OrganizationID,
		c.InterviewID,
		c.CallSID,
		c.ApplicationID,
		c.CandidateID,
		c.CandidateName,
		c.CandidateEmail,
		c.CandidatePhone,
		c.JobID,
		c.Text,
		jsonArg(c.Messages),
		c.MessageCount,
		c.StartedAt,
		c.EndedAt,
		r.clock().UTC(),
	), &created)
	switch {
	case utils.IsForeignKeyViolation(err):
		return Conversation{}, false, ErrNotFound
	case errors.Is(err, ErrNotFound):
		// The conflict WHERE filtered the row out: the SID is another organization's.
		return Conversation{}, false, ErrCallSIDTaken
	}
	return out, created, err
}

func (r *PostgresRepo) GetConversation(ctx context.Context, organizationID int64, callSID string) (Conversation, error) {
	q := `SELECT ` + conversationColumns + ` FROM interview_conversations WHERE organization_id = $1 AND call_sid = $2`
	return scanConversation(r.db.QueryRowContext(ctx, q, organizationID, callSID))
}

func (r *PostgresRepo) ConversationsByInterview(ctx context.Context, organizationID int64, interviewIDs []int64) (map[int64]Conversation, error) {
	out := map[int64]Conversation{}
	if len(interviewIDs) == 0 {
		return out, nil
	}
	q := `
SELECT DISTINCT ON (interview_id) ` + conversationColumns + `
FROM interview_conversations
WHERE organization_id = $1 AND interview_id = ANY($2)
ORDER BY interview_id, created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, organizationID, interviewIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out[c.InterviewID] = c
	}
	return out, rows.Err()
}

const configColumns = `id, organization_id, platform_id, from_number, end_call_if_primary_answer_negative,
       application_status_for_calling, jobad_status_for_calling, calling_time_after_status_update,
       status_for_unsuccessful_call, status_for_successful_call, status_when_call_is_placed, voice_id,
       sent_document_upload_link, document_upload_link, created_at, updated_at`

func scanConfig(row scanner) (CallConfig, error) {
	var c CallConfig
	if err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.PlatformID,
		&c.FromNumber,
		&c.EndCallIfPrimaryAnswerNegative,
		&c.ApplicationStatusForCalling,
		&c.JobAdStatusForCalling,
		&c.CallingTimeAfterStatusUpdate,
		&c.StatusForUnsuccessfulCall,
		&c.StatusForSuccessfulCall,
		&c.StatusWhenCallIsPlaced,
		&c.VoiceID,
		&c.SendDocumentUploadLink,
		&c.DocumentUploadLink,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallConfig{}, ErrConfigNotFound
		}
		return CallConfig{}, err
	}
	return c, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadConfigQuestions(ctx context.Context, q querier, configID int64) ([]PrimaryQuestion, error) {
	const sqlq = `
SELECT pq.id, pq.question, pq.status, pq.created_at
FROM call_config_questions cq
JOIN primary_questions pq ON pq.id = cq.question_id
WHERE cq.config_id = $1
ORDER BY cq.position
`
	return collectQuestions(q.QueryContext(ctx, sqlq, configID))
}

func collectQuestions(rows *sql.Rows, err error) ([]PrimaryQuestion, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []PrimaryQuestion{}
	for rows.Next() {
		var pq PrimaryQuestion
		if err := rows.Scan(&pq.ID, &pq.Question, &pq.Status, &pq.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, pq)
	}
	return out, rows.Err()
}

// GetConfig returns the organization's active configuration: the oldest one when several exist.
func (r *PostgresRepo) GetConfig(ctx context.Context, organizationID int64) (CallConfig, error) {
	q := `SELECT ` + configColumns + ` FROM call_configs WHERE organization_id = $1 ORDER BY created_at, id LIMIT 1`
	c, err := scanConfig(r.db.QueryRowContext(ctx, q, organizationID))
	if err != nil {
		return CallConfig{}, err
	}
	c.Questions, err = loadConfigQuestions(ctx, r.db, c.ID)
	return c, err
}

func (r *PostgresRepo) CreateConfig(ctx context.Context, c CallConfig, questionIDs []int64) (CallConfig, error) {
	var out CallConfig
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM call_configs WHERE organization_id = $1)`, c.OrganizationID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConfigExists
		}

		now := r.clock().UTC()
		q := `
INSERT INTO call_configs (
  organization_id, platform_id, from_number, end_call_if_primary_answer_negative,
  application_status_for_calling, jobad_status_for_calling, calling_time_after_status_update,
  status_for_unsuccessful_call, status_for_successful_call, status_when_call_is_placed, voice_id,
  sent_document_upload_link, document_upload_link, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
RETURNING ` + configColumns
		created, err := scanConfig(tx.QueryRowContext(ctx, q, configArgs(c, now)...))
		if utils.IsUniqueViolation(err) {
			// A concurrent create won between the check and the insert.
			return ErrConfigExists
		}
		if err != nil {
			return err
		}
		if err := replaceQuestionLinks(ctx, tx, created.ID, questionIDs); err != nil {
			return err
		}
		created.Questions, err = loadConfigQuestions(ctx, tx, created.ID)
		out = created
		return err
	})
	return out, err
}

// UpdateConfig overwrites the configuration identified by c.ID. A nil questionIDs keeps the current links.
func (r *PostgresRepo) UpdateConfig(ctx context.Context, c CallConfig, questionIDs []int64) (CallConfig, error) {
	var out CallConfig
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		q := `
UPDATE call_configs SET
  platform_id = $2,
  from_number = $3,
  end_call_if_primary_answer_negative = $4,
  application_status_for_calling = $5,
  jobad_status_for_calling = $6,
  calling_time_after_status_update = $7,
  status_for_unsuccessful_call = $8,
  status_for_successful_call = $9,
  status_when_call_is_placed = $10,
  voice_id = $11,
  sent_document_upload_link = $12,
  document_upload_link = $13,
  updated_at = $14
WHERE organization_id = $1 AND id = $15
RETURNING ` + configColumns
		args := append(configArgs(c, r.clock().UTC()), c.ID)
		updated, err := scanConfig(tx.QueryRowContext(ctx, q, args...))
		if err != nil {
			return err
		}
		if questionIDs != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM call_config_questions WHERE config_id = $1`, updated.ID); err != nil {
				return err
			}
			if err := replaceQuestionLinks(ctx, tx, updated.ID, questionIDs); err != nil {
				return err
			}
		}
		updated.Questions, err = loadConfigQuestions(ctx, tx, updated.ID)
		out = updated
		return err
	})
	return out, err
}

func (r *PostgresRepo) DeleteConfig(ctx context.Context, organizationID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM call_configs WHERE organization_id = $1`, organizationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConfigNotFound
	}
	return nil
}

func (r *PostgresRepo) QuestionsByIDs(ctx context.Context, ids []int64) ([]PrimaryQuestion, error) {
	if len(ids) == 0 {
		return []PrimaryQuestion{}, nil
	}
	const q = `SELECT id, question, status, created_at FROM primary_questions WHERE id = ANY($1) ORDER BY id`
	return collectQuestions(r.db.QueryContext(ctx, q, ids))
}

func (r *PostgresRepo) ListQuestions(ctx context.Context, status string) ([]PrimaryQuestion, error) {
	const q = `SELECT id, question, status, created_at FROM primary_questions WHERE status = $1 ORDER BY id`
	return collectQuestions(r.db.QueryContext(ctx, q, status))
}

func replaceQuestionLinks(ctx context.Context, tx *sql.Tx, configID int64, questionIDs []int64) error {
	const q = `INSERT INTO call_config_questions (config_id, question_id, position) VALUES ($1, $2, $3)`
	for i, qid := range questionIDs {
		if _, err := tx.ExecContext(ctx, q, configID, qid, i); err != nil {
			return err
		}
	}
	return nil
}

func configArgs(c CallConfig, now time.Time) []any {
	return []any{
		c.OrganizationID,
		c.PlatformID,
		c.FromNumber,
		c.EndCallIfPrimaryAnswerNegative,
		c.ApplicationStatusForCalling,
		c.JobAdStatusForCalling,
		c.CallingTimeAfterStatusUpdate,
		c.StatusForUnsuccessfulCall,
		c.StatusForSuccessfulCall,
		c.StatusWhenCallIsPlaced,
		c.VoiceID,
		c.SendDocumentUploadLink,
		c.DocumentUploadLink,
		now,
	}
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
