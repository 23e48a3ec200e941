package interview

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu sync.Mutex

	nextID        int64
	interviews    []Interview
	conversations map[string]Conversation
	configs       map[int64]CallConfig
	links         map[int64][]int64
	questions     map[int64]PrimaryQuestion

	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		conversations: map[string]Conversation{},
		configs:       map[int64]CallConfig{},
		links:         map[int64][]int64{},
		questions:     map[int64]PrimaryQuestion{},
		clock:         time.Now,
	}
}

func (r *MemoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

// PutQuestion seeds a primary question.
func (r *MemoryRepo) PutQuestion(q PrimaryQuestion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions[q.ID] = q
}

func (r *MemoryRepo) CreateInterview(_ context.Context, iv Interview) (Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock().UTC()
	iv.ID = r.id()
	iv.CreatedAt = now
	iv.UpdatedAt = now
	r.interviews = append(r.interviews, iv)
	return iv, nil
}

func (r *MemoryRepo) GetInterview(_ context.Context, organizationID, id int64) (Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, iv := range r.interviews {
		if iv.OrganizationID == organizationID && iv.ID == id {
			return iv, nil
		}
	}
	return Interview{}, ErrNotFound
}

func (r *MemoryRepo) ListInterviews(_ context.Context, f ListFilter) ([]Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Interview
	for i := len(r.interviews) - 1; i >= 0; i-- {
		iv := r.interviews[i]
		if iv.OrganizationID != f.OrganizationID {
			continue
		}
		if f.JobID != nil && (iv.JobID == nil || *iv.JobID != *f.JobID) {
			continue
		}
		if len(f.AIDecisions) > 0 && !slices.Contains(f.AIDecisions, iv.AIDecision) {
			continue
		}
		if !f.From.IsZero() && iv.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !iv.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, iv)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepo) InterviewExists(_ context.Context, organizationID, candidateID, applicationID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, iv := range r.interviews {
		if iv.OrganizationID != organizationID || iv.CandidateID == nil || iv.ApplicationID == nil {
			continue
		}
		if *iv.CandidateID == candidateID && *iv.ApplicationID == applicationID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) UpsertConversation(_ context.Context, c Conversation) (Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock().UTC()
	existing, ok := r.conversations[c.CallSID]
	if ok && existing.OrganizationID != c.OrganizationID {
		return Conversation{}, false, ErrCallSIDTaken
	}
	if ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else {
		c.ID = r.id()
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.conversations[c.CallSID] = c
	return c, !ok, nil
}

func (r *MemoryRepo) GetConversation(_ context.Context, organizationID int64, callSID string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[callSID]
	if !ok || c.OrganizationID != organizationID {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ConversationsByInterview(_ context.Context, organizationID int64, interviewIDs []int64) (map[int64]Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]Conversation{}
	for _, c := range r.conversations {
		if c.OrganizationID != organizationID || !slices.Contains(interviewIDs, c.InterviewID) {
			continue
		}
		if prev, ok := out[c.InterviewID]; ok && prev.CreatedAt.After(c.CreatedAt) {
			continue
		}
		out[c.InterviewID] = c
	}
	return out, nil
}

func (r *MemoryRepo) GetConfig(_ context.Context, organizationID int64) (CallConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[organizationID]
	if !ok {
		return CallConfig{}, ErrConfigNotFound
	}
	c.Questions = r.questionsFor(c.ID)
	return c, nil
}

func (r *MemoryRepo) CreateConfig(_ context.Context, c CallConfig, questionIDs []int64) (CallConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[c.OrganizationID]; ok {
		return CallConfig{}, ErrConfigExists
	}
	now := r.clock().UTC()
	c.ID = r.id()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Questions = nil
	r.configs[c.OrganizationID] = c
	r.links[c.ID] = append([]int64(nil), questionIDs...)
	c.Questions = r.questionsFor(c.ID)
	return c, nil
}

func (r *MemoryRepo) UpdateConfig(_ context.Context, c CallConfig, questionIDs []int64) (CallConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.configs[c.OrganizationID]
	if !ok || cur.ID != c.ID {
		return CallConfig{}, ErrConfigNotFound
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = r.clock().UTC()
	c.Questions = nil
	r.configs[c.OrganizationID] = c
	if questionIDs != nil {
		r.links[c.ID] = append([]int64(nil), questionIDs...)
	}
	c.Questions = r.questionsFor(c.ID)
	return c, nil
}

func (r *MemoryRepo) DeleteConfig(_ context.Context, organizationID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[organizationID]
	if !ok {
		return ErrConfigNotFound
	}
	delete(r.configs, organizationID)
	delete(r.links, c.ID)
	return nil
}

func (r *MemoryRepo) QuestionsByIDs(_ context.Context, ids []int64) ([]PrimaryQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []PrimaryQuestion{}
	for _, id := range ids {
		if q, ok := r.questions[id]; ok {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) ListQuestions(_ context.Context, status string) ([]PrimaryQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []PrimaryQuestion{}
	for _, q := range r.questions {
		if q.Status == status {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) questionsFor(configID int64) []PrimaryQuestion {
	out := []PrimaryQuestion{}
	for _, id := range r.links[configID] {
		if q, ok := r.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out
}
