package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresOrganizationAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeInterviewRetry}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{OrganizationID: 7}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{OrganizationID: 7, Type: EventTypeBulkRetry, Metadata: "{"}); err == nil {
		t.Fatalf("expected error for invalid metadata")
	}
	if len(repo.Events()) != 0 {
		t.Fatalf("expected nothing appended")
	}
}

func TestService_LogRetry(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogRetry(context.Background(), 7, Actor{UserID: "u1", Role: "recruiter", IP: "1.2.3.4"}, 42); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" || evs[0].ActorRole != "recruiter" {
		t.Fatalf("expected actor captured, got %+v", evs[0])
	}
	if evs[0].Type != EventTypeInterviewRetry || evs[0].InterviewID != 42 {
		t.Fatalf("unexpected event %+v", evs[0])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be set")
	}
}

func TestService_LogBulkRetryStoresMetadata(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	details := map[string]int{"retried_count": 2, "total_disconnected": 3}
	if err := svc.LogBulkRetry(context.Background(), 7, Actor{UserID: "u1"}, details); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].Metadata != `{"retried_count":2,"total_disconnected":3}` {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestMemoryRepo_ForOrganizationFilters(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.LogCampaignTrigger(ctx, 7, Actor{UserID: "u1"})
	_ = svc.LogCampaignTrigger(ctx, 8, Actor{UserID: "u2"})
	_ = svc.LogConfigChange(ctx, 7, Actor{UserID: "u1"}, "updated")

	evs := repo.ForOrganization(7, EventTypeCampaignTrigger)
	if len(evs) != 1 || evs[0].ActorUserID != "u1" {
		t.Fatalf("unexpected events %+v", evs)
	}
}
