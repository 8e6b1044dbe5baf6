package recommendations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
	"github.com/mamadbah2/cropwatch/internal/repository/sqlite"
)

type fixedScorer struct {
	score int
}

func (f fixedScorer) Score(uuid.UUID) models.Score {
	return models.Score{
		DCIScore:           f.score,
		RecommendationType: models.RecommendationPestCheck,
		ExplanationSummary: "fixed",
	}
}

type countingStore struct {
	Store
	calls int
}

func (c *countingStore) UpdateDecision(ctx context.Context, id uuid.UUID, expected models.DecisionStatus, update models.DecisionUpdate) (models.Recommendation, bool, error) {
	c.calls++
	return c.Store.UpdateDecision(ctx, id, expected, update)
}

func (c *countingStore) GetRecommendation(ctx context.Context, id uuid.UUID) (models.Recommendation, error) {
	c.calls++
	return c.Store.GetRecommendation(ctx, id)
}

var clock = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *sqlite.Repository, models.Zone) {
	t.Helper()

	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(ctx) })

	zone, err := store.CreateZone(ctx, models.Zone{
		ID:        uuid.New(),
		FarmID:    uuid.New(),
		Name:      "North Field",
		CropType:  "maize",
		CreatedAt: clock.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("create zone: %v", err)
	}

	svc := NewService(store, fixedScorer{score: 72}, nil)
	svc.now = func() time.Time { return clock }
	return svc, store, zone
}

func ptr(s string) *string { return &s }

func TestGenerate_PersistsPendingRecommendation(t *testing.T) {
	svc, store, zone := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Generate(ctx, zone.ID.String())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if rec.DecisionStatus != models.DecisionPending {
		t.Fatalf("status: got %q, want pending", rec.DecisionStatus)
	}
	if rec.DecisionBy != nil || rec.DecisionNote != nil || rec.DecisionAt != nil || rec.ExecutedAt != nil {
		t.Fatalf("decision fields must start empty: %+v", rec)
	}
	if rec.DCIScore != 72 || rec.RecommendationType != models.RecommendationPestCheck {
		t.Fatalf("unexpected score payload: %+v", rec)
	}
	if !rec.CreatedAt.Equal(clock) {
		t.Fatalf("createdAt: got %s, want %s", rec.CreatedAt, clock)
	}

	stored, err := store.GetRecommendation(ctx, rec.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.ZoneID != zone.ID {
		t.Fatalf("zone id: got %s, want %s", stored.ZoneID, zone.ID)
	}
}

func TestGenerate_RejectsBadZone(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Generate(ctx, "not-a-uuid"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("malformed id: got %v, want ErrValidation", err)
	}
	if _, err := svc.Generate(ctx, uuid.NewString()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("unknown zone: got %v, want ErrNotFound", err)
	}
}

func TestApplyDecision_ApproveThenExecute(t *testing.T) {
	svc, _, zone := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Generate(ctx, zone.ID.String())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	approved, err := svc.ApplyDecision(ctx, DecisionRequest{
		RecommendationID: rec.ID.String(),
		Action:           "approve",
		DecisionBy:       ptr("amina"),
		DecisionNote:     ptr("  "),
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.DecisionStatus != models.DecisionApproved {
		t.Fatalf("status: got %q, want approved", approved.DecisionStatus)
	}
	if approved.DecisionAt == nil || !approved.DecisionAt.Equal(clock) {
		t.Fatalf("decisionAt: got %v, want %s", approved.DecisionAt, clock)
	}
	if approved.ExecutedAt != nil {
		t.Fatalf("executedAt must stay empty after approve, got %v", approved.ExecutedAt)
	}
	if approved.DecisionBy == nil || *approved.DecisionBy != "amina" {
		t.Fatalf("decisionBy: got %v", approved.DecisionBy)
	}
	if approved.DecisionNote != nil {
		t.Fatalf("blank note must be stored as null, got %q", *approved.DecisionNote)
	}

	later := clock.Add(2 * time.Hour)
	svc.now = func() time.Time { return later }

	executed, err := svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: rec.ID.String(), Action: "execute"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if executed.DecisionStatus != models.DecisionExecuted {
		t.Fatalf("status: got %q, want executed", executed.DecisionStatus)
	}
	if executed.ExecutedAt == nil || !executed.ExecutedAt.Equal(later) {
		t.Fatalf("executedAt: got %v, want %s", executed.ExecutedAt, later)
	}
	if executed.DecisionAt == nil || !executed.DecisionAt.Equal(later) {
		t.Fatalf("decisionAt: got %v, want %s", executed.DecisionAt, later)
	}
}

func TestApplyDecision_Reject(t *testing.T) {
	svc, store, zone := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Generate(ctx, zone.ID.String())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	rejected, err := svc.ApplyDecision(ctx, DecisionRequest{
		RecommendationID: rec.ID.String(),
		Action:           "reject",
		DecisionNote:     ptr(" canopy looks fine "),
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.DecisionStatus != models.DecisionRejected {
		t.Fatalf("status: got %q, want rejected", rejected.DecisionStatus)
	}
	if rejected.DecisionAt == nil || !rejected.DecisionAt.Equal(clock) {
		t.Fatalf("decisionAt: got %v, want %s", rejected.DecisionAt, clock)
	}
	if rejected.ExecutedAt != nil {
		t.Fatalf("executedAt must stay empty after reject, got %v", rejected.ExecutedAt)
	}
	if rejected.DecisionBy != nil {
		t.Fatalf("decisionBy: got %q, want nil", *rejected.DecisionBy)
	}
	if rejected.DecisionNote == nil || *rejected.DecisionNote != "canopy looks fine" {
		t.Fatalf("decisionNote: got %v", rejected.DecisionNote)
	}

	stored, err := store.GetRecommendation(ctx, rec.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.DecisionStatus != models.DecisionRejected || stored.DecisionAt == nil || stored.ExecutedAt != nil {
		t.Fatalf("stored row: %+v", stored)
	}
}

func TestApplyDecision_ApproveExecuteApproveAgain(t *testing.T) {
	svc, _, zone := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Generate(ctx, zone.ID.String())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id := rec.ID.String()

	if _, err := svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: id, Action: "approve"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: id, Action: "execute"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	_, err = svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: id, Action: "approve"})
	if !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("approve after execute: got %v, want ErrIllegalTransition", err)
	}
}

func TestApplyDecision_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
		act   string
	}{
		{name: "execute pending", setup: nil, act: "execute"},
		{name: "approve approved", setup: []string{"approve"}, act: "approve"},
		{name: "reject approved", setup: []string{"approve"}, act: "reject"},
		{name: "approve rejected", setup: []string{"reject"}, act: "approve"},
		{name: "execute rejected", setup: []string{"reject"}, act: "execute"},
		{name: "reject rejected", setup: []string{"reject"}, act: "reject"},
		{name: "approve executed", setup: []string{"approve", "execute"}, act: "approve"},
		{name: "reject executed", setup: []string{"approve", "execute"}, act: "reject"},
		{name: "execute executed", setup: []string{"approve", "execute"}, act: "execute"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, zone := newTestService(t)
			ctx := context.Background()

			rec, err := svc.Generate(ctx, zone.ID.String())
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			for _, action := range tc.setup {
				if _, err := svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: rec.ID.String(), Action: action}); err != nil {
					t.Fatalf("setup %s: %v", action, err)
				}
			}
			before, err := store.GetRecommendation(ctx, rec.ID)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}

			_, err = svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: rec.ID.String(), Action: tc.act})
			if !errors.Is(err, models.ErrIllegalTransition) {
				t.Fatalf("got %v, want ErrIllegalTransition", err)
			}

			after, err := store.GetRecommendation(ctx, rec.ID)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if after.DecisionStatus != before.DecisionStatus {
				t.Fatalf("status changed from %q to %q", before.DecisionStatus, after.DecisionStatus)
			}
		})
	}
}

func TestApplyDecision_ValidatesBeforeTouchingStorage(t *testing.T) {
	svc, store, zone := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Generate(ctx, zone.ID.String())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	counting := &countingStore{Store: store}
	svc.store = counting

	_, err = svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: rec.ID.String(), Action: "archive"})
	if !errors.Is(err, models.ErrInvalidAction) || !errors.Is(err, models.ErrValidation) {
		t.Fatalf("invalid action: got %v, want ErrInvalidAction", err)
	}

	_, err = svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: rec.ID.String(), Action: " approve "})
	if !errors.Is(err, models.ErrInvalidAction) {
		t.Fatalf("padded action: got %v, want ErrInvalidAction", err)
	}

	_, err = svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: "rec-1", Action: "approve"})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("malformed id: got %v, want ErrValidation", err)
	}

	if counting.calls != 0 {
		t.Fatalf("storage touched %d times for invalid requests", counting.calls)
	}
}

func TestApplyDecision_UnknownRecommendation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ApplyDecision(context.Background(), DecisionRequest{RecommendationID: uuid.NewString(), Action: "approve"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestApplyDecision_ConcurrentApproveHasSingleWinner(t *testing.T) {
	svc, store, zone := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Generate(ctx, zone.ID.String())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApplyDecision(ctx, DecisionRequest{RecommendationID: rec.ID.String(), Action: "approve"})
		}(i)
	}
	wg.Wait()

	var ok, illegal int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrIllegalTransition):
			illegal++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || illegal != 1 {
		t.Fatalf("got %d successes and %d illegal transitions, want 1 and 1", ok, illegal)
	}

	final, err := store.GetRecommendation(ctx, rec.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.DecisionStatus != models.DecisionApproved {
		t.Fatalf("final status: got %q, want approved", final.DecisionStatus)
	}
}

func TestTransitionsTable(t *testing.T) {
	for _, status := range []models.DecisionStatus{models.DecisionRejected, models.DecisionExecuted} {
		for action, tr := range transitions {
			if tr.from == status {
				t.Fatalf("terminal status %q has outgoing edge via %q", status, action)
			}
		}
		if !status.Terminal() {
			t.Fatalf("%q should be terminal", status)
		}
	}
}
