package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

var at = time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	repo, err := Open(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(ctx) })
	return repo
}

func TestCreateZone_UniquePerFarmIgnoringCase(t *testing.T) {
	repo := openTest(t)
	ctx := context.Background()
	farm := uuid.New()

	if _, err := repo.CreateZone(ctx, models.Zone{ID: uuid.New(), FarmID: farm, Name: "Delta", CropType: "rice", CreatedAt: at}); err != nil {
		t.Fatalf("first CreateZone: %v", err)
	}
	_, err := repo.CreateZone(ctx, models.Zone{ID: uuid.New(), FarmID: farm, Name: "delta", CropType: "rice", CreatedAt: at})
	if !errors.Is(err, models.ErrDuplicateZone) {
		t.Fatalf("same farm: got %v, want ErrDuplicateZone", err)
	}
	if _, err := repo.CreateZone(ctx, models.Zone{ID: uuid.New(), FarmID: uuid.New(), Name: "Delta", CropType: "rice", CreatedAt: at}); err != nil {
		t.Fatalf("other farm must accept the name: %v", err)
	}
}

func TestListRecommendations_TieBreakOnID(t *testing.T) {
	repo := openTest(t)
	ctx := context.Background()
	zone := uuid.New()

	ids := []string{
		"00000000-0000-0000-0000-00000000000a",
		"00000000-0000-0000-0000-00000000000c",
		"00000000-0000-0000-0000-00000000000b",
	}
	for _, id := range ids {
		if _, err := repo.InsertRecommendation(ctx, models.Recommendation{
			ID:                 uuid.MustParse(id),
			ZoneID:             zone,
			RecommendationType: models.RecommendationInspect,
			DCIScore:           85,
			ExplanationSummary: "x",
			DecisionStatus:     models.DecisionPending,
			CreatedAt:          at,
		}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	recs, err := repo.ListRecommendations(ctx, zone, 1)
	if err != nil {
		t.Fatalf("ListRecommendations: %v", err)
	}
	if len(recs) != 1 || recs[0].ID.String() != "00000000-0000-0000-0000-00000000000c" {
		t.Fatalf("expected highest id first, got %+v", recs)
	}
}

func TestUpdateDecision_CompareAndSet(t *testing.T) {
	repo := openTest(t)
	ctx := context.Background()

	rec, err := repo.InsertRecommendation(ctx, models.Recommendation{
		ID:                 uuid.New(),
		ZoneID:             uuid.New(),
		RecommendationType: models.RecommendationPestCheck,
		DCIScore:           70,
		ExplanationSummary: "x",
		DecisionStatus:     models.DecisionPending,
		CreatedAt:          at,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	decided := at.Add(time.Hour)
	update := models.DecisionUpdate{Status: models.DecisionApproved, DecisionAt: decided}

	got, applied, err := repo.UpdateDecision(ctx, rec.ID, models.DecisionPending, update)
	if err != nil || !applied {
		t.Fatalf("first update: applied=%v err=%v", applied, err)
	}
	if got.DecisionStatus != models.DecisionApproved || got.DecisionAt == nil || !got.DecisionAt.Equal(decided) {
		t.Fatalf("unexpected row: %+v", got)
	}

	_, applied, err = repo.UpdateDecision(ctx, rec.ID, models.DecisionPending, update)
	if err != nil || applied {
		t.Fatalf("stale expectation: applied=%v err=%v, want not applied", applied, err)
	}

	_, applied, err = repo.UpdateDecision(ctx, uuid.New(), models.DecisionPending, update)
	if err != nil || applied {
		t.Fatalf("missing row: applied=%v err=%v, want not applied", applied, err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := openTest(t)
	ctx := context.Background()

	if _, err := repo.GetZone(ctx, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetZone: got %v, want ErrNotFound", err)
	}
	if _, err := repo.GetRecommendation(ctx, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetRecommendation: got %v, want ErrNotFound", err)
	}
	if _, err := repo.SetZoneArchivedAt(ctx, uuid.New(), nil); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("SetZoneArchivedAt: got %v, want ErrNotFound", err)
	}
}

func TestArchiveZone_OnlyWhileActive(t *testing.T) {
	repo := openTest(t)
	ctx := context.Background()

	zone, err := repo.CreateZone(ctx, models.Zone{ID: uuid.New(), FarmID: uuid.New(), Name: "Levee", CropType: "rice", CreatedAt: at})
	if err != nil {
		t.Fatalf("CreateZone: %v", err)
	}

	first := at.Add(time.Hour)
	archived, applied, err := repo.ArchiveZone(ctx, zone.ID, first)
	if err != nil || !applied {
		t.Fatalf("first archive: applied=%v err=%v", applied, err)
	}
	if archived.ArchivedAt == nil || !archived.ArchivedAt.Equal(first) {
		t.Fatalf("archivedAt: got %v, want %s", archived.ArchivedAt, first)
	}

	_, applied, err = repo.ArchiveZone(ctx, zone.ID, first.Add(time.Hour))
	if err != nil || applied {
		t.Fatalf("second archive: applied=%v err=%v, want not applied", applied, err)
	}
	stored, err := repo.GetZone(ctx, zone.ID)
	if err != nil {
		t.Fatalf("GetZone: %v", err)
	}
	if stored.ArchivedAt == nil || !stored.ArchivedAt.Equal(first) {
		t.Fatalf("archivedAt overwritten: got %v, want %s", stored.ArchivedAt, first)
	}

	_, applied, err = repo.ArchiveZone(ctx, uuid.New(), first)
	if err != nil || applied {
		t.Fatalf("missing zone: applied=%v err=%v, want not applied", applied, err)
	}
}
