package observations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
	"github.com/mamadbah2/cropwatch/internal/repository/sqlite"
)

var clock = time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC)

type fakeBlobs struct {
	pathname    string
	contentType string
	size        int
	err         error
}

func (f *fakeBlobs) Put(_ context.Context, pathname, contentType string, body []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.pathname = pathname
	f.contentType = contentType
	f.size = len(body)
	return "https://blobs.example.com/" + pathname, nil
}

func setup(t *testing.T, blobs BlobPutter) (*Service, models.Zone) {
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
		Name:      "Riverside",
		CropType:  "cassava",
		CreatedAt: clock.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create zone: %v", err)
	}

	svc := NewService(store, blobs, nil)
	svc.now = func() time.Time { return clock }
	return svc, zone
}

func TestRecord_StoresScan(t *testing.T) {
	svc, zone := setup(t, nil)

	obs, err := svc.Record(context.Background(), zone.ID.String(), "s3://bucket/scan 1.tif?x=1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if obs.Type != models.ObservationScan {
		t.Fatalf("type: got %q, want scan", obs.Type)
	}
	if obs.ImageURL == nil || *obs.ImageURL != "s3://bucket/scan 1.tif?x=1" {
		t.Fatalf("url must be stored verbatim, got %v", obs.ImageURL)
	}
	if !obs.CapturedAt.Equal(clock) || !obs.UploadedAt.Equal(clock) {
		t.Fatalf("timestamps: captured %s uploaded %s, want %s", obs.CapturedAt, obs.UploadedAt, clock)
	}
}

func TestRecord_Errors(t *testing.T) {
	svc, zone := setup(t, nil)
	ctx := context.Background()

	if _, err := svc.Record(ctx, zone.ID.String(), " "); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("empty url: got %v, want ErrValidation", err)
	}
	if _, err := svc.Record(ctx, "zone", "https://x"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("malformed zone: got %v, want ErrValidation", err)
	}
	if _, err := svc.Record(ctx, uuid.NewString(), "https://x"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("unknown zone: got %v, want ErrNotFound", err)
	}
}

func TestUpload_PutsUnderScanPrefix(t *testing.T) {
	blobs := &fakeBlobs{}
	svc, zone := setup(t, blobs)

	obs, err := svc.Upload(context.Background(), zone.ID.String(), "../leaf.webp", "image/webp", []byte("RIFF0000WEBP"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	wantPath := "rover-scans/1751623200000-leaf.webp"
	if blobs.pathname != wantPath {
		t.Fatalf("pathname: got %q, want %q", blobs.pathname, wantPath)
	}
	if blobs.contentType != "image/webp" || blobs.size != 12 {
		t.Fatalf("blob put: type %q size %d", blobs.contentType, blobs.size)
	}
	if obs.Type != models.ObservationImage {
		t.Fatalf("type: got %q, want image", obs.Type)
	}
	if obs.ImageURL == nil || *obs.ImageURL != "https://blobs.example.com/"+wantPath {
		t.Fatalf("imageUrl: got %v", obs.ImageURL)
	}
}

func TestUpload_Errors(t *testing.T) {
	ctx := context.Background()

	svc, zone := setup(t, &fakeBlobs{})
	if _, err := svc.Upload(ctx, zone.ID.String(), "a.png", "image/png", nil); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("empty body: got %v, want ErrValidation", err)
	}
	if _, err := svc.Upload(ctx, zone.ID.String(), "a.gif", "image/gif", []byte("GIF89a")); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("gif: got %v, want ErrValidation", err)
	}

	unconfigured, zone2 := setup(t, nil)
	if _, err := unconfigured.Upload(ctx, zone2.ID.String(), "a.png", "image/png", []byte("x")); !errors.Is(err, models.ErrBlobUnavailable) {
		t.Fatalf("no blob store: got %v, want ErrBlobUnavailable", err)
	}

	failing, zone3 := setup(t, &fakeBlobs{err: errors.New("connection reset")})
	if _, err := failing.Upload(ctx, zone3.ID.String(), "a.png", "image/png", []byte("x")); !errors.Is(err, models.ErrBlobUnavailable) {
		t.Fatalf("failing blob store: got %v, want ErrBlobUnavailable", err)
	}
}
