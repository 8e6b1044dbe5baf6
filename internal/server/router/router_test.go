package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mamadbah2/cropwatch/internal/auth"
	"github.com/mamadbah2/cropwatch/internal/export"
	"github.com/mamadbah2/cropwatch/internal/repository/sqlite"
	"github.com/mamadbah2/cropwatch/internal/server/handlers"
	"github.com/mamadbah2/cropwatch/internal/service/aggregation"
	"github.com/mamadbah2/cropwatch/internal/service/observations"
	"github.com/mamadbah2/cropwatch/internal/service/recommendations"
	"github.com/mamadbah2/cropwatch/internal/service/zones"
	"github.com/mamadbah2/cropwatch/internal/service/zonestatus"
)

type fakeBlobs struct{}

func (fakeBlobs) Put(_ context.Context, pathname, _ string, _ []byte) (string, error) {
	return "https://blobs.example.com/" + pathname, nil
}

type apiClient struct {
	t      *testing.T
	server http.Handler
	cookie *http.Cookie
}

func (a *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(v)
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if _, raw := body.([]byte); !raw && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

func (a *apiClient) expect(rec *httptest.ResponseRecorder, status int, out any) {
	a.t.Helper()
	if rec.Code != status {
		a.t.Fatalf("status: got %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			a.t.Fatalf("decode body %s: %v", rec.Body.String(), err)
		}
	}
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(ctx) })

	sessions := auth.NewSessionManager("letmein", "router-test-secret", "demo-farm-001")
	engine := New(Handlers{
		Auth:            handlers.NewAuthHandler(sessions, false, nil),
		Zones:           handlers.NewZoneHandler(zones.NewService(store, uuid.MustParse("11111111-1111-1111-1111-111111111111"), nil), nil),
		Recommendations: handlers.NewRecommendationHandler(recommendations.NewService(store, nil, nil), nil),
		Dashboard:       handlers.NewDashboardHandler(aggregation.NewService(store, zonestatus.NewDeriver(70), 4, nil), nil),
		Rover:           handlers.NewRoverHandler(observations.NewService(store, fakeBlobs{}, nil), nil),
	}, sessions, nil)

	return &apiClient{t: t, server: engine}
}

func (a *apiClient) login() {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/demo-login", map[string]string{"passcode": "letmein"})
	a.expect(rec, http.StatusOK, nil)
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			if !c.HttpOnly {
				a.t.Fatal("session cookie must be HttpOnly")
			}
			a.cookie = c
			return
		}
	}
	a.t.Fatal("login did not set the session cookie")
}

type recommendationEnvelope struct {
	OK             bool `json:"ok"`
	Recommendation struct {
		ID             string `json:"id"`
		DecisionStatus string `json:"decisionStatus"`
		DCIScore       int    `json:"dciScore"`
	} `json:"recommendation"`
}

func TestHealthzIsPublic(t *testing.T) {
	api := newTestAPI(t)
	api.expect(api.do(http.MethodGet, "/healthz", nil), http.StatusOK, nil)
}

func TestAuthGuards(t *testing.T) {
	api := newTestAPI(t)

	var body map[string]string
	api.expect(api.do(http.MethodGet, "/api/zones", nil), http.StatusUnauthorized, &body)
	if body["error"] != "Unauthorized" {
		t.Fatalf("unexpected body: %v", body)
	}

	api.expect(api.do(http.MethodPost, "/api/auth/demo-login", map[string]string{}), http.StatusBadRequest, nil)
	api.expect(api.do(http.MethodPost, "/api/auth/demo-login", map[string]string{"passcode": "nope"}), http.StatusUnauthorized, nil)

	api.login()
	api.expect(api.do(http.MethodGet, "/api/zones", nil), http.StatusOK, nil)
}

func TestRecommendationFlow(t *testing.T) {
	api := newTestAPI(t)
	api.login()

	var zone struct {
		ID string `json:"id"`
	}
	api.expect(api.do(http.MethodPost, "/api/zones", map[string]string{"name": "North Field", "cropType": "maize"}), http.StatusOK, &zone)
	api.expect(api.do(http.MethodPost, "/api/zones", map[string]string{"name": "north field", "cropType": "rice"}), http.StatusConflict, nil)
	api.expect(api.do(http.MethodPost, "/api/zones", map[string]string{"name": " ", "cropType": "rice"}), http.StatusBadRequest, nil)

	var run recommendationEnvelope
	api.expect(api.do(http.MethodPost, "/api/recommendations/run", map[string]string{"zoneId": zone.ID}), http.StatusOK, &run)
	if !run.OK || run.Recommendation.DecisionStatus != "pending" {
		t.Fatalf("unexpected run response: %+v", run)
	}
	if run.Recommendation.DCIScore < 65 || run.Recommendation.DCIScore > 90 {
		t.Fatalf("score out of range: %d", run.Recommendation.DCIScore)
	}
	api.expect(api.do(http.MethodPost, "/api/recommendations/run", map[string]string{"zoneId": uuid.NewString()}), http.StatusNotFound, nil)

	decide := func(action string) *httptest.ResponseRecorder {
		return api.do(http.MethodPost, "/api/recommendations/decision", map[string]string{
			"recommendationId": run.Recommendation.ID,
			"action":           action,
			"decisionBy":       "operator",
		})
	}

	api.expect(decide("execute"), http.StatusConflict, nil)
	api.expect(decide("water"), http.StatusBadRequest, nil)

	var approved recommendationEnvelope
	api.expect(decide("approve"), http.StatusOK, &approved)
	if approved.Recommendation.DecisionStatus != "approved" {
		t.Fatalf("status: got %q, want approved", approved.Recommendation.DecisionStatus)
	}
	api.expect(decide("approve"), http.StatusConflict, nil)

	var executed recommendationEnvelope
	api.expect(decide("execute"), http.StatusOK, &executed)
	if executed.Recommendation.DecisionStatus != "executed" {
		t.Fatalf("status: got %q, want executed", executed.Recommendation.DecisionStatus)
	}

	api.expect(api.do(http.MethodPost, "/api/recommendations/decision", map[string]string{
		"recommendationId": uuid.NewString(),
		"action":           "approve",
	}), http.StatusNotFound, nil)

	var summary struct {
		Zones []struct {
			ID                   string `json:"id"`
			ZoneStatus           string `json:"zoneStatus"`
			LatestRecommendation *struct {
				DecisionStatus string `json:"decisionStatus"`
			} `json:"latestRecommendation"`
		} `json:"zones"`
	}
	api.expect(api.do(http.MethodGet, "/api/summary", nil), http.StatusOK, &summary)
	if len(summary.Zones) != 1 || summary.Zones[0].ZoneStatus == "unknown" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Zones[0].LatestRecommendation == nil || summary.Zones[0].LatestRecommendation.DecisionStatus != "executed" {
		t.Fatalf("latest recommendation not reflected: %+v", summary.Zones[0])
	}
}

func TestRoverAndTimeline(t *testing.T) {
	api := newTestAPI(t)
	api.login()

	var zone struct {
		ID string `json:"id"`
	}
	api.expect(api.do(http.MethodPost, "/api/zones", map[string]string{"name": "Greenhouse", "cropType": "tomato"}), http.StatusOK, &zone)

	api.expect(api.do(http.MethodPost, "/api/rover/observations", map[string]string{"zoneId": zone.ID}), http.StatusBadRequest, nil)
	api.expect(api.do(http.MethodPost, "/api/rover/observations", map[string]string{"zoneId": zone.ID, "blobUrl": "https://cdn/scan.png"}), http.StatusOK, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/rover/upload?zoneId="+zone.ID, strings.NewReader("\x89PNG"))
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("X-Filename", "leaf.png")
	req.AddCookie(api.cookie)
	rec := httptest.NewRecorder()
	api.server.ServeHTTP(rec, req)

	var upload struct {
		OK      bool   `json:"ok"`
		BlobURL string `json:"blobUrl"`
	}
	api.expect(rec, http.StatusOK, &upload)
	if !upload.OK || !strings.HasPrefix(upload.BlobURL, "https://blobs.example.com/rover-scans/") || !strings.HasSuffix(upload.BlobURL, "-leaf.png") {
		t.Fatalf("unexpected upload response: %+v", upload)
	}

	api.expect(api.do(http.MethodGet, "/api/timeline?zoneId=zone-1", nil), http.StatusBadRequest, nil)
	api.expect(api.do(http.MethodGet, "/api/timeline", nil), http.StatusBadRequest, nil)

	var timeline struct {
		Observations []struct {
			Type string `json:"type"`
		} `json:"observations"`
		Recommendations []json.RawMessage `json:"recommendations"`
	}
	api.expect(api.do(http.MethodGet, "/api/timeline?zoneId="+zone.ID, nil), http.StatusOK, &timeline)
	if len(timeline.Observations) != 2 {
		t.Fatalf("observations: got %d, want 2", len(timeline.Observations))
	}
	if timeline.Recommendations == nil || len(timeline.Recommendations) != 0 {
		t.Fatalf("recommendations must be an empty list, got %v", timeline.Recommendations)
	}
}

func TestArchiveAndExport(t *testing.T) {
	api := newTestAPI(t)
	api.login()

	var zone struct {
		ID string `json:"id"`
	}
	api.expect(api.do(http.MethodPost, "/api/zones", map[string]string{"name": "Hillside", "cropType": "coffee"}), http.StatusOK, &zone)

	var archived struct {
		ArchivedAt *string `json:"archivedAt"`
	}
	api.expect(api.do(http.MethodPost, "/api/zones/"+zone.ID+"/archive", nil), http.StatusOK, &archived)
	if archived.ArchivedAt == nil {
		t.Fatal("archivedAt not set")
	}
	api.expect(api.do(http.MethodPost, "/api/zones/"+uuid.NewString()+"/archive", nil), http.StatusNotFound, nil)

	var summary struct {
		Zones []json.RawMessage `json:"zones"`
	}
	api.expect(api.do(http.MethodGet, "/api/summary", nil), http.StatusOK, &summary)
	if len(summary.Zones) != 0 {
		t.Fatalf("archived zone listed: %d zones", len(summary.Zones))
	}
	api.expect(api.do(http.MethodGet, "/api/summary?includeArchived=true", nil), http.StatusOK, &summary)
	if len(summary.Zones) != 1 {
		t.Fatalf("includeArchived: got %d zones, want 1", len(summary.Zones))
	}

	rec := api.do(http.MethodGet, "/api/summary/export?includeArchived=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status: %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != export.ContentType {
		t.Fatalf("content type: got %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatal("export is not a zip container")
	}

	api.expect(api.do(http.MethodPost, "/api/zones/"+zone.ID+"/unarchive", nil), http.StatusOK, nil)
	api.expect(api.do(http.MethodGet, "/api/summary", nil), http.StatusOK, &summary)
	if len(summary.Zones) != 1 {
		t.Fatalf("unarchived zone missing from summary")
	}
}
