package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"Vid2News/internal/domain"
	"Vid2News/internal/infrastructure/metrics"
	"Vid2News/internal/usecase"
)

var testSecret = []byte("ops-secret")

type memoryStore struct {
	rows []domain.PostRecord
}

func (m *memoryStore) Create(context.Context, []domain.GeneratedPost, string) ([]int64, error) {
	return nil, nil
}

func (m *memoryStore) Read(_ context.Context, f domain.PostFilter) ([]domain.PostRecord, error) {
	var out []domain.PostRecord
	for _, r := range m.rows {
		if f.Status == "" || r.Status == f.Status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) Patch(_ context.Context, patches []domain.PostPatch) error {
	for _, p := range patches {
		for i := range m.rows {
			if m.rows[i].ID == p.ID && p.Status != nil {
				m.rows[i].Status = *p.Status
			}
		}
	}
	return nil
}

type okPublisher struct {
	credErr error
}

func (okPublisher) Name() string { return "stub" }

func (p okPublisher) CheckCredentials() error { return p.credErr }

func (okPublisher) Publish(context.Context, string) (string, error) { return "remote-7", nil }

func newTestServer(t *testing.T, pub okPublisher) (*Server, *memoryStore) {
	t.Helper()
	nine := 9.0
	store := &memoryStore{rows: []domain.PostRecord{
		{ID: 1, Title: "A", Content: "a", Status: "pending-review"},
		{ID: 2, Title: "B", Content: "b", Status: "approved", Score: &nine},
	}}
	reg := prometheus.NewRegistry()
	desk := &usecase.Desk{
		Name:     "geopolitics",
		Store:    store,
		Labels:   domain.DefaultStatusLabels(),
		Publish:  usecase.NewPublishingJob(usecase.PublishingDeps{Store: store, Publisher: pub, Labels: domain.DefaultStatusLabels()}),
		Recorder: metrics.New(reg),
	}
	srv := New(Options{JWTSecret: testSecret, Desks: []*usecase.Desk{desk}, Gatherer: reg})
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, okPublisher{})
	if rec := do(t, srv, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	token, err := SignToken("ops", testSecret, time.Minute)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	if rec := do(t, srv, http.MethodPost, "/api/desks/geopolitics/publish", token); rec.Code != http.StatusOK {
		t.Fatalf("publish: %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `vid2news_job_runs_total{desk="geopolitics",job="publish",result="success"} 1`) {
		t.Fatalf("metrics missing publish run:\n%s", rec.Body.String())
	}
}

func TestListPostsMapsStatus(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, okPublisher{})
	rec := do(t, srv, http.MethodGet, "/api/desks/geopolitics/posts?status=approved", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var posts []postView
	if err := json.Unmarshal(rec.Body.Bytes(), &posts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != 2 || posts[0].Score == nil || *posts[0].Score != 9 {
		t.Fatalf("unexpected posts %+v", posts)
	}

	if rec := do(t, srv, http.MethodGet, "/api/desks/sports/posts", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown desk: got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/desks/geopolitics/posts?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: got %d", rec.Code)
	}
}

func TestListDesks(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, okPublisher{})
	rec := do(t, srv, http.MethodGet, "/api/desks", "")
	var desks []deskView
	if err := json.Unmarshal(rec.Body.Bytes(), &desks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(desks) != 1 || desks[0].Name != "geopolitics" || len(desks[0].Jobs) != 1 || desks[0].Jobs[0] != usecase.JobPublish {
		t.Fatalf("unexpected desks %+v", desks)
	}
}

func TestJobTriggersRequireToken(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, okPublisher{})
	if rec := do(t, srv, http.MethodPost, "/api/desks/geopolitics/publish", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", rec.Code)
	}
	forged, _ := SignToken("ops", []byte("other-secret"), time.Minute)
	if rec := do(t, srv, http.MethodPost, "/api/desks/geopolitics/publish", forged); rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: got %d", rec.Code)
	}
	expired, _ := SignToken("ops", testSecret, -time.Minute)
	if rec := do(t, srv, http.MethodPost, "/api/desks/geopolitics/publish", expired); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: got %d", rec.Code)
	}
	if store.rows[1].Status != "approved" {
		t.Fatalf("rejected requests must not publish")
	}
}

func TestPublishEndpoint(t *testing.T) {
	t.Parallel()

	token, _ := SignToken("ops", testSecret, time.Minute)

	srv, store := newTestServer(t, okPublisher{})
	rec := do(t, srv, http.MethodPost, "/api/desks/geopolitics/publish", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish: %d %s", rec.Code, rec.Body.String())
	}
	var outcome usecase.PublishOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if outcome.RowID != 2 || outcome.RemoteID != "remote-7" || store.rows[1].Status != "published" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if rec := do(t, srv, http.MethodPost, "/api/desks/geopolitics/publish", token); rec.Code != http.StatusNoContent {
		t.Fatalf("nothing left to publish: got %d", rec.Code)
	}

	broken, _ := newTestServer(t, okPublisher{credErr: context.DeadlineExceeded})
	if rec := do(t, broken, http.MethodPost, "/api/desks/geopolitics/publish", token); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing credentials: got %d", rec.Code)
	}
}

func TestTriggersDisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	srv := New(Options{Desks: []*usecase.Desk{{Name: "geopolitics"}}})
	if rec := do(t, srv, http.MethodPost, "/api/desks/geopolitics/publish", ""); rec.Code == http.StatusOK {
		t.Fatalf("triggers must not be mounted without a secret")
	}
}

type gatedPublisher struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (*gatedPublisher) Name() string { return "gated" }

func (*gatedPublisher) CheckCredentials() error { return nil }

func (p *gatedPublisher) Publish(context.Context, string) (string, error) {
	p.calls.Add(1)
	p.entered <- struct{}{}
	<-p.release
	return "remote-1", nil
}

func TestPublishConflictsWithScheduledRun(t *testing.T) {
	t.Parallel()

	nine := 9.0
	store := &memoryStore{rows: []domain.PostRecord{{ID: 1, Title: "A", Content: "a", Status: "approved", Score: &nine}}}
	pub := &gatedPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	desk := &usecase.Desk{
		Name:    "geopolitics",
		Store:   store,
		Labels:  domain.DefaultStatusLabels(),
		Publish: usecase.NewPublishingJob(usecase.PublishingDeps{Store: store, Publisher: pub, Labels: domain.DefaultStatusLabels()}),
	}
	srv := New(Options{JWTSecret: testSecret, Desks: []*usecase.Desk{desk}})
	token, _ := SignToken("ops", testSecret, time.Minute)

	scheduled := make(chan error, 1)
	go func() { scheduled <- desk.RunJob(context.Background(), usecase.JobPublish) }()
	<-pub.entered

	if rec := do(t, srv, http.MethodPost, "/api/desks/geopolitics/publish", token); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a publish is in flight, got %d", rec.Code)
	}

	close(pub.release)
	if err := <-scheduled; err != nil {
		t.Fatalf("scheduled publish: %v", err)
	}
	if got := pub.calls.Load(); got != 1 {
		t.Fatalf("row published %d times", got)
	}
}
