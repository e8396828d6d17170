package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"zapmotor/internal/domain"
	"zapmotor/internal/service"
	"zapmotor/internal/store"
)

type fakeStore struct {
	conn      store.Connection
	connFound bool
	camp      store.Campaign
	campFound bool
}

func (s *fakeStore) CreateConnection(ctx context.Context, c store.Connection) error { return nil }

func (s *fakeStore) GetConnection(ctx context.Context, id string) (store.Connection, bool, error) {
	return s.conn, s.connFound, nil
}

func (s *fakeStore) UpdateConnection(ctx context.Context, id string, f store.Fields) error {
	return nil
}

func (s *fakeStore) GetCampaign(ctx context.Context, id string) (store.Campaign, bool, error) {
	return s.camp, s.campFound, nil
}

type fakeQueue struct{}

func (q *fakeQueue) EnqueueLink(ctx context.Context, connectionID, phoneNumber string) error {
	return nil
}

func (q *fakeQueue) EnqueueCampaign(ctx context.Context, campaignID, connectionID string) error {
	return nil
}

func newRouter(st *fakeStore) *mux.Router {
	api := &API{
		Svc:   &service.Control{Store: st, Queue: &fakeQueue{}},
		IDGen: func() string { return "conn_test" },
	}
	r := mux.NewRouter()
	api.Register(r)
	return r
}

func TestCreateConnectionAccepted(t *testing.T) {
	r := newRouter(&fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/v1/connections",
		strings.NewReader(`{"name":"Loja Centro","phoneNumber":"+5511999990000"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "conn_test") {
		t.Fatalf("response missing connection id: %s", w.Body.String())
	}
}

func TestCreateConnectionRejectsMissingName(t *testing.T) {
	r := newRouter(&fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/v1/connections", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateConnectionRejectsBadJSON(t *testing.T) {
	r := newRouter(&fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/v1/connections", strings.NewReader(`{`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetConnectionReturnsDocument(t *testing.T) {
	st := &fakeStore{
		conn: store.Connection{
			ID:     "conn_1",
			Name:   "Loja",
			Status: string(domain.ConnAwaitingScan),
			QRCode: "2@abc",
		},
		connFound: true,
	}
	r := newRouter(st)
	req := httptest.NewRequest(http.MethodGet, "/v1/connections/conn_1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"awaiting_scan"`) || !strings.Contains(body, `"2@abc"`) {
		t.Fatalf("response missing challenge fields: %s", body)
	}
}

func TestGetConnectionNotFound(t *testing.T) {
	r := newRouter(&fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/v1/connections/conn_missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStartCampaignAccepted(t *testing.T) {
	st := &fakeStore{
		camp:      store.Campaign{ID: "camp_1", ConnectionID: "conn_1", Status: string(domain.CampaignPending)},
		campFound: true,
	}
	r := newRouter(st)
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/camp_1/start", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStartCampaignNotFound(t *testing.T) {
	r := newRouter(&fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/camp_missing/start", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
