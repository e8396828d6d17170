package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"zapmotor/internal/domain"
	"zapmotor/internal/service"
	"zapmotor/internal/util"
)

type API struct {
	Svc   *service.Control
	IDGen func() string
}

func (a *API) Register(mux *mux.Router) {
	mux.HandleFunc("/v1/connections", a.handleCreateConnection).Methods(http.MethodPost)
	mux.HandleFunc("/v1/connections/{id}", a.handleGetConnection).Methods(http.MethodGet)
	mux.HandleFunc("/v1/campaigns/{id}/start", a.handleStartCampaign).Methods(http.MethodPost)
}

func (a *API) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := a.Svc.CreateConnection(r.Context(), req, a.IDGen(), util.NowUTC())
	if err != nil {
		slog.Error("create connection failed",
			"err", err,
			"name", req.Name,
		)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *API) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	conn, found, err := a.Svc.GetConnection(r.Context(), id)
	if err != nil {
		slog.Error("get connection failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(connectionView(conn))
}

func (a *API) handleStartCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	resp, err := a.Svc.StartCampaign(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrCampaignNotFound) {
			http.Error(w, ErrNotFound, http.StatusNotFound)
			return
		}
		slog.Error("start campaign failed", "err", err, "id", id)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(resp)
}
