// Package service is the control surface's application layer: it persists
// documents, enqueues engine jobs, and answers status reads. It never drives
// a browser.
package service

import (
	"context"
	"errors"
	"time"

	"zapmotor/internal/domain"
	"zapmotor/internal/observability"
	"zapmotor/internal/store"
	"zapmotor/internal/util"
)

type Store interface {
	CreateConnection(ctx context.Context, c store.Connection) error
	GetConnection(ctx context.Context, id string) (store.Connection, bool, error)
	UpdateConnection(ctx context.Context, id string, f store.Fields) error
	GetCampaign(ctx context.Context, id string) (store.Campaign, bool, error)
}

type Queue interface {
	EnqueueLink(ctx context.Context, connectionID, phoneNumber string) error
	EnqueueCampaign(ctx context.Context, campaignID, connectionID string) error
}

var ErrCampaignNotFound = errors.New("campaign not found")

type Control struct {
	Store Store
	Queue Queue
}

// CreateConnection persists the connection document and enqueues the pairing
// job. The caller gets the id back immediately; pairing progress is observed
// by polling the document.
func (s *Control) CreateConnection(ctx context.Context, req domain.CreateConnectionRequest, connectionID string, now time.Time) (domain.CreateConnectionResponse, error) {
	phone := util.NormalizePhone(req.PhoneNumber)

	err := s.Store.CreateConnection(ctx, store.Connection{
		ID:          connectionID,
		Name:        req.Name,
		PhoneNumber: phone,
		Status:      string(domain.ConnGeneratingCode),
		CreatedAt:   now,
	})
	if err != nil {
		return domain.CreateConnectionResponse{}, err
	}

	if err := s.Queue.EnqueueLink(ctx, connectionID, phone); err != nil {
		observability.Enqueues.WithLabelValues("link", "error").Inc()
		if uerr := s.Store.UpdateConnection(ctx, connectionID, store.Fields{
			"status":  string(domain.ConnError),
			"erroMsg": "enqueue_failed",
		}); uerr != nil {
		}
		return domain.CreateConnectionResponse{}, err
	}
	observability.Enqueues.WithLabelValues("link", "ok").Inc()

	return domain.CreateConnectionResponse{
		ConnectionID: connectionID,
		Status:       string(domain.ConnGeneratingCode),
	}, nil
}

func (s *Control) GetConnection(ctx context.Context, id string) (store.Connection, bool, error) {
	return s.Store.GetConnection(ctx, id)
}

// StartCampaign validates the campaign exists and enqueues its run. Terminal
// campaigns are not re-enqueued; the response carries their current status.
func (s *Control) StartCampaign(ctx context.Context, campaignID string) (domain.StartCampaignResponse, error) {
	camp, found, err := s.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.StartCampaignResponse{}, err
	}
	if !found {
		return domain.StartCampaignResponse{}, ErrCampaignNotFound
	}
	if camp.Status == string(domain.CampaignDone) || camp.Status == string(domain.CampaignError) {
		return domain.StartCampaignResponse{CampaignID: campaignID, Status: camp.Status}, nil
	}

	if err := s.Queue.EnqueueCampaign(ctx, campaignID, camp.ConnectionID); err != nil {
		observability.Enqueues.WithLabelValues("campaign", "error").Inc()
		return domain.StartCampaignResponse{}, err
	}
	observability.Enqueues.WithLabelValues("campaign", "ok").Inc()

	return domain.StartCampaignResponse{CampaignID: campaignID, Status: camp.Status}, nil
}
