package worker

import (
	"context"
	"log/slog"

	"zapmotor/internal/domain"
	sqsqueue "zapmotor/internal/queue/sqs"
	"zapmotor/internal/store"
)

type Store interface {
	GetConnection(ctx context.Context, id string) (store.Connection, bool, error)
	GetCampaign(ctx context.Context, id string) (store.Campaign, bool, error)
}

type LinkRunner interface {
	Run(ctx context.Context, connectionID, phoneNumber string) error
}

type CampaignRunner interface {
	Run(ctx context.Context, campaignID string) error
}

// Processor routes queue jobs into the engine. It is an idempotent consumer:
// a redelivered job whose target already reached a terminal state is
// acknowledged without touching a browser.
type Processor struct {
	Store      Store
	Linker     LinkRunner
	Dispatcher CampaignRunner
	Locks      *ConnLocks
}

func (p *Processor) Process(ctx context.Context, job sqsqueue.Job) error {
	switch job.Type {
	case sqsqueue.JobLinkSession:
		return p.processLink(ctx, job)
	case sqsqueue.JobRunCampaign:
		return p.processCampaign(ctx, job)
	default:
		slog.Error("unknown job type, dropping", "type", job.Type)
		return nil
	}
}

func (p *Processor) processLink(ctx context.Context, job sqsqueue.Job) error {
	conn, found, err := p.Store.GetConnection(ctx, job.ConnectionID)
	if err != nil {
		return err
	}
	if !found {
		// Deleted externally between enqueue and delivery; nothing to pair.
		slog.Warn("connection gone, dropping link job", "connection_id", job.ConnectionID)
		return nil
	}
	if conn.Status == string(domain.ConnLinked) {
		return nil
	}

	unlock := p.Locks.Lock(job.ConnectionID)
	defer unlock()

	phone := job.PhoneNumber
	if phone == "" {
		phone = conn.PhoneNumber
	}
	return p.Linker.Run(ctx, job.ConnectionID, phone)
}

func (p *Processor) processCampaign(ctx context.Context, job sqsqueue.Job) error {
	camp, found, err := p.Store.GetCampaign(ctx, job.CampaignID)
	if err != nil {
		return err
	}
	if !found {
		slog.Warn("campaign gone, dropping job", "campaign_id", job.CampaignID)
		return nil
	}
	if camp.Status == string(domain.CampaignDone) || camp.Status == string(domain.CampaignError) {
		return nil
	}

	connectionID := camp.ConnectionID
	if connectionID == "" {
		connectionID = job.ConnectionID
	}
	unlock := p.Locks.Lock(connectionID)
	defer unlock()

	return p.Dispatcher.Run(ctx, job.CampaignID)
}
