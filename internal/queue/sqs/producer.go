package sqsqueue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const (
	JobLinkSession = "link_session"
	JobRunCampaign = "run_campaign"
)

// Job is the envelope between the control surface and the worker. Every job
// names the connection whose browser session it will own.
type Job struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	CampaignID   string `json:"campaignId,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
}

type Producer struct {
	SQS      *sqs.Client
	QueueURL string
}

func (p *Producer) EnqueueLink(ctx context.Context, connectionID, phoneNumber string) error {
	return p.send(ctx, Job{
		Type:         JobLinkSession,
		ConnectionID: connectionID,
		PhoneNumber:  phoneNumber,
	})
}

func (p *Producer) EnqueueCampaign(ctx context.Context, campaignID, connectionID string) error {
	return p.send(ctx, Job{
		Type:         JobRunCampaign,
		ConnectionID: connectionID,
		CampaignID:   campaignID,
	})
}

func (p *Producer) send(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	// FIFO group per connection: two runs against one session directory never
	// execute concurrently across this queue's consumers.
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               &p.QueueURL,
		MessageBody:            str(string(body)),
		MessageGroupId:         str(messageGroupID(job)),
		MessageDeduplicationId: str(dedupID(job)),
	})
	return err
}

func messageGroupID(job Job) string {
	if job.ConnectionID != "" {
		return job.ConnectionID
	}
	return "default"
}

func dedupID(job Job) string {
	if job.Type == JobRunCampaign {
		return job.Type + ":" + job.CampaignID
	}
	return job.Type + ":" + job.ConnectionID
}

func str(s string) *string { return &s }
