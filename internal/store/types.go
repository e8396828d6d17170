package store

import (
	"errors"
	"time"
)

// Collection names match the original document layout.
const (
	ColConnections = "logins"
	ColCampaigns   = "campanhas"
	ColContacts    = "contatos"
)

// ErrNotFound is returned by updates and gets targeting a document that does
// not exist (for example a connection deleted externally mid-run). Callers on
// teardown paths must treat it as loggable, not fatal.
var ErrNotFound = errors.New("document not found")

type Connection struct {
	ID          string     `bson:"_id"`
	Name        string     `bson:"name"`
	PhoneNumber string     `bson:"phoneNumber,omitempty"`
	Status      string     `bson:"status"`
	QRCode      string     `bson:"qrCode,omitempty"`
	LoginCode   string     `bson:"loginCode,omitempty"`
	Error       string     `bson:"erroMsg,omitempty"`
	CreatedAt   time.Time  `bson:"criadoEm"`
	ConnectedAt *time.Time `bson:"conectadoEm,omitempty"`
}

type Campaign struct {
	ID            string `bson:"_id"`
	ConnectionID  string `bson:"connectionId"`
	Type          string `bson:"tipo"`
	TotalContacts int    `bson:"totalContatos,omitempty"`
	ContactIDs    []string `bson:"contactIds,omitempty"`
	Template      string `bson:"mensagemTemplate"`
	MinDelay      int    `bson:"minDelay"`
	MaxDelay      int    `bson:"maxDelay"`
	Status        string `bson:"status"`
	Error         string `bson:"erroMsg,omitempty"`
}

type Contact struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"nome"`
	Number    string    `bson:"numero"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"criadoEm"`
}

// Fields is a partial document update. Values are written as-is except the
// two sentinels below.
type Fields map[string]any

type TimestampSentinel struct{}
type DeleteSentinel struct{}

// ServerTimestamp makes the store assign its own current time to the field.
var ServerTimestamp = TimestampSentinel{}

// Delete removes the field from the document.
var Delete = DeleteSentinel{}
