package domain

import "errors"

// Status values are persisted verbatim and read by existing dashboards, so
// the Portuguese wire values are kept as-is.
type ConnectionStatus string

const (
	ConnGeneratingCode ConnectionStatus = "generating_code"
	ConnAwaitingScan   ConnectionStatus = "awaiting_scan"
	ConnAwaitingCode   ConnectionStatus = "awaiting_code_entry"
	ConnLinked         ConnectionStatus = "conectado"
	ConnUnlinked       ConnectionStatus = "desconectado"
	ConnError          ConnectionStatus = "erro"
)

type CampaignStatus string

const (
	CampaignPending CampaignStatus = "pendente"
	CampaignRunning CampaignStatus = "rodando"
	CampaignDone    CampaignStatus = "concluida"
	CampaignError   CampaignStatus = "erro"
)

type ContactStatus string

const (
	ContactAvailable ContactStatus = "disponivel"
	ContactUsed      ContactStatus = "usado"
)

// Campaign recipient resolution modes.
const (
	CampaignTypeQuantity  = "quantity"
	CampaignTypeSelection = "selection"
)

var ErrMissingFields = errors.New("missing required fields")

type CreateConnectionRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

func (r CreateConnectionRequest) Validate() error {
	if r.Name == "" {
		return ErrMissingFields
	}
	return nil
}

type CreateConnectionResponse struct {
	ConnectionID string `json:"connectionId"`
	Status       string `json:"status"`
}

type StartCampaignResponse struct {
	CampaignID string `json:"campaignId"`
	Status     string `json:"status"`
}
