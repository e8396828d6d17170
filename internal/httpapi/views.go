package httpapi

import (
	"time"

	"zapmotor/internal/store"
)

type connectionResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	Status      string     `json:"status"`
	QRCode      string     `json:"qrCode,omitempty"`
	LoginCode   string     `json:"loginCode,omitempty"`
	Error       string     `json:"erroMsg,omitempty"`
	CreatedAt   time.Time  `json:"criadoEm"`
	ConnectedAt *time.Time `json:"conectadoEm,omitempty"`
}

func connectionView(c store.Connection) connectionResponse {
	return connectionResponse{
		ID:          c.ID,
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Status:      c.Status,
		QRCode:      c.QRCode,
		LoginCode:   c.LoginCode,
		Error:       c.Error,
		CreatedAt:   c.CreatedAt,
		ConnectedAt: c.ConnectedAt,
	}
}
