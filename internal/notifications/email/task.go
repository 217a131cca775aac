package email

import (
	"html/template"

	"ms-camp-tickets/internal/models"
)

// EmailTask is the message carried on the transactional email topic.
type EmailTask struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
	Template  string `json:"template"`
}

// ConfirmationData is the render context of a purchase confirmation.
type ConfirmationData struct {
	// User is nil when no account shares the purchaser's email
	User       *models.User
	Email      string
	PaymentID  string
	Tickets    []string
	SalesCount int
	QRCode     template.URL
}
