package email

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"ms-camp-tickets/internal/logger"
	qr "ms-camp-tickets/internal/tickets/qr_generator"
)

// Publisher enqueues a task on the email topic.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v interface{}) error
}

type Dispatcher struct {
	renderer  *Renderer
	publisher Publisher
	qr        *qr.QRGenerator
	subject   string
	log       *logger.Logger
}

// NewDispatcher wires the renderer to the queue. qrGen may be nil, in which
// case emails carry no QR pass.
func NewDispatcher(renderer *Renderer, publisher Publisher, qrGen *qr.QRGenerator, subject string, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		renderer:  renderer,
		publisher: publisher,
		qr:        qrGen,
		subject:   subject,
		log:       log,
	}
}

// Dispatch renders templateName and enqueues the email. It does not wait
// for delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, templateName, recipient string, data ConfirmationData) error {
	if d.qr != nil {
		uri, err := d.qr.DataURI(qr.Pass{
			PaymentID: data.PaymentID,
			Email:     recipient,
			Tickets:   data.Tickets,
			IssuedAt:  time.Now().UTC(),
		})
		if err != nil {
			d.log.Warn("EMAIL", fmt.Sprintf("QR pass for %s not generated: %v", recipient, err))
		} else {
			data.QRCode = template.URL(uri)
		}
	}

	html, err := d.renderer.Render(templateName, data)
	if err != nil {
		return err
	}

	task := EmailTask{
		Recipient: recipient,
		Subject:   d.subject,
		HTML:      html,
		Template:  templateName,
	}
	if err := d.publisher.PublishJSON(ctx, recipient, task); err != nil {
		return fmt.Errorf("failed to enqueue %s for %s: %w", templateName, recipient, err)
	}

	d.log.Info("EMAIL", fmt.Sprintf("Queued %s for %s", templateName, recipient))
	return nil
}
