package email

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-camp-tickets/internal/kafka"
	"ms-camp-tickets/internal/logger"

	kafkago "github.com/segmentio/kafka-go"
)

// TaskSource feeds queued messages to a handler until ctx ends.
type TaskSource interface {
	Run(ctx context.Context, handle kafka.Handler) error
}

// Worker is the background side of the email queue.
type Worker struct {
	source TaskSource
	sender Sender
	log    *logger.Logger
}

func NewWorker(source TaskSource, sender Sender, log *logger.Logger) *Worker {
	return &Worker{source: source, sender: sender, log: log}
}

func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("EMAIL", "Email worker started")
	return w.source.Run(ctx, w.Handle)
}

// Handle delivers one queued task. Undecodable tasks are skipped.
func (w *Worker) Handle(ctx context.Context, msg kafkago.Message) error {
	var task EmailTask
	if err := json.Unmarshal(msg.Value, &task); err != nil || task.Recipient == "" {
		w.log.Warn("EMAIL", fmt.Sprintf("Skipping undecodable email task at offset %d", msg.Offset))
		return nil
	}

	if err := w.sender.Send(ctx, task); err != nil {
		w.log.Error("EMAIL", fmt.Sprintf("Failed to send %s to %s: %v", task.Template, task.Recipient, err))
		return err
	}

	w.log.Info("EMAIL", fmt.Sprintf("Sent %s to %s", task.Template, task.Recipient))
	return nil
}
