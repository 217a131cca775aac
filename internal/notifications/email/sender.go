package email

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, task EmailTask) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	// Timeout bounds one whole delivery. Zero means only ctx bounds it.
	Timeout time.Duration
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers task over SMTP. Network I/O is aborted as soon as ctx ends.
func (s *SMTPSender) Send(ctx context.Context, task EmailTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	msg, err := newMessage(s.cfg.From, task, time.Now())
	if err != nil {
		return err
	}

	dial, release := cancellableDial(ctx)
	defer release()

	client, err := s.newClient(dial)
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp send to %s aborted: %w", task.Recipient, ctxErr)
		}
		return fmt.Errorf("smtp send to %s failed: %w", task.Recipient, err)
	}
	return nil
}

func (s *SMTPSender) newClient(dial mail.DialContextFunc) (*mail.Client, error) {
	port, err := strconv.Atoi(s.cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port %q: %w", s.cfg.Port, err)
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(dial),
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client, nil
}

// cancellableDial returns a dialer whose connections stop all I/O once ctx
// ends. release must be called when the delivery is over.
func cancellableDial(ctx context.Context) (mail.DialContextFunc, func()) {
	var mu sync.Mutex
	var stops []func() bool

	dial := func(dialCtx context.Context, network, address string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(dialCtx, network, address)
		if err != nil {
			return nil, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		stop := context.AfterFunc(ctx, func() {
			_ = conn.SetDeadline(time.Now())
		})
		mu.Lock()
		stops = append(stops, stop)
		mu.Unlock()
		return conn, nil
	}

	release := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, stop := range stops {
			stop()
		}
	}
	return dial, release
}

func newMessage(from string, task EmailTask, now time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}
	if err := msg.To(task.Recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", task.Recipient, err)
	}
	msg.Subject(task.Subject)
	msg.SetDateWithValue(now)
	msg.SetBodyString(mail.TypeTextHTML, task.HTML)
	return msg, nil
}
