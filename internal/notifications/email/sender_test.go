package email

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

// fakeSMTP is a minimal SMTP server. With greet false it accepts
// connections and never answers.
type fakeSMTP struct {
	ln    net.Listener
	greet bool

	mu    sync.Mutex
	conns []net.Conn
	data  []string
}

func startFakeSMTP(t *testing.T, greet bool) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeSMTP{ln: ln, greet: greet}
	go s.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, c := range s.conns {
			_ = c.Close()
		}
	})
	return s
}

func (s *fakeSMTP) port() string {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	return port
}

func (s *fakeSMTP) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data...)
}

func (s *fakeSMTP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *fakeSMTP) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	if !s.greet {
		_, _ = r.ReadString(0)
		return
	}

	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
	reply("220 fake.local ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake.local")
		case cmd == "DATA":
			reply("354 end data with <CR><LF>.<CR><LF>")
			var body strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			s.mu.Lock()
			s.data = append(s.data, body.String())
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func TestNewMessageHeaders(t *testing.T) {
	msg, err := newMessage("camp@example.com", EmailTask{
		Recipient: "camper@example.com",
		Subject:   "🔥 Ждём вас",
		HTML:      "<p>See you at camp</p>",
	}, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{"🔥 Ждём вас"}, msg.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "camper@example.com")
	assert.Contains(t, buf.String(), "text/html")
	assert.Contains(t, buf.String(), "See you at camp")
}

func TestNewMessageRejectsBadRecipient(t *testing.T) {
	_, err := newMessage("camp@example.com", EmailTask{Recipient: "not an address"}, time.Now())
	assert.Error(t, err)
}

func TestSMTPSenderDeliversMessage(t *testing.T) {
	srv := startFakeSMTP(t, true)
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: srv.port(), From: "camp@example.com", Timeout: 5 * time.Second})

	require.NoError(t, s.Send(context.Background(), EmailTask{
		Recipient: "camper@example.com",
		Subject:   "Camp",
		HTML:      "<p>See you at camp</p>",
	}))

	msgs := srv.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "camper@example.com")
	assert.Contains(t, msgs[0], "See you at camp")
}

func TestSMTPSenderStopsWhenContextEnds(t *testing.T) {
	srv := startFakeSMTP(t, false)
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: srv.port(), From: "camp@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Send(ctx, EmailTask{Recipient: "camper@example.com", Subject: "Camp", HTML: "<p>hi</p>"})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after its context expired")
	}
}

func TestSMTPSenderTimeoutBoundsStalledServer(t *testing.T) {
	srv := startFakeSMTP(t, false)
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: srv.port(), From: "camp@example.com", Timeout: 200 * time.Millisecond})

	start := time.Now()
	err := s.Send(context.Background(), EmailTask{Recipient: "camper@example.com", Subject: "Camp", HTML: "<p>hi</p>"})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: "25", From: "camp@example.com"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, EmailTask{Recipient: "a@example.com"}), context.Canceled)
}

func TestSMTPSenderRejectsBadPort(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: "smtp", From: "camp@example.com"})

	assert.ErrorContains(t, s.Send(context.Background(), EmailTask{Recipient: "a@example.com"}), "invalid SMTP port")
}
