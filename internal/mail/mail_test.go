package mail

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	m := buildMessage("reports@example.com", Message{
		To:      "alice@example.com",
		Subject: "Monthly Financial Report - December 2024",
		HTML:    "<p>hello</p>",
		Attachment: &Attachment{
			Filename:    "Monthly_Report_December_2024.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.3"),
		},
	})

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "From: reports@example.com")
	assert.Contains(t, raw, "To: alice@example.com")
	assert.Contains(t, raw, "Subject: Monthly Financial Report - December 2024")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "application/pdf")
	assert.Contains(t, raw, "Monthly_Report_December_2024.pdf")
}

func TestMessageValidate(t *testing.T) {
	assert.ErrorIs(t, Message{Subject: "x"}.Validate(), ErrNoRecipient)
	assert.Error(t, Message{To: "a@example.com", Attachment: &Attachment{}}.Validate())
	assert.NoError(t, Message{To: "a@example.com"}.Validate())
}

func TestSMTPSenderHonoursContext(t *testing.T) {
	// A server that accepts connections but never sends a greeting
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	conns := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns <- conn
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		for {
			select {
			case c := <-conns:
				c.Close()
			default:
				return
			}
		}
	})

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	sender := NewSMTPSender(SMTPConfig{Host: host, Port: port, From: "reports@example.com"})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = sender.Send(ctx, Message{To: "alice@example.com", Subject: "s", HTML: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	boom := errors.New("mailbox unavailable")
	r.FailFor["bob@example.com"] = boom

	ctx := context.Background()
	require.NoError(t, r.Send(ctx, Message{To: "alice@example.com"}))
	assert.ErrorIs(t, r.Send(ctx, Message{To: "bob@example.com"}), boom)

	assert.Len(t, r.Attempts(), 2)
	require.Len(t, r.Sent(), 1)
	assert.Equal(t, "alice@example.com", r.Sent()[0].To)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, r.Send(cancelled, Message{To: "alice@example.com"}), context.Canceled)
	assert.Len(t, r.Attempts(), 2)
}
