package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host      string
	Port      string
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.Port != "" && c.FromEmail != ""
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPEmailSender delivers multipart (text + HTML) mail through an SMTP relay.
type SMTPEmailSender struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

func NewSMTPEmailSender(cfg SMTPConfig) (*SMTPEmailSender, error) {
	if !cfg.IsConfigured() {
		return nil, errors.New("email not configured (set SMTP_HOST, SMTP_PORT, FROM_EMAIL)")
	}
	return &SMTPEmailSender{cfg: cfg, sendMail: smtp.SendMail}, nil
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, msg ports.EmailMessage) (ports.DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DeliveryResult{}, err
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return ports.DeliveryResult{}, errors.New("recipient is required")
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.cfg.Host)
	body, err := s.buildMessage(to, messageID, msg)
	if err != nil {
		return ports.DeliveryResult{}, err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := s.cfg.Host + ":" + s.cfg.Port
	if err := s.sendMail(addr, auth, s.cfg.FromEmail, []string{to}, body); err != nil {
		return ports.DeliveryResult{}, fmt.Errorf("send email: %w", err)
	}
	return ports.DeliveryResult{MessageID: messageID}, nil
}

func (s *SMTPEmailSender) buildMessage(to, messageID string, msg ports.EmailMessage) ([]byte, error) {
	from := s.cfg.FromEmail
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.FromEmail)
	}

	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)
	for _, part := range []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		if part.body == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"Message-ID: " + messageID,
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + mw.Boundary(),
	}
	var out bytes.Buffer
	out.WriteString(strings.Join(headers, "\r\n"))
	out.WriteString("\r\n\r\n")
	out.Write(parts.Bytes())
	return out.Bytes(), nil
}
