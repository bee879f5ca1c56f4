package emailsvc

import (
	"context"
	"fmt"
	"net/textproto"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/skillforge/skillforge/core"
)

type smtpTransport struct {
	dialer *gomail.Dialer
	from   string
	host   string
	logger core.Logger
}

var _ core.Transport = (*smtpTransport)(nil)

func NewSMTPTransport(conf *core.Config, logger core.Logger) *smtpTransport {
	return &smtpTransport{
		dialer: gomail.NewDialer(conf.SMTP.Host, conf.SMTP.Port, conf.SMTP.User, conf.SMTP.Password),
		from:   conf.DefaultFromEmail.String(),
		host:   conf.SMTP.Host,
		logger: logger,
	}
}

func (t *smtpTransport) SendMessage(ctx context.Context, msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return &core.SendError{Msg: "email has no recipients or content"}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	to := make([]string, len(msg.To))
	for i, addr := range msg.To {
		to[i] = m.FormatAddress(addr.Address, addr.Name)
	}
	m.SetHeader("To", to...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-Id", fmt.Sprintf("<%s@%s>", uuid.New(), t.host))
	if msg.TextContent != "" {
		m.SetBody("text/plain", msg.TextContent)
		if msg.HTMLContent != "" {
			m.AddAlternative("text/html", msg.HTMLContent)
		}
	} else {
		m.SetBody("text/html", msg.HTMLContent)
	}

	done := make(chan error, 1)
	go func() { done <- t.dialer.DialAndSend(m) }()

	var err error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err = <-done:
	}
	if err == nil {
		return nil
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &core.SendError{Code: tpErr.Code, Msg: tpErr.Msg, Err: err}
	}
	return &core.SendError{Msg: err.Error(), Err: err}
}
