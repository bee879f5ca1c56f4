package emailsvc

import (
	"context"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/skillforge/skillforge/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

type sendgridTransport struct {
	key    string
	from   *sgmail.Email
	logger core.Logger
}

var _ core.Transport = (*sendgridTransport)(nil)

func NewSendgridTransport(conf *core.Config, logger core.Logger) *sendgridTransport {
	return &sendgridTransport{
		key:    conf.Sendgrid.APIKey,
		from:   sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		logger: logger,
	}
}

func (t *sendgridTransport) SendMessage(ctx context.Context, msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return &core.SendError{Msg: "email has no recipients or content"}
	}

	req := sendgrid.GetRequest(t.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(t.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return &core.SendError{Msg: err.Error(), Err: err}
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		return &core.SendError{Code: res.StatusCode, Msg: res.Body}
	}
	return nil
}

func (t *sendgridTransport) prepare(msg *core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(t.getSGEmail(to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(t.from)
	m.AddPersonalizations(p)
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func (t *sendgridTransport) getSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}
