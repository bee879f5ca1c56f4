package notification

import (
	"context"

	"github.com/skillforge/skillforge/core"
)

// Dispatcher sends a message over the primary transport and falls back
// to the secondary when the primary rejects it. When both fail the
// primary error is returned: backoff and suppression classify the
// primary provider's verdict, the fallback is best effort.
type Dispatcher struct {
	primary  core.Transport
	fallback core.Transport
	logger   core.Logger
}

func NewDispatcher(primary, fallback core.Transport, logger core.Logger) *Dispatcher {
	return &Dispatcher{primary: primary, fallback: fallback, logger: logger}
}

func (d *Dispatcher) Send(ctx context.Context, msg *core.EmailMessage) error {
	err := d.primary.SendMessage(ctx, msg)
	if err == nil {
		return nil
	}
	if d.fallback == nil {
		return err
	}
	d.logger.Warn("primary email transport failed, trying fallback", "subject", msg.Subject, "err", err)
	if fbErr := d.fallback.SendMessage(ctx, msg); fbErr != nil {
		d.logger.Warn("fallback email transport failed", "subject", msg.Subject, "err", fbErr)
		return err
	}
	return nil
}
