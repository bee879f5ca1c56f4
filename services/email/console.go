package emailsvc

import (
	"context"
	"sync"

	"github.com/skillforge/skillforge/core"
)

// ConsoleTransport logs messages instead of delivering them and keeps
// a copy of everything sent. Used in local dev and in tests; FailWith
// makes the next sends fail with a canned error.
type ConsoleTransport struct {
	logger core.Logger

	mu       sync.Mutex
	sent     []core.EmailMessage
	failWith error
}

var _ core.Transport = (*ConsoleTransport)(nil)

func NewConsoleTransport(logger core.Logger) *ConsoleTransport {
	return &ConsoleTransport{logger: logger}
}

func (t *ConsoleTransport) SendMessage(_ context.Context, msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failWith != nil {
		return t.failWith
	}
	t.sent = append(t.sent, *msg)
	if t.logger != nil {
		t.logger.Info("email sent to console", "to", msg.To, "subject", msg.Subject)
	}
	return nil
}

// FailWith makes subsequent sends return err. Pass nil to recover.
func (t *ConsoleTransport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failWith = err
}

// Sent returns a copy of all delivered messages.
func (t *ConsoleTransport) Sent() []core.EmailMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.EmailMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

// Clear drops recorded messages.
func (t *ConsoleTransport) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}
