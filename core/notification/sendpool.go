package notification

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/skillforge/skillforge/core"
)

// ErrPoolSaturated is returned by TrySend when the queue is full.
var ErrPoolSaturated = errors.New("send pool saturated")

// SendPool delivers interactive emails (OTPs, password resets) off the
// caller's request path through a small fixed pool of workers. Enqueue
// blocks once the buffer fills, so a slow provider applies backpressure
// instead of growing memory. Queue processing does not go through the
// pool; its pacing is the orchestrator's job.
type SendPool struct {
	dispatcher *Dispatcher
	logger     core.Logger

	jobs chan *core.EmailMessage
	wg   sync.WaitGroup
	once sync.Once
}

func NewSendPool(dispatcher *Dispatcher, workers, depth int, logger core.Logger) *SendPool {
	if workers < 1 {
		workers = 1
	}
	if depth < 0 {
		depth = 0
	}
	p := &SendPool{
		dispatcher: dispatcher,
		logger:     logger,
		jobs:       make(chan *core.EmailMessage, depth),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *SendPool) work() {
	defer p.wg.Done()
	for msg := range p.jobs {
		if err := msg.Render(); err != nil {
			p.logger.Error("rendering email", "subject", msg.Subject, "err", err)
			continue
		}
		if err := p.dispatcher.Send(context.Background(), msg); err != nil {
			p.logger.Error("sending email", "subject", msg.Subject, "err", err)
		}
	}
}

// SendAsync hands the message to the pool. Blocks while the queue is full.
func (p *SendPool) SendAsync(msg *core.EmailMessage) {
	p.jobs <- msg
}

// TrySend hands the message to the pool without blocking. Returns
// ErrPoolSaturated when the queue is full.
func (p *SendPool) TrySend(msg *core.EmailMessage) error {
	select {
	case p.jobs <- msg:
		return nil
	default:
		return ErrPoolSaturated
	}
}

// Stop drains queued messages and waits for in-flight sends.
func (p *SendPool) Stop() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

// InlineSender delivers interactive emails on the caller's goroutine,
// for deployments that opt out of the send pool.
type InlineSender struct {
	dispatcher *Dispatcher
	logger     core.Logger
}

func NewInlineSender(dispatcher *Dispatcher, logger core.Logger) *InlineSender {
	return &InlineSender{dispatcher: dispatcher, logger: logger}
}

func (s *InlineSender) SendAsync(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		s.logger.Error("rendering email", "subject", msg.Subject, "err", err)
		return
	}
	if err := s.dispatcher.Send(context.Background(), msg); err != nil {
		s.logger.Error("sending email", "subject", msg.Subject, "err", err)
	}
}
