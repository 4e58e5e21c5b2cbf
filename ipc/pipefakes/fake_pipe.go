// Package pipefakes provides a scripted Pipe for tests, simulating a
// privileged peer process without real inter-process communication.
package pipefakes

import (
	"sync"

	"github.com/jrsteele09/go-oidc-agent/ipc"
)

// FakePipe records every sent message and serves queued replies.
type FakePipe struct {
	mu      sync.Mutex
	sent    []ipc.Message
	replies []ipc.Message

	// SendErr and ReceiveErr force the corresponding call to fail.
	SendErr    error
	ReceiveErr error
}

// NewFakePipe creates an empty fake pipe.
func NewFakePipe() *FakePipe {
	return &FakePipe{}
}

var _ ipc.Pipe = (*FakePipe)(nil)

// QueueReply appends a message to be returned by a later Receive.
func (p *FakePipe) QueueReply(msg ipc.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, msg)
}

// Sent returns a copy of every message sent so far.
func (p *FakePipe) Sent() []ipc.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ipc.Message, len(p.sent))
	copy(out, p.sent)
	return out
}

func (p *FakePipe) Send(msg ipc.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SendErr != nil {
		return p.SendErr
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *FakePipe) Receive() (ipc.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ReceiveErr != nil {
		return ipc.Message{}, p.ReceiveErr
	}
	if len(p.replies) == 0 {
		return ipc.Message{}, errNoReply
	}
	msg := p.replies[0]
	p.replies = p.replies[1:]
	return msg, nil
}

type noReplyError struct{}

func (noReplyError) Error() string { return "fake pipe: no queued reply" }

var errNoReply = noReplyError{}
