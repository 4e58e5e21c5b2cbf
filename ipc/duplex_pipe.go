package ipc

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
)

// DuplexPipe frames JSON messages over a reader/writer pair, typically the
// two halves of an OS pipe to the peer process. Waits for human interaction
// are unbounded unless a receive timeout is configured; an expired wait
// surfaces as ErrPipeTimeout, a flow failure rather than a crash.
type DuplexPipe struct {
	writeMu sync.Mutex
	enc     *json.Encoder

	r        io.Reader
	timeout  time.Duration
	once     sync.Once
	incoming chan inbound

	closeOnce sync.Once
	done      chan struct{}
}

type inbound struct {
	msg Message
	err error
}

// DuplexPipeOption modifies a DuplexPipe.
type DuplexPipeOption func(*DuplexPipe)

// WithReceiveTimeout bounds every Receive call. Zero means wait forever.
func WithReceiveTimeout(d time.Duration) DuplexPipeOption {
	return func(p *DuplexPipe) {
		p.timeout = d
	}
}

// NewDuplexPipe wraps the in/out byte channels to a cooperating process.
func NewDuplexPipe(r io.Reader, w io.Writer, options ...DuplexPipeOption) *DuplexPipe {
	p := &DuplexPipe{
		enc:      json.NewEncoder(w),
		r:        r,
		incoming: make(chan inbound, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

var _ Pipe = (*DuplexPipe)(nil)

// Send writes one framed message. A missing ID is assigned.
func (p *DuplexPipe) Send(msg Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.enc.Encode(msg); err != nil {
		return errors.Wrap(err, "[ipc.Send] encoding message")
	}
	return nil
}

// Receive blocks for the next message from the peer, up to the configured
// timeout.
func (p *DuplexPipe) Receive() (Message, error) {
	p.once.Do(func() { go p.readLoop() })

	var timeoutCh <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case in, ok := <-p.incoming:
		if !ok {
			return Message{}, agenterrors.ErrPipeClosed
		}
		if in.err != nil {
			return Message{}, in.err
		}
		return in.msg, nil
	case <-p.done:
		return Message{}, agenterrors.ErrPipeClosed
	case <-timeoutCh:
		return Message{}, agenterrors.ErrPipeTimeout
	}
}

// Close releases the read loop. Further Receive calls return ErrPipeClosed.
// Closing does not close the underlying reader or writer.
func (p *DuplexPipe) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

func (p *DuplexPipe) readLoop() {
	dec := json.NewDecoder(p.r)
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				close(p.incoming)
				return
			}
			p.deliver(inbound{err: errors.Wrap(err, "[ipc.Receive] decoding message")})
			close(p.incoming)
			return
		}
		if !p.deliver(inbound{msg: msg}) {
			return
		}
	}
}

// deliver hands a decoded message to Receive without blocking past Close, so
// an abandoned pipe does not pin its read goroutine forever.
func (p *DuplexPipe) deliver(in inbound) bool {
	select {
	case p.incoming <- in:
		return true
	case <-p.done:
		return false
	}
}

// Prompt asks the peer to collect a value from the user and waits for the
// reply. Secret marks values that must not be echoed or logged by the peer.
func Prompt(p Pipe, text string, secret bool) (string, error) {
	payload, err := json.Marshal(PromptPayload{Text: text, Secret: secret})
	if err != nil {
		return "", errors.Wrap(err, "[ipc.Prompt] encoding payload")
	}
	if err := p.Send(Message{Kind: KindPrompt, Payload: payload}); err != nil {
		return "", err
	}

	reply, err := p.Receive()
	if err != nil {
		return "", err
	}
	if reply.Kind != KindPromptReply {
		return "", errors.Errorf("[ipc.Prompt] unexpected reply kind %q", reply.Kind)
	}
	var replyPayload PromptReplyPayload
	if err := json.Unmarshal(reply.Payload, &replyPayload); err != nil {
		return "", errors.Wrap(err, "[ipc.Prompt] decoding reply")
	}
	return replyPayload.Value, nil
}

// NotifyAccountUpdate tells the peer the named account's stored secrets
// changed and should be re-encrypted and persisted. Fire and forget: the
// token the caller is waiting on does not depend on the peer's answer.
func NotifyAccountUpdate(p Pipe, accountName string) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(AccountUpdatePayload{Account: accountName})
	if err != nil {
		return errors.Wrap(err, "[ipc.NotifyAccountUpdate] encoding payload")
	}
	return p.Send(Message{Kind: KindAccountUpdate, Payload: payload})
}
