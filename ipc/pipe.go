// Package ipc models the duplex message channel between the token core and a
// cooperating privileged process. The core treats a pipe as an injected
// capability: it delegates out-of-band steps (secret entry, re-encryption of
// an updated account configuration, status reporting) without interpreting
// how the peer fulfils them.
package ipc

import (
	"encoding/json"

	"github.com/google/uuid"
)

// MessageKind discriminates pipe messages.
type MessageKind string

const (
	// KindPrompt asks the peer to obtain a value from the user.
	KindPrompt MessageKind = "prompt"

	// KindPromptReply answers a prompt.
	KindPromptReply MessageKind = "prompt_reply"

	// KindAccountUpdate tells the peer an account's stored secrets changed
	// (e.g. a rotated refresh token) and must be re-persisted.
	KindAccountUpdate MessageKind = "account_update"

	// KindStatus carries a free-form status notification.
	KindStatus MessageKind = "status"
)

// Message is one framed pipe message.
type Message struct {
	ID      uuid.UUID       `json:"id"`
	Kind    MessageKind     `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Pipe is the duplex channel capability. Implementations decide framing and
// transport; the core only sends and receives messages. A nil Pipe is valid
// wherever the flow has no out-of-band step to delegate.
type Pipe interface {
	Send(msg Message) error
	Receive() (Message, error)
}

// PromptPayload asks the peer to collect a value from the user.
type PromptPayload struct {
	Text   string `json:"text"`
	Secret bool   `json:"secret"`
}

// PromptReplyPayload carries the collected value back.
type PromptReplyPayload struct {
	Value string `json:"value"`
}

// AccountUpdatePayload identifies the account whose secrets changed.
type AccountUpdatePayload struct {
	Account string `json:"account"`
}
