// Package flow implements the four OAuth2 grant strategies the agent can run
// against an issuer's token endpoint, and the parsing of configured flow
// preferences into an ordered sequence of flow kinds.
package flow

import (
	"strings"

	"github.com/pkg/errors"

	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
	"github.com/jrsteele09/go-oidc-agent/oauthmodel"
)

// Kind is the closed set of grant flows the agent knows how to run.
type Kind int

const (
	KindRefresh Kind = iota
	KindPassword
	KindCode
	KindDevice
)

// String returns the canonical external identifier for the flow.
func (k Kind) String() string {
	switch k {
	case KindRefresh:
		return oauthmodel.FlowNameRefresh
	case KindPassword:
		return oauthmodel.FlowNamePassword
	case KindCode:
		return oauthmodel.FlowNameCode
	case KindDevice:
		return oauthmodel.FlowNameDevice
	default:
		return "unknown"
	}
}

// KindFromName maps a flow identifier to its Kind. Both the canonical tokens
// (refresh_token, password, authorization_code, device) and the short forms
// used inside flow-order lists (refresh, code) are accepted. Unknown names
// are rejected here, at the boundary where a flow order is consumed, rather
// than deep inside dispatch.
func KindFromName(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case oauthmodel.FlowNameRefresh, "refresh":
		return KindRefresh, nil
	case oauthmodel.FlowNamePassword:
		return KindPassword, nil
	case oauthmodel.FlowNameCode, "code":
		return KindCode, nil
	case oauthmodel.FlowNameDevice:
		return KindDevice, nil
	default:
		return 0, errors.Wrap(agenterrors.ErrUnknownFlow, name)
	}
}
