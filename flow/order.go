package flow

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
	"github.com/jrsteele09/go-oidc-agent/internal/utils"
	"github.com/jrsteele09/go-oidc-agent/oauthmodel"
)

// DefaultOrder returns the fixed default flow order: refresh, password,
// authorization code, device.
func DefaultOrder() []string {
	return []string{
		oauthmodel.FlowNameRefresh,
		oauthmodel.FlowNamePassword,
		oauthmodel.FlowNameCode,
		oauthmodel.FlowNameDevice,
	}
}

// ParseOrder turns a configured flow preference into an ordered,
// deduplicated sequence of flow names.
//
//   - Empty input yields the default order.
//   - A bare name yields a singleton containing that name verbatim. The name
//     is not validated here; an invalid one surfaces later, when the order is
//     consumed, as ErrUnknownFlow.
//   - Input with a leading "[" is decoded as a JSON array of flow names,
//     given order preserved, repeats dropped (first occurrence wins).
//     Malformed encodings yield ErrMalformedFlowList.
func ParseOrder(spec string) ([]string, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return DefaultOrder(), nil
	}

	if !strings.HasPrefix(trimmed, "[") {
		return []string{trimmed}, nil
	}

	var raw []any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, errors.Wrap(agenterrors.ErrMalformedFlowList, err.Error())
	}
	names := utils.ToStringSlice(raw)
	if len(names) != len(raw) {
		return nil, errors.Wrap(agenterrors.ErrMalformedFlowList, "non-string element")
	}

	return dedupe(names), nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	ordered := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		ordered = append(ordered, name)
	}
	return ordered
}
