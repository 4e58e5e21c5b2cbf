package flow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oidc-agent/flow"
	agenterrors "github.com/jrsteele09/go-oidc-agent/internal/errors"
)

func TestParseOrderDefault(t *testing.T) {
	order, err := flow.ParseOrder("")
	require.NoError(t, err)
	require.Equal(t, []string{"refresh_token", "password", "authorization_code", "device"}, order)
}

func TestParseOrderBareName(t *testing.T) {
	order, err := flow.ParseOrder("password")
	require.NoError(t, err)
	require.Equal(t, []string{"password"}, order)

	// Bare names are not validated at parse time; invalid ones surface as a
	// dispatch error when the order is consumed.
	order, err = flow.ParseOrder("smoke_signals")
	require.NoError(t, err)
	require.Equal(t, []string{"smoke_signals"}, order)
}

func TestParseOrderJSONList(t *testing.T) {
	order, err := flow.ParseOrder(`["device","code"]`)
	require.NoError(t, err)
	require.Equal(t, []string{"device", "code"}, order)
}

func TestParseOrderDeduplicates(t *testing.T) {
	order, err := flow.ParseOrder(`["device","device","code","device"]`)
	require.NoError(t, err)
	require.Equal(t, []string{"device", "code"}, order)
}

func TestParseOrderMalformed(t *testing.T) {
	for _, spec := range []string{`["device"`, `[1,2]`, `[{"flow":"device"}]`} {
		_, err := flow.ParseOrder(spec)
		require.ErrorIs(t, err, agenterrors.ErrMalformedFlowList, "spec %q", spec)
	}
}

func TestKindFromName(t *testing.T) {
	tests := []struct {
		name string
		want flow.Kind
	}{
		{"refresh_token", flow.KindRefresh},
		{"refresh", flow.KindRefresh},
		{"password", flow.KindPassword},
		{"authorization_code", flow.KindCode},
		{"code", flow.KindCode},
		{"device", flow.KindDevice},
		{" Device ", flow.KindDevice},
	}
	for _, tc := range tests {
		kind, err := flow.KindFromName(tc.name)
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.want, kind, tc.name)
	}

	_, err := flow.KindFromName("carrier_pigeon")
	require.ErrorIs(t, err, agenterrors.ErrUnknownFlow)
}
