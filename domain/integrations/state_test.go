package integrations

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	in := State{
		UserID:    "4d0f1f20-7f3a-4a36-9d2e-1f8b2a6c9e11",
		CompanyID: "a31c29c4-5d0b-41f9-8f02-6a7d3b1e4c55",
		Provider:  "hubspot",
		ReturnTo:  "/settings/integrations",
	}

	out, err := DecodeState(EncodeState(in))
	require.NoError(t, err)
	assert.Equal(t, in, *out)
}

func TestDecodeStateRejectsInvalid(t *testing.T) {
	encode := func(s State) string { return EncodeState(s) }

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not base64", "!!not-base64!!"},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("hello"))},
		{"missing user", encode(State{CompanyID: "c", Provider: "slack"})},
		{"missing company", encode(State{UserID: "u", Provider: "slack"})},
		{"unknown provider", encode(State{UserID: "u", CompanyID: "c", Provider: "fax_machine"})},
		{"absolute return_to", encode(State{UserID: "u", CompanyID: "c", Provider: "slack", ReturnTo: "https://evil.example"})},
		{"scheme-relative return_to", encode(State{UserID: "u", CompanyID: "c", Provider: "slack", ReturnTo: "//evil.example"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeState(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestDecodeStateDefaultsReturnTo(t *testing.T) {
	out, err := DecodeState(EncodeState(State{
		UserID:    "u",
		CompanyID: "c",
		Provider:  "outlook",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/", out.ReturnTo)
}

func TestDecodeStateAcceptsPaddedBase64(t *testing.T) {
	raw := EncodeState(State{UserID: "u", CompanyID: "c", Provider: "slack"})
	data, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	padded := base64.URLEncoding.EncodeToString(data)

	out, err := DecodeState(padded)
	require.NoError(t, err)
	assert.Equal(t, "u", out.UserID)
}
