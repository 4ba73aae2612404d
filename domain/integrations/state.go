package integrations

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// State is the payload carried through the OAuth redirect boundary in the
// `state` query parameter. It is the only context available when the
// provider calls back, and it is untrusted input: DecodeState validates the
// shape before anything uses it.
type State struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Provider  string `json:"provider"`
	ReturnTo  string `json:"return_to"`
}

// EncodeState serializes a State as base64url JSON.
func EncodeState(s State) string {
	data, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeState parses and validates a raw state parameter.
func DecodeState(raw string) (*State, error) {
	if raw == "" {
		return nil, fmt.Errorf("state parameter is empty")
	}

	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		// Some providers re-encode the state with padding
		data, err = base64.URLEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("state is not valid base64url: %w", err)
		}
	}

	s := &State{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("state is not valid JSON: %w", err)
	}

	if s.UserID == "" || s.CompanyID == "" {
		return nil, fmt.Errorf("state is missing tenant identifiers")
	}
	if _, err := ParseProvider(s.Provider); err != nil {
		return nil, fmt.Errorf("state carries %w", err)
	}
	if s.ReturnTo == "" {
		s.ReturnTo = "/"
	}
	// Only relative redirect targets are honored; an absolute URL in a
	// forged state must not turn the callback into an open redirect.
	if !strings.HasPrefix(s.ReturnTo, "/") || strings.HasPrefix(s.ReturnTo, "//") {
		return nil, fmt.Errorf("state return_to must be a relative path")
	}

	return s, nil
}
