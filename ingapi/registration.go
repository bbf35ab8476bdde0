package ingapi

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/vitalvas/ingsig/httpsig"
)

// Registration is the outcome of a successful token call. It lives for one
// flow; the server key is never cached beyond it.
type Registration struct {
	AccessToken     string
	TokenType       string
	Scope           string
	ExpiresIn       int
	ServerPublicKey *rsa.PublicKey
}

type tokenResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	Scope       string            `json:"scope"`
	ExpiresIn   int               `json:"expires_in"`
	Keys        []json.RawMessage `json:"keys"`
}

// ParseRegistration decodes a token response. The server key is taken from
// the first entry of "keys".
func ParseRegistration(body []byte) (*Registration, error) {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenResponse, err)
	}

	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token missing", ErrInvalidTokenResponse)
	}

	if len(resp.Keys) == 0 {
		return nil, fmt.Errorf("%w: keys missing", ErrInvalidTokenResponse)
	}

	key, err := httpsig.ParseJWK(resp.Keys[0])
	if err != nil {
		return nil, fmt.Errorf("%w: keys[0]: %v", ErrInvalidTokenResponse, err)
	}

	return &Registration{
		AccessToken:     resp.AccessToken,
		TokenType:       resp.TokenType,
		Scope:           resp.Scope,
		ExpiresIn:       resp.ExpiresIn,
		ServerPublicKey: key,
	}, nil
}
