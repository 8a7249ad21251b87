package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"
)

// ServiceVerifier is the service-to-service fallback path: instead of
// verifying a caller-presented bearer token locally, it exchanges the
// gateway's own client credentials for an access token at tokenURL, uses
// that token to call introspectURL, and trusts the response's claims. Used when a caller authenticates via
// a trusted service identity rather than an end-user JWT (e.g. an
// internal batch job), per the "external IdP" collaborator the core
// treats as out of scope.
type ServiceVerifier struct {
	config        clientcredentials.Config
	introspectURL string
	httpClient    *http.Client
}

// NewServiceVerifier builds a ServiceVerifier that fetches its own access
// token via the OAuth2 client-credentials grant at tokenURL, then presents
// it to introspectURL to recover the caller's identity claims.
func NewServiceVerifier(clientID, clientSecret, tokenURL, introspectURL string) *ServiceVerifier {
	return &ServiceVerifier{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		},
		introspectURL: introspectURL,
		httpClient:    http.DefaultClient,
	}
}

type introspectionResponse struct {
	Active    bool   `json:"active"`
	UserID    string `json:"user_id"`
	FamilyID  string `json:"family_id"`
	ProfileID string `json:"profile_id"`
	Region    string `json:"region"`
}

// Verify implements IdentityVerifier by introspecting bearerToken against
// the configured introspection endpoint, authenticating the introspection
// call itself with a service token obtained via client-credentials.
func (v *ServiceVerifier) Verify(ctx context.Context, bearerToken, _ string) (Claims, error) {
	client := v.config.Client(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.introspectURL, nil)
	if err != nil {
		return Claims{}, fmt.Errorf("authz: building introspection request: %w", err)
	}
	q := req.URL.Query()
	q.Set("token", bearerToken)
	req.URL.RawQuery = q.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return Claims{}, fmt.Errorf("authz: introspection request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Claims{}, fmt.Errorf("authz: introspection endpoint returned status %d", resp.StatusCode)
	}

	var body introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Claims{}, fmt.Errorf("authz: decoding introspection response: %w", err)
	}
	if !body.Active {
		return Claims{}, fmt.Errorf("authz: token is not active")
	}

	return Claims{
		UserID:    body.UserID,
		FamilyID:  body.FamilyID,
		ProfileID: body.ProfileID,
		Region:    body.Region,
	}, nil
}
