// Package authz implements the Admission Authorizer: bearer-token
// verification, Family/Profile loading, and the pause/balance checks that
// gate every request before any upstream provider is touched.
package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DenyReason enumerates every way Authorize can refuse a request. Values
// mirror the Authorizer contract verbatim so a handler can map them to the
// right HTTP status without inspecting error strings.
type DenyReason string

const (
	DenyUnauthorized        DenyReason = "unauthorized"
	DenyIncompleteIdentity  DenyReason = "incomplete identity"
	DenyProfileNotFound     DenyReason = "profile not found"
	DenyProfilePaused       DenyReason = "profile paused"
	DenyFamilyNotFound      DenyReason = "family not found"
	DenyFamilyPaused        DenyReason = "family paused"
	DenyInsufficientBalance DenyReason = "insufficient balance"
	DenyDatabaseError       DenyReason = "database validation error"
)

// DenyError is returned by Authorize on refusal; Reason is the sole source
// of truth callers should branch on.
type DenyError struct {
	Reason DenyReason
	Detail string
}

func (e *DenyError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Identity is the sole artifact Authorize produces on success. Everything
// downstream treats it as read-only and authoritative.
type Identity struct {
	UserID           string
	FamilyID         string
	ProfileID        string
	Role             string
	HomeRegion       string
	IsAuthenticated  bool
}

// Claims is what an IdentityVerifier recovers from a bearer token.
type Claims struct {
	UserID    string
	FamilyID  string
	ProfileID string
	Region    string
}

// IdentityVerifier is the external IdP collaborator, listed as
// out of scope, made concrete enough to exercise: it turns a bearer token
// into Claims or reports why it could not.
type IdentityVerifier interface {
	Verify(ctx context.Context, bearerToken string, routeArn string) (Claims, error)
}

// Family mirrors the Family entity.
type Family struct {
	FamilyID          string
	TokenBalance      int64
	PauseStatusFamily bool
	PrimaryRegion     string
}

// Profile mirrors the Profile entity.
type Profile struct {
	ProfileID          string
	FamilyID           string
	Role               string
	PauseStatusProfile bool
	UserRegion         string
}

// ErrNotFound is returned by a Directory when a Family/Profile row is absent.
var ErrNotFound = errors.New("authz: row not found")

// Directory is the SQL-backed read path for Family/Profile rows, region
// prefixed by region, matching the persistence layout used elsewhere.
type Directory interface {
	LoadProfile(ctx context.Context, profileID, region string) (Profile, error)
	LoadFamily(ctx context.Context, familyID, region string) (Family, error)
}

// Authorizer implements the 5-step admission contract: verify identity, check
// claim completeness, then load and validate Profile and Family state.
type Authorizer struct {
	verifier  IdentityVerifier
	directory Directory
}

// New builds an Authorizer from its two external collaborators.
func New(verifier IdentityVerifier, directory Directory) *Authorizer {
	return &Authorizer{verifier: verifier, directory: directory}
}

// Authorize validates bearerToken against routeArn and, on success, returns
// the Identity the rest of the request pipeline must treat as ground truth.
func (a *Authorizer) Authorize(ctx context.Context, bearerToken, routeArn string) (*Identity, error) {
	claims, err := a.verifier.Verify(ctx, bearerToken, routeArn)
	if err != nil {
		return nil, &DenyError{Reason: DenyUnauthorized, Detail: err.Error()}
	}
	if claims.UserID == "" || claims.FamilyID == "" || claims.ProfileID == "" || claims.Region == "" {
		return nil, &DenyError{Reason: DenyIncompleteIdentity}
	}

	profile, err := a.directory.LoadProfile(ctx, claims.ProfileID, claims.Region)
	if errors.Is(err, ErrNotFound) {
		return nil, &DenyError{Reason: DenyProfileNotFound}
	}
	if err != nil {
		return nil, &DenyError{Reason: DenyDatabaseError, Detail: err.Error()}
	}
	if profile.PauseStatusProfile {
		return nil, &DenyError{Reason: DenyProfilePaused}
	}

	family, err := a.directory.LoadFamily(ctx, claims.FamilyID, claims.Region)
	if errors.Is(err, ErrNotFound) {
		return nil, &DenyError{Reason: DenyFamilyNotFound}
	}
	if err != nil {
		return nil, &DenyError{Reason: DenyDatabaseError, Detail: err.Error()}
	}
	if family.PauseStatusFamily {
		return nil, &DenyError{Reason: DenyFamilyPaused}
	}
	if family.TokenBalance <= 0 {
		return nil, &DenyError{Reason: DenyInsufficientBalance}
	}

	return &Identity{
		UserID:          claims.UserID,
		FamilyID:        claims.FamilyID,
		ProfileID:       claims.ProfileID,
		Role:            profile.Role,
		HomeRegion:      claims.Region,
		IsAuthenticated: true,
	}, nil
}

// wrapSQLErr turns sql.ErrNoRows into the package-level ErrNotFound so
// callers of Directory never import database/sql to check it.
func wrapSQLErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
