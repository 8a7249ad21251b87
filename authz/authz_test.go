package authz

import (
	"context"
	"errors"
	"testing"
)

type fakeVerifier struct {
	claims Claims
	err    error
}

func (f fakeVerifier) Verify(context.Context, string, string) (Claims, error) {
	return f.claims, f.err
}

type fakeDirectory struct {
	profiles map[string]Profile
	families map[string]Family
	dbErr    error
}

func (f fakeDirectory) LoadProfile(_ context.Context, profileID, _ string) (Profile, error) {
	if f.dbErr != nil {
		return Profile{}, f.dbErr
	}
	p, ok := f.profiles[profileID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (f fakeDirectory) LoadFamily(_ context.Context, familyID, _ string) (Family, error) {
	if f.dbErr != nil {
		return Family{}, f.dbErr
	}
	fam, ok := f.families[familyID]
	if !ok {
		return Family{}, ErrNotFound
	}
	return fam, nil
}

func validClaims() Claims {
	return Claims{UserID: "u1", FamilyID: "fam1", ProfileID: "prof1", Region: "us-east-1"}
}

func okDirectory() fakeDirectory {
	return fakeDirectory{
		profiles: map[string]Profile{"prof1": {ProfileID: "prof1", FamilyID: "fam1", Role: "member", PauseStatusProfile: false, UserRegion: "us-east-1"}},
		families: map[string]Family{"fam1": {FamilyID: "fam1", TokenBalance: 100, PauseStatusFamily: false, PrimaryRegion: "us-east-1"}},
	}
}

func TestAuthorize_Allow(t *testing.T) {
	a := New(fakeVerifier{claims: validClaims()}, okDirectory())
	id, err := a.Authorize(context.Background(), "token", "route")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if id.FamilyID != "fam1" || id.ProfileID != "prof1" || !id.IsAuthenticated {
		t.Errorf("Identity = %+v, want populated authenticated identity", id)
	}
}

func TestAuthorize_VerifierFailureDeniesUnauthorized(t *testing.T) {
	a := New(fakeVerifier{err: errors.New("bad signature")}, okDirectory())
	_, err := a.Authorize(context.Background(), "token", "route")
	assertDeny(t, err, DenyUnauthorized)
}

func TestAuthorize_IncompleteClaims(t *testing.T) {
	a := New(fakeVerifier{claims: Claims{UserID: "u1"}}, okDirectory())
	_, err := a.Authorize(context.Background(), "token", "route")
	assertDeny(t, err, DenyIncompleteIdentity)
}

func TestAuthorize_ProfileNotFound(t *testing.T) {
	dir := okDirectory()
	delete(dir.profiles, "prof1")
	a := New(fakeVerifier{claims: validClaims()}, dir)
	_, err := a.Authorize(context.Background(), "token", "route")
	assertDeny(t, err, DenyProfileNotFound)
}

func TestAuthorize_ProfilePaused(t *testing.T) {
	dir := okDirectory()
	p := dir.profiles["prof1"]
	p.PauseStatusProfile = true
	dir.profiles["prof1"] = p
	a := New(fakeVerifier{claims: validClaims()}, dir)
	_, err := a.Authorize(context.Background(), "token", "route")
	assertDeny(t, err, DenyProfilePaused)
}

func TestAuthorize_FamilyNotFound(t *testing.T) {
	dir := okDirectory()
	delete(dir.families, "fam1")
	a := New(fakeVerifier{claims: validClaims()}, dir)
	_, err := a.Authorize(context.Background(), "token", "route")
	assertDeny(t, err, DenyFamilyNotFound)
}

func TestAuthorize_FamilyPaused(t *testing.T) {
	dir := okDirectory()
	fam := dir.families["fam1"]
	fam.PauseStatusFamily = true
	dir.families["fam1"] = fam
	a := New(fakeVerifier{claims: validClaims()}, dir)
	_, err := a.Authorize(context.Background(), "token", "route")
	assertDeny(t, err, DenyFamilyPaused)
}

func TestAuthorize_InsufficientBalance(t *testing.T) {
	dir := okDirectory()
	fam := dir.families["fam1"]
	fam.TokenBalance = 0
	dir.families["fam1"] = fam
	a := New(fakeVerifier{claims: validClaims()}, dir)
	_, err := a.Authorize(context.Background(), "token", "route")
	assertDeny(t, err, DenyInsufficientBalance)
}

func TestAuthorize_DatabaseFault(t *testing.T) {
	dir := okDirectory()
	dir.dbErr = errors.New("connection reset")
	a := New(fakeVerifier{claims: validClaims()}, dir)
	_, err := a.Authorize(context.Background(), "token", "route")
	assertDeny(t, err, DenyDatabaseError)
}

func assertDeny(t *testing.T, err error, want DenyReason) {
	t.Helper()
	var denyErr *DenyError
	if !errors.As(err, &denyErr) {
		t.Fatalf("error = %v, want *DenyError", err)
	}
	if denyErr.Reason != want {
		t.Errorf("Reason = %q, want %q", denyErr.Reason, want)
	}
}
