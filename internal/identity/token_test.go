package identity_test

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/educhain-dev/educhain/internal/identity"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestParticipantTokenRoundTrip(t *testing.T) {
	issuer := identity.NewTokenIssuer(testKey(t), "http://localhost:8080", time.Hour)

	token, err := issuer.IssueParticipant("43474542")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.DNI != "43474542" {
		t.Errorf("dni = %q, want 43474542", claims.DNI)
	}

	caller := claims.Caller()
	if caller.DNI() != "43474542" {
		t.Errorf("caller dni = %q, want 43474542", caller.DNI())
	}
	if caller.IsBootstrapAdmin() {
		t.Error("participant resolved as bootstrap admin")
	}
}

func TestAdminTokenCarriesBootstrapAttribute(t *testing.T) {
	issuer := identity.NewTokenIssuer(testKey(t), "http://localhost:8080", time.Hour)

	token, err := issuer.IssueAdmin(0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	caller := claims.Caller()
	if !caller.IsBootstrapAdmin() {
		t.Error("admin token did not resolve as bootstrap admin")
	}
	if caller.DNI() != "" {
		t.Errorf("admin caller dni = %q, want empty", caller.DNI())
	}
	if v, ok := caller.CallerAttribute(identity.AttrBootstrapAdmin); !ok || v != "true" {
		t.Errorf("bootstrap attribute = %q/%v, want true/true", v, ok)
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	issuerA := identity.NewTokenIssuer(testKey(t), "http://localhost:8080", time.Hour)
	issuerB := identity.NewTokenIssuer(testKey(t), "http://localhost:8080", time.Hour)

	token, err := issuerA.IssueParticipant("1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuerB.Verify(token); err == nil {
		t.Error("token signed with a different key was accepted")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	key := testKey(t)
	signer := identity.NewTokenIssuer(key, "http://evil.example", time.Hour)
	verifier := identity.NewTokenIssuer(key, "http://localhost:8080", time.Hour)

	token, err := signer.IssueParticipant("1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Error("token with wrong iss claim was accepted")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := identity.NewTokenIssuer(testKey(t), "http://localhost:8080", time.Hour)
	if _, err := issuer.Verify("not.a.token"); err == nil {
		t.Error("garbage token was accepted")
	}
}

func TestEnrollmentExchange(t *testing.T) {
	store := identity.NewEnrollmentStore(zap.NewNop())

	secret, err := store.Enroll("43474542")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if len(secret) != 48 || strings.ContainsAny(secret, " \n") {
		t.Errorf("unexpected secret %q", secret)
	}

	if err := store.Verify("43474542", secret); err != nil {
		t.Errorf("correct secret rejected: %v", err)
	}
	if err := store.Verify("43474542", "wrong"); !errors.Is(err, identity.ErrBadEnrollment) {
		t.Errorf("wrong secret: got %v, want ErrBadEnrollment", err)
	}
	if err := store.Verify("99999999", secret); !errors.Is(err, identity.ErrBadEnrollment) {
		t.Errorf("unknown dni: got %v, want ErrBadEnrollment", err)
	}
}

func TestReenrollReplacesSecret(t *testing.T) {
	store := identity.NewEnrollmentStore(zap.NewNop())

	first, err := store.Enroll("1")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	second, err := store.Enroll("1")
	if err != nil {
		t.Fatalf("re-enroll: %v", err)
	}

	if err := store.Verify("1", first); !errors.Is(err, identity.ErrBadEnrollment) {
		t.Errorf("stale secret still valid: %v", err)
	}
	if err := store.Verify("1", second); err != nil {
		t.Errorf("fresh secret rejected: %v", err)
	}
}
