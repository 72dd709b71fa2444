package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestVerifyHS256AccessToken(t *testing.T) {
	t.Parallel()

	verifier, err := NewJWTVerifier(testSecret, "", "authenticated")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	userID := uuid.New()
	token := signHS256(t, testSecret, jwt.MapClaims{
		"sub":          userID.String(),
		"aud":          "authenticated",
		"email":        "kim@example.com",
		"role":         "authenticated",
		"app_metadata": map[string]any{"role": "admin"},
		"exp":          time.Now().Add(time.Hour).Unix(),
	})

	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != userID || claims.Email != "kim@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Role != "admin" {
		t.Fatalf("app_metadata role must win, got %q", claims.Role)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	t.Parallel()

	verifier, err := NewJWTVerifier(testSecret, "", "")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	valid := jwt.MapClaims{"sub": uuid.NewString(), "exp": time.Now().Add(time.Hour).Unix()}

	cases := map[string]string{
		"wrong secret": signHS256(t, "another-secret-another-secret-another", valid),
		"expired":      signHS256(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "exp": time.Now().Add(-time.Hour).Unix()}),
		"no expiry":    signHS256(t, testSecret, jwt.MapClaims{"sub": uuid.NewString()}),
		"non-uuid sub": signHS256(t, testSecret, jwt.MapClaims{"sub": "service", "exp": time.Now().Add(time.Hour).Unix()}),
		"garbage":      "not.a.token",
	}
	for name, token := range cases {
		if _, err := verifier.Verify(token); err == nil {
			t.Fatalf("%s: expected verification failure", name)
		}
	}

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, valid).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := verifier.Verify(unsigned); err == nil {
		t.Fatalf("alg=none must be rejected")
	}
}

func TestVerifyRS256WithPublicKey(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	verifier, err := NewJWTVerifier("", pubPEM, "")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	userID := uuid.New()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := verifier.Verify(token)
	if err != nil || claims.UserID != userID {
		t.Fatalf("expected RS256 token accepted, got %+v (%v)", claims, err)
	}

	hs := signHS256(t, testSecret, jwt.MapClaims{"sub": userID.String(), "exp": time.Now().Add(time.Hour).Unix()})
	if _, err := verifier.Verify(hs); err == nil {
		t.Fatalf("HS256 must be rejected when no secret is configured")
	}
}

func TestNewJWTVerifierRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTVerifier(" ", "", ""); err == nil {
		t.Fatalf("expected error without key material")
	}
	if _, err := NewJWTVerifier("", "not pem", ""); err == nil {
		t.Fatalf("expected error for invalid PEM")
	}
}
