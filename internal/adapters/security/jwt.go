package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

// JWTVerifier validates access tokens issued by the planner identity provider.
// HS256 tokens are checked against the shared project secret and RS256 tokens
// against the configured public key; either may be absent.
type JWTVerifier struct {
	hmacSecret []byte
	publicKey  *rsa.PublicKey
	audience   string
	methods    []string
}

func NewJWTVerifier(hmacSecret, publicKeyPEM, audience string) (*JWTVerifier, error) {
	v := &JWTVerifier{audience: strings.TrimSpace(audience)}
	if secret := strings.TrimSpace(hmacSecret); secret != "" {
		v.hmacSecret = []byte(secret)
		v.methods = append(v.methods, jwt.SigningMethodHS256.Alg())
	}
	if strings.TrimSpace(publicKeyPEM) != "" {
		pub, err := parseRSAPublic(publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		v.publicKey = pub
		v.methods = append(v.methods, jwt.SigningMethodRS256.Alg())
	}
	if len(v.methods) == 0 {
		return nil, errors.New("jwt secret or public key is required")
	}
	return v, nil
}

type accessClaims struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(raw string) (ports.AuthClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, v.keyFor, opts...)
	if err != nil {
		return ports.AuthClaims{}, err
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return ports.AuthClaims{}, errors.New("invalid token claims")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("parse sub: %w", err)
	}
	role := claims.AppMetadata.Role
	if role == "" {
		role = claims.Role
	}
	out := ports.AuthClaims{
		UserID: userID,
		Email:  claims.Email,
		Role:   role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (v *JWTVerifier) keyFor(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.hmacSecret == nil {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.hmacSecret, nil
	case *jwt.SigningMethodRSA:
		if v.publicKey == nil {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.publicKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
	}
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
