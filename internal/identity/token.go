package identity

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types.
const (
	tokenTypeParticipant = "participant"
	tokenTypeAdmin       = "admin"
)

// TokenClaims are the JWT claims of an EduChain identity token.
type TokenClaims struct {
	jwt.RegisteredClaims
	DNI  string `json:"dni,omitempty"`
	Type string `json:"type"` // "participant" or "admin"
}

// TokenIssuer issues and verifies RS256 identity tokens.
type TokenIssuer struct {
	key    *rsa.PrivateKey
	pub    *rsa.PublicKey
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	issuerURL — The "iss" claim value; matches the gateway's base URL.
//	ttl       — Token lifetime (default: 1 hour).
func NewTokenIssuer(key *rsa.PrivateKey, issuerURL string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		key:    key,
		pub:    &key.PublicKey,
		issuer: issuerURL,
		ttl:    ttl,
	}
}

// IssueParticipant creates a signed token for an enrolled participant.
func (i *TokenIssuer) IssueParticipant(dni string) (string, error) {
	now := time.Now().UTC()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   dni,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
		DNI:  dni,
		Type: tokenTypeParticipant,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign participant token: %w", err)
	}
	return signed, nil
}

// IssueAdmin creates a signed bootstrap administrator token. It is issued
// only in exchange for the static admin secret, never through enrollment.
func (i *TokenIssuer) IssueAdmin(ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	now := time.Now().UTC()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   "bootstrap-admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		Type: tokenTypeAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an identity token, returning its claims.
func (i *TokenIssuer) Verify(tokenStr string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&TokenClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return i.pub, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Type != tokenTypeParticipant && claims.Type != tokenTypeAdmin {
		return nil, fmt.Errorf("not an identity token")
	}
	return claims, nil
}

// Caller resolves the claims into the attribute set the ledger core reads.
func (c *TokenClaims) Caller() *Caller {
	attrs := map[string]string{}
	if c.DNI != "" {
		attrs[AttrDNI] = c.DNI
	}
	if c.Type == tokenTypeAdmin {
		attrs[AttrBootstrapAdmin] = "true"
	}
	return NewCaller(attrs)
}
