package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or its signature does not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token's signature verifies but its expiry has passed.
	ErrExpiredToken = errors.New("expired token")
)

// SessionClaims holds JWT claims for the session token. The subject is the
// user id; there is no server-side session state behind it.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// TokenProvider issues and validates stateless session JWTs using RS256 or
// ES256. Validation is a pure signature + expiry check; it never consults a
// store, so it can run with unbounded concurrency.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	sessionTTL time.Duration
	nowF       func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private
// key (RSA or ECDSA). issuer and audience are set on claims and checked on
// validation.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, sessionTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		sessionTTL: sessionTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNowFunc overrides the provider's clock. Intended for tests.
func (p *TokenProvider) WithNowFunc(nowF func() time.Time) *TokenProvider {
	p.nowF = nowF
	return p
}

// IssueSession issues a session JWT bound to userID.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueSession(userID string) (token string, expiresAt time.Time, err error) {
	now := p.nowF()
	expiresAt = now.Add(p.sessionTTL)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// ValidateSession parses and validates a session token (signature, exp, iss, aud)
// and returns the subject user id. Returns ErrExpiredToken for a well-signed
// but stale token and ErrInvalidToken for everything else.
func (p *TokenProvider) ValidateSession(tokenString string) (userID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithTimeFunc(p.nowF))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
