package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/errs"
)

const tokenIssuer = "careloop"

var (
	ErrSignToken    = errors.New("failed to sign session token")
	ErrInvalidToken = errors.New("invalid session token")
)

// Claims binds a session token to a principal and their selected
// organization. The token proves selection only; membership is re-validated
// against the directory on every resolution.
type Claims struct {
	jwt.RegisteredClaims

	OrganizationID uuid.UUID `json:"org"`
}

type tokenCodec struct {
	signingKey []byte
	ttl        time.Duration
}

func (t *tokenCodec) issue(principalID, orgID uuid.UUID, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   principalID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		OrganizationID: orgID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", errs.Wrap(ErrSignToken, err)
	}

	return signed, nil
}

func (t *tokenCodec) parse(raw string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return t.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errs.Wrap(ErrInvalidToken, err)
	}

	return claims, nil
}

func (c *Claims) principalID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, errs.Wrap(ErrInvalidToken, err)
	}

	return id, nil
}
