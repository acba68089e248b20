package authz

import (
	"errors"
	"time"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/golang-jwt/jwt/v5"
)

// claims is the JWT payload cyroid issues: the principal's full
// visibility-relevant state, so a request never needs a repository
// round trip just to authenticate.
type claims struct {
	jwt.RegisteredClaims
	Roles         []string `json:"roles"`
	Tags          []string `json:"tags"`
	Approved      bool     `json:"approved"`
	Active        bool     `json:"active"`
	ResetRequired bool     `json:"reset_required"`
}

// IssueToken signs a bearer token for p, valid for ttl from now.
func IssueToken(secret string, ttl time.Duration, p *types.Principal) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles:         p.Roles,
		Tags:          p.Tags,
		Approved:      p.Approved,
		Active:        p.Active,
		ResetRequired: p.ResetRequired,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(secret))
}

// VerifyToken validates tokenString against secret and reconstructs the
// Principal it asserts. Expired, malformed, or wrong-signature tokens
// return cyerr.Forbidden so callers can map it to a 401/4001 close code.
func VerifyToken(secret, tokenString string) (*types.Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, cyerr.Forbidden("invalid or expired token")
	}

	return &types.Principal{
		ID:            c.Subject,
		Roles:         c.Roles,
		Tags:          c.Tags,
		Approved:      c.Approved,
		Active:        c.Active,
		ResetRequired: c.ResetRequired,
	}, nil
}
