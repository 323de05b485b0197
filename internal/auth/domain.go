package auth

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by access tokens. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// UserID parses the numeric subject.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Identity is the minimal user view needed to issue a token.
type Identity struct {
	ID       int64
	Username string
}
