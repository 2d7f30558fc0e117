package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrSubjectDenied = errors.New("token subject does not match user")
)

// GenerateAccess creates a signed HS256 JWT access token for userID.
func GenerateAccess(secret, userID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// VerifyToken returns the subject of a valid HS256 token.
func VerifyToken(secret, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}

// TokenAuthenticator admits an auth envelope only when its token was issued
// for the claimed user.
type TokenAuthenticator struct {
	Secret string
}

func (a TokenAuthenticator) Authenticate(userID, token string) error {
	sub, err := VerifyToken(a.Secret, token)
	if err != nil {
		return err
	}
	if sub != userID {
		return ErrSubjectDenied
	}
	return nil
}
