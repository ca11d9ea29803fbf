package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/hacksphere/esp32-gateway/pkg/file"
)

// Verifier resolves a bearer token to a user identity.
type Verifier interface {
	Verify(tokenString string) (string, error)
}

// HMACVerifier validates HMAC-signed JWTs against a shared secret and
// extracts the subject claim as the user identity.
type HMACVerifier struct {
	Secret []byte
}

// NewHMACVerifier loads the signing secret from secretPath and returns a
// ready verifier.
func NewHMACVerifier(secretPath string, fileOps file.FileOperations) (*HMACVerifier, error) {
	secret, err := fileOps.ReadFileRaw(secretPath)
	if err != nil || len(secret) == 0 {
		return nil, errors.New("failed to read or validate secret key")
	}
	return &HMACVerifier{Secret: secret}, nil
}

// Verify parses and validates the given token. It returns the user identity
// carried in the subject claim, or an error if the token is malformed,
// wrongly signed, or expired.
func (v *HMACVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method: " + token.Header["alg"].(string))
		}
		return v.Secret, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", errors.New("invalid JWT token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid JWT claims format")
	}

	// jwt.Parse already rejects expired tokens when exp is present, but an
	// exp claim is required here: the gateway never accepts eternal tokens.
	exp, ok := claims["exp"].(float64)
	if !ok {
		return "", errors.New("JWT expiration (exp) claim missing or invalid")
	}
	if time.Now().After(time.Unix(int64(exp), 0)) {
		return "", errors.New("JWT token expired")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("JWT subject (sub) claim missing or invalid")
	}

	return sub, nil
}
