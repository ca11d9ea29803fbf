package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hacksphere/esp32-gateway/pkg/jwt"
)

// ConnClass is the outcome class of a successful handshake decision.
type ConnClass int

const (
	// ClassDevice is the single hardware endpoint.
	ClassDevice ConnClass = iota
	// ClassClient is an authenticated web client.
	ClassClient
)

var (
	// ErrUnauthorized is returned when no usable credential is presented
	// or the credential fails verification.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOriginDenied is returned when the request origin is not allowed.
	ErrOriginDenied = errors.New("origin not allowed")
)

// Decision is the result of authenticating an upgrade request.
type Decision struct {
	Class    ConnClass
	Identity string
}

// Authenticator decides whether an inbound upgrade request becomes a device
// connection, a client connection, or is rejected.
//
// The device path is accepted without a credential check. The device is
// presumed to be on a controlled network; its path is the trust boundary.
type Authenticator struct {
	verifier       jwt.Verifier
	devicePath     string
	allowedOrigins []string
	logger         zerolog.Logger
}

// NewAuthenticator creates an Authenticator for the given device path and
// origin allow-list. An allow-list containing "*" admits every origin.
func NewAuthenticator(verifier jwt.Verifier, devicePath string, allowedOrigins []string, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		verifier:       verifier,
		devicePath:     devicePath,
		allowedOrigins: allowedOrigins,
		logger:         logger.With().Str("component", "authenticator").Logger(),
	}
}

// Authenticate classifies the upgrade request. It has no side effects;
// registry mutation happens only after acceptance.
func (a *Authenticator) Authenticate(r *http.Request) (Decision, error) {
	if !a.OriginAllowed(r) {
		a.logger.Warn().Str("origin", r.Header.Get("Origin")).Msg("Rejected upgrade from disallowed origin")
		return Decision{}, ErrOriginDenied
	}

	if r.URL.Path == a.devicePath {
		return Decision{Class: ClassDevice}, nil
	}

	token := extractToken(r)
	if token == "" {
		a.logger.Warn().Str("path", r.URL.Path).Msg("Rejected upgrade without credential")
		return Decision{}, ErrUnauthorized
	}

	identity, err := a.verifier.Verify(token)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Rejected upgrade with invalid credential")
		return Decision{}, ErrUnauthorized
	}

	return Decision{Class: ClassClient, Identity: identity}, nil
}

// OriginAllowed applies the origin policy. An empty origin (non-browser
// traffic, including the device) is never rejected.
func (a *Authenticator) OriginAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// extractToken pulls the bearer credential from, in order of precedence,
// the token query parameter, the Sec-WebSocket-Protocol header, and the
// Authorization header.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		parts := strings.Split(proto, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		// Browsers cannot set arbitrary headers on WebSocket upgrades, so
		// the token rides as a subprotocol, optionally tagged "bearer".
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		if len(parts) == 1 {
			return parts[0]
		}
	}

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return ""
}
