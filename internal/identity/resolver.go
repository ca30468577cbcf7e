// Package identity resolves an authenticated session to the caller's
// context handle, executor public key, and (when registered) user record.
package identity

import (
	"example.com/contextfeed/internal/apperr"
	"example.com/contextfeed/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// UserLookup is the single store operation resolution needs.
type UserLookup interface {
	GetUserByPublicKey(publicKey string) (models.User, error)
}

// Resolution is the outcome of a successful session resolution. Registered
// is false when the public key has no user record yet; User is only
// meaningful when Registered is true.
type Resolution struct {
	ContextID  string
	PublicKey  string
	User       models.User
	Registered bool
}

// ResolveSession decodes the session token and looks up the user owning
// its public key. The three outcomes are kept distinct: Unauthenticated
// (no usable session), unregistered (valid session with no user record,
// returned as nil error and Registered false), and resolution failed (the
// lookup itself errored). The caller must never present a failed lookup
// as "you need to register".
func ResolveSession(token string, lookup UserLookup) (Resolution, error) {
	const op = "identity.ResolveSession"

	if token == "" {
		return Resolution{}, apperr.New(apperr.Unauthenticated, op, "no session token")
	}

	// The store node verified the signature when it issued the token; the
	// client only needs the claims.
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Resolution{}, apperr.Wrap(apperr.Unauthenticated, op, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Resolution{}, apperr.New(apperr.Unauthenticated, op, "invalid token claims")
	}

	publicKey, _ := claims["public_key"].(string)
	contextID, _ := claims["context_id"].(string)
	if publicKey == "" || contextID == "" {
		return Resolution{}, apperr.New(apperr.Unauthenticated, op, "session carries no identity")
	}

	res := Resolution{ContextID: contextID, PublicKey: publicKey}

	user, err := lookup.GetUserByPublicKey(publicKey)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return res, nil
		}
		return Resolution{}, apperr.Wrap(apperr.Unavailable, op, err)
	}

	res.User = user
	res.Registered = true
	return res, nil
}
