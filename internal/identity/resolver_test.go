package identity

import (
	"testing"
	"time"

	"example.com/contextfeed/internal/apperr"
	"example.com/contextfeed/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

func makeToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tokenStr
}

type lookupStub struct {
	user models.User
	err  error
}

func (l *lookupStub) GetUserByPublicKey(publicKey string) (models.User, error) {
	return l.user, l.err
}

func TestResolveSession_Registered(t *testing.T) {
	token := makeToken(t, jwt.MapClaims{
		"user_id":    "user_1",
		"context_id": "ctx-1",
		"public_key": "pk-abc",
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	lookup := &lookupStub{user: models.User{ID: "user_1", Name: "Alice", PublicKey: "pk-abc"}}

	res, err := ResolveSession(token, lookup)
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	if !res.Registered {
		t.Fatal("expected registered resolution")
	}
	if res.ContextID != "ctx-1" || res.PublicKey != "pk-abc" {
		t.Fatalf("wrong session fields: %+v", res)
	}
	if res.User.ID != "user_1" {
		t.Fatalf("wrong user: %+v", res.User)
	}
}

// A valid session whose key has no user record is unregistered, not an
// error: the caller can prompt for registration.
func TestResolveSession_Unregistered(t *testing.T) {
	token := makeToken(t, jwt.MapClaims{
		"context_id": "ctx-1",
		"public_key": "pk-new",
	})
	lookup := &lookupStub{err: apperr.New(apperr.NotFound, "store.GetUserByPublicKey", "public key not registered")}

	res, err := ResolveSession(token, lookup)
	if err != nil {
		t.Fatalf("unregistered must not be an error, got %v", err)
	}
	if res.Registered {
		t.Fatal("expected unregistered resolution")
	}
	if res.PublicKey != "pk-new" {
		t.Fatalf("resolution must still carry the public key, got %q", res.PublicKey)
	}
}

// A failed lookup must never be presented as "unregistered".
func TestResolveSession_LookupFailureDistinctFromUnregistered(t *testing.T) {
	token := makeToken(t, jwt.MapClaims{
		"context_id": "ctx-1",
		"public_key": "pk-abc",
	})
	lookup := &lookupStub{err: apperr.New(apperr.Unavailable, "store.GetUserByPublicKey", "node unreachable")}

	_, err := ResolveSession(token, lookup)
	if !apperr.Is(err, apperr.Unavailable) {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestResolveSession_Unauthenticated(t *testing.T) {
	lookup := &lookupStub{}

	if _, err := ResolveSession("", lookup); !apperr.Is(err, apperr.Unauthenticated) {
		t.Fatalf("empty token: expected Unauthenticated, got %v", err)
	}
	if _, err := ResolveSession("garbage", lookup); !apperr.Is(err, apperr.Unauthenticated) {
		t.Fatalf("malformed token: expected Unauthenticated, got %v", err)
	}

	// Token without identity claims
	token := makeToken(t, jwt.MapClaims{"user_id": "user_1"})
	if _, err := ResolveSession(token, lookup); !apperr.Is(err, apperr.Unauthenticated) {
		t.Fatalf("claimless token: expected Unauthenticated, got %v", err)
	}
}
