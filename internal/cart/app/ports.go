package app

import (
	"context"
	"errors"

	"github.com/dwikikusuma/storefront/internal/cart/domain"
)

// ErrCartNotFound is returned by CartStore.Get when no document exists
// for the user. The engine treats it as an empty cart, not a failure.
var ErrCartNotFound = errors.New("cart not found")

// CartStore is the remote authoritative document store, addressed by
// user id. Put replaces the whole document; there are no partial updates.
type CartStore interface {
	Get(ctx context.Context, userID string) (domain.Snapshot, error)
	Put(ctx context.Context, userID string, snap domain.Snapshot) error
}

// Anonymous is the identity emitted when no user is signed in.
const Anonymous = ""

// SessionProvider emits the current user identity whenever it changes.
// An Anonymous emission means signed out.
type SessionProvider interface {
	Identities(ctx context.Context) <-chan string
}
