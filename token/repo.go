package token

import "time"

// Repo is the credential store consumed by the Manager. Implementations must
// provide single-writer-per-record semantics; the manager layers no locking
// of its own on top.
//
// Query methods take the evaluation instant explicitly so classification is
// deterministic under test and a scan never re-reads the clock mid-query.
type Repo interface {
	Create(t *Token) error
	GetByID(id string) (*Token, error)
	GetByOwnerAndName(ownerID, name string) (*Token, error)
	GetBySecretHash(hash string) (*Token, error)

	// ListByOwner returns the owner's tokens ordered by creation time
	// descending. When includeExpired is false, tokens whose expiry is at or
	// before now are filtered out; tokens without an expiry always appear.
	ListByOwner(ownerID string, includeExpired bool, now time.Time) ([]*Token, error)

	// ListExpiring returns tokens across all owners whose expiry is strictly
	// after now and within the given window.
	ListExpiring(now time.Time, within time.Duration) ([]*Token, error)
	// ListExpired returns tokens across all owners whose expiry is at or before now.
	ListExpired(now time.Time) ([]*Token, error)
	// ListUnused returns tokens with no use at or since cutoff: never used and
	// created at or before cutoff, or last used at or before cutoff.
	ListUnused(cutoff time.Time) ([]*Token, error)

	// DeleteByID and DeleteByName remove the owner's matching tokens and
	// report how many rows went away. A zero count is not an error.
	DeleteByID(ownerID, id string) (int, error)
	DeleteByName(ownerID, name string) (int, error)
	// DeleteExpired removes every token whose expiry is at or before now in a
	// single set-based operation.
	DeleteExpired(now time.Time) (int, error)

	UpdateLastUsed(id string, usedAt time.Time) error

	// InTransaction runs fn against a transaction-scoped view of the store.
	// The mutations fn performs commit together or not at all.
	InTransaction(fn func(Repo) error) error
}
