package tokenrepofake

import (
	"sort"
	"sync"
	"time"

	"github.com/pressline/go-content-server/token"
)

var _ token.Repo = (*FakeTokenRepo)(nil)

type FakeTokenRepo struct {
	tokens map[string]*token.Token // token ID to record
	lock   sync.RWMutex
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		tokens: make(map[string]*token.Token),
	}
}

func (tr *FakeTokenRepo) Create(t *token.Token) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	cp := *t
	tr.tokens[t.ID] = &cp
	return nil
}

func (tr *FakeTokenRepo) GetByID(id string) (*token.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	t, ok := tr.tokens[id]
	if !ok {
		return nil, token.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (tr *FakeTokenRepo) GetByOwnerAndName(ownerID, name string) (*token.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	for _, t := range tr.tokens {
		if t.OwnerID == ownerID && t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, token.ErrNotFound
}

func (tr *FakeTokenRepo) GetBySecretHash(hash string) (*token.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	for _, t := range tr.tokens {
		if t.SecretHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, token.ErrNotFound
}

func (tr *FakeTokenRepo) ListByOwner(ownerID string, includeExpired bool, now time.Time) ([]*token.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	tokens := make([]*token.Token, 0)
	for _, t := range tr.tokens {
		if t.OwnerID != ownerID {
			continue
		}
		if !includeExpired && t.IsExpired(now) {
			continue
		}
		cp := *t
		tokens = append(tokens, &cp)
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
	return tokens, nil
}

func (tr *FakeTokenRepo) ListExpiring(now time.Time, within time.Duration) ([]*token.Token, error) {
	return tr.filter(func(t *token.Token) bool {
		return t.ExpiresWithin(now, within)
	}), nil
}

func (tr *FakeTokenRepo) ListExpired(now time.Time) ([]*token.Token, error) {
	return tr.filter(func(t *token.Token) bool {
		return t.IsExpired(now)
	}), nil
}

func (tr *FakeTokenRepo) ListUnused(cutoff time.Time) ([]*token.Token, error) {
	return tr.filter(func(t *token.Token) bool {
		return t.Unused(cutoff)
	}), nil
}

func (tr *FakeTokenRepo) DeleteByID(ownerID, id string) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	t, ok := tr.tokens[id]
	if !ok || t.OwnerID != ownerID {
		return 0, nil
	}
	delete(tr.tokens, id)
	return 1, nil
}

func (tr *FakeTokenRepo) DeleteByName(ownerID, name string) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	count := 0
	for id, t := range tr.tokens {
		if t.OwnerID == ownerID && t.Name == name {
			delete(tr.tokens, id)
			count++
		}
	}
	return count, nil
}

func (tr *FakeTokenRepo) DeleteExpired(now time.Time) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	count := 0
	for id, t := range tr.tokens {
		if t.IsExpired(now) {
			delete(tr.tokens, id)
			count++
		}
	}
	return count, nil
}

func (tr *FakeTokenRepo) UpdateLastUsed(id string, usedAt time.Time) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	t, ok := tr.tokens[id]
	if !ok {
		return token.ErrNotFound
	}
	t.LastUsedAt = &usedAt
	return nil
}

// InTransaction snapshots the store and restores it when fn fails, matching
// the all-or-nothing commit contract of the real store.
func (tr *FakeTokenRepo) InTransaction(fn func(token.Repo) error) error {
	tr.lock.RLock()
	snapshot := make(map[string]*token.Token, len(tr.tokens))
	for id, t := range tr.tokens {
		cp := *t
		snapshot[id] = &cp
	}
	tr.lock.RUnlock()

	if err := fn(tr); err != nil {
		tr.lock.Lock()
		tr.tokens = snapshot
		tr.lock.Unlock()
		return err
	}
	return nil
}

func (tr *FakeTokenRepo) filter(keep func(*token.Token) bool) []*token.Token {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	tokens := make([]*token.Token, 0)
	for _, t := range tr.tokens {
		if keep(t) {
			cp := *t
			tokens = append(tokens, &cp)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
	return tokens
}
