package monitor

import (
	"strings"
	"sync"
)

// accountLocks serializes rebalance sequences per signing account, so one
// wallet never interleaves the approvals and mints of two rebalances.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until account is free and returns the unlock func.
func (a *accountLocks) Lock(account string) func() {
	key := strings.ToLower(account)
	a.mu.Lock()
	l, ok := a.locks[key]
	if !ok {
		l = &sync.Mutex{}
		a.locks[key] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}
