// Package memory is an in-process ledger for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"flowledger/internal/core"
)

type entry struct {
	Payment core.BillPayment
	Name    string
}

type Store struct {
	mu    sync.Mutex
	items []entry
}

func New() *Store {
	return &Store{}
}

// Append stores the payment and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, payment core.BillPayment, sub core.Subscription) (string, error) {
	if err := payment.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, entry{Payment: payment, Name: sub.Name})
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []core.BillPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BillPayment, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e.Payment)
	}
	return out
}
