// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/claims-engine/claim"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	claims   map[claim.ClaimID]*claim.Claim
	services map[claim.ServiceID]*claim.DeliveredService
	indemns  map[claim.IndemnificationID]*claim.Indemnification
	docs     claim.DocumentRequestService
}

func NewMemory(docs claim.DocumentRequestService) *Memory {
	if docs == nil {
		docs = claim.NoPendingDocuments{}
	}
	return &Memory{
		claims:   make(map[claim.ClaimID]*claim.Claim),
		services: make(map[claim.ServiceID]*claim.DeliveredService),
		indemns:  make(map[claim.IndemnificationID]*claim.Indemnification),
		docs:     docs,
	}
}

// SaveClaim stores the claim graph and re-derives its sub-status, so the
// stored value always reflects the underlying loss/service state.
func (m *Memory) SaveClaim(_ context.Context, c *claim.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim.UpdateSubStatus(c, m.docs)
	m.claims[c.ID] = c
	for _, loss := range c.Losses {
		for _, svc := range loss.Services {
			m.services[svc.ID] = svc
			for _, ind := range svc.Indemnifications {
				m.indemns[ind.ID] = ind
			}
		}
	}
	return nil
}

func (m *Memory) GetClaim(_ context.Context, id claim.ClaimID) (*claim.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.claims[id]
	if !ok {
		return nil, claim.ErrClaimNotFound
	}
	return c, nil
}

func (m *Memory) FindService(_ context.Context, id claim.ServiceID) (*claim.DeliveredService, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	svc, ok := m.services[id]
	if !ok {
		return nil, claim.ErrServiceNotFound
	}
	return svc, nil
}

// ApplyReplacement applies a calculation diff. All mutation happens under
// one lock: a concurrent reader never observes a mix of stale and fresh
// results.
func (m *Memory) ApplyReplacement(_ context.Context, serviceID claim.ServiceID, repl claim.Replacement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.services[serviceID]; !ok {
		return claim.ErrServiceNotFound
	}
	for _, ind := range repl.Delete {
		delete(m.indemns, ind.ID)
	}
	for _, ind := range repl.Create {
		m.indemns[ind.ID] = ind
	}
	return nil
}

// SearchIndemnifications returns records matching every clause, ordered by
// start date, bounded by limit.
func (m *Memory) SearchIndemnifications(_ context.Context, clauses []claim.Clause, limit int) ([]*claim.Indemnification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*claim.Indemnification
	for _, ind := range m.indemns {
		match := true
		for _, cl := range clauses {
			if !cl.Matches(ind) {
				match = false
				break
			}
		}
		if match {
			result = append(result, ind)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartDate.Before(result[j].StartDate)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
