/*
scheduler.go - Automated payment scheduler

PURPOSE:
  Periodically looks for validated indemnifications and completes their
  payment, marking services delivered once everything owed has been paid.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Selects validated records through the same bounded search the review
    endpoint uses, draining in batches
  - Re-derives each touched claim's sub-status on save

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - BatchSize: Records per sweep iteration (default: 100)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPaymentScheduler(store)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Review endpoint (manual validate/reject + pay)
  - claim/status.go: CompleteIndemnifications
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/claims-engine/claim"
)

// PaymentScheduler completes validated indemnifications in the background.
type PaymentScheduler struct {
	Store         claim.Store
	CheckInterval time.Duration
	BatchSize     int
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPaymentScheduler creates a new scheduler.
func NewPaymentScheduler(store claim.Store) *PaymentScheduler {
	return &PaymentScheduler{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		BatchSize:     100,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ps *PaymentScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	log.Printf("[Scheduler] Started with check interval: %v", ps.CheckInterval)
}

// Stop stops the scheduler.
func (ps *PaymentScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ps *PaymentScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.sweep()

	for {
		select {
		case <-ps.ticker.C:
			ps.sweep()
		case <-ps.stop:
			return
		}
	}
}

// sweep completes one batch of validated indemnifications.
func (ps *PaymentScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	clauses := []claim.Clause{{Field: "status", Operator: "=", Value: string(claim.StatusValidated)}}
	working, err := ps.Store.SearchIndemnifications(ctx, clauses, ps.BatchSize)
	if err != nil {
		log.Printf("[Scheduler] Search failed: %v", err)
		return
	}
	if len(working) == 0 {
		return
	}

	touched := make(map[claim.ClaimID]*claim.Claim)
	for _, ind := range working {
		touched[ind.Service.Loss.Claim.ID] = ind.Service.Loss.Claim
	}

	paid := 0
	for _, c := range touched {
		c.CompleteIndemnifications()
		if err := ps.Store.SaveClaim(ctx, c); err != nil {
			log.Printf("[Scheduler] Failed to save claim %s: %v", c.ID, err)
			continue
		}
		paid++
	}
	log.Printf("[Scheduler] Completed payments on %d claims (%d validated records selected)", paid, len(working))
}
