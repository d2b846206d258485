/*
factory.go - Explicit record factories

PURPOSE:
  Every owning type knows how to build its own children: a Claim builds
  Losses, a Loss builds Delivered Services, a Delivered Service builds
  Indemnifications. There is no reflective instantiation from relation
  metadata; construction is explicit and typed.

LIFECYCLE:
  A Delivered Service is created when a benefit is attached to a Loss.
  Its Indemnifications are created and destroyed repeatedly by the
  calculator while in "calculated" status; once validated they become
  durable and only explicit validate/reject/pay actions change them.

SEE ALSO:
  - calculator.go: Consumes the service and indemnification factories
  - factory/ (package): Benefit catalogs and fixture rule chains
*/
package claim

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq atomic.Uint64

// NewID generates a unique record identifier with the given prefix.
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), idSeq.Add(1))
}

// =============================================================================
// CLAIM FACTORY
// =============================================================================

// NewClaim opens a claim for a claimant, declared today.
func NewClaim(number string, claimant Party) *Claim {
	return &Claim{
		ID:              ClaimID(NewID("claim")),
		Number:          number,
		Status:          ClaimOpen,
		DeclarationDate: Today(),
		Claimant:        claimant,
	}
}

// NewLoss attaches a declared loss to the claim.
// Returns ErrEndDateRequired when the descriptor mandates an end date and
// none is given.
func (c *Claim) NewLoss(descriptor LossDescriptor, event EventDescriptor, start Date, end *Date) (*Loss, error) {
	if descriptor.WithEndDate && end == nil {
		return nil, ErrEndDateRequired
	}
	loss := &Loss{
		ID:         LossID(NewID("loss")),
		Claim:      c,
		StartDate:  start,
		EndDate:    end,
		Descriptor: descriptor,
		Event:      event,
	}
	c.Losses = append(c.Losses, loss)
	return loss, nil
}

// NewRelapseLoss attaches a relapse loss referencing a main loss.
// INVARIANT: the main loss belongs to the same claim.
func (c *Claim) NewRelapseLoss(main *Loss, start Date, end *Date) (*Loss, error) {
	if main == nil || main.Claim != c {
		return nil, ErrRelapseAcrossClaims
	}
	loss, err := c.NewLoss(main.Descriptor, main.Event, start, end)
	if err != nil {
		return nil, err
	}
	loss.MainLoss = main
	main.SubLosses = append(main.SubLosses, loss)
	return loss, nil
}

// =============================================================================
// LOSS FACTORY
// =============================================================================

// InitDeliveredServices creates one service per triggered benefit for the
// given option. Idempotent: an existing service with the same (option,
// benefit) pair is kept as is.
func (l *Loss) InitDeliveredServices(option Option, benefits []Benefit, rules map[BenefitID]ProviderChain) []*DeliveredService {
	var created []*DeliveredService
	for _, benefit := range benefits {
		if l.findService(option.ID, benefit.ID) != nil {
			continue
		}
		svc := &DeliveredService{
			ID:                ServiceID(NewID("svc")),
			Loss:              l,
			Option:            option,
			Benefit:           benefit,
			Status:            ServiceApplicable,
			ComplementaryData: make(map[string]string),
			Rules:             rules[benefit.ID],
		}
		l.Services = append(l.Services, svc)
		created = append(created, svc)
	}
	return created
}

func (l *Loss) findService(optionID OptionID, benefitID BenefitID) *DeliveredService {
	for _, svc := range l.Services {
		if svc.Option.ID == optionID && svc.Benefit.ID == benefitID {
			return svc
		}
	}
	return nil
}

// =============================================================================
// DELIVERED SERVICE FACTORY
// =============================================================================

// NewIndemnification builds a fresh calculated indemnification for this
// service: beneficiary and customer default to the claim's claimant, the
// kind comes from the benefit.
func (s *DeliveredService) NewIndemnification() *Indemnification {
	claimant := s.Loss.Claim.Claimant
	return &Indemnification{
		ID:          IndemnificationID(NewID("ind")),
		Service:     s,
		Kind:        s.Benefit.Kind,
		Status:      StatusCalculated,
		Amount:      ZeroMoney(s.MainCurrency()),
		Beneficiary: claimant,
		Customer:    claimant,
	}
}

// insertIndemnification keeps the collection ordered by start date.
func (s *DeliveredService) insertIndemnification(ind *Indemnification) {
	pos := len(s.Indemnifications)
	for i, other := range s.Indemnifications {
		if ind.StartDate.Before(other.StartDate) {
			pos = i
			break
		}
	}
	s.Indemnifications = append(s.Indemnifications, nil)
	copy(s.Indemnifications[pos+1:], s.Indemnifications[pos:])
	s.Indemnifications[pos] = ind
}

// removeIndemnification drops a member from the collection.
func (s *DeliveredService) removeIndemnification(ind *Indemnification) {
	for i, other := range s.Indemnifications {
		if other == ind {
			s.Indemnifications = append(s.Indemnifications[:i], s.Indemnifications[i+1:]...)
			return
		}
	}
}
