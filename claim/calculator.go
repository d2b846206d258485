/*
calculator.go - The indemnification calculation algorithm

PURPOSE:
  Computes the compensation owed for a delivered service by invoking the
  externally configured rules, reconciling the requested period against
  what each rule call resolves, and correcting for amounts already paid.

ALGORITHM (one Calculate call):
  1. Build the rule context from the loss, option and service. The
     evaluation date is the loss start date, so the rules in force when
     the loss occurred apply.
  2. Check eligibility. Ineligible is a business outcome, not a failure:
     the service becomes "not_eligible" and existing indemnifications are
     left untouched.
  3. For each currency in play (main + expense currencies), run the
     continuation loop: each rule call resolves a sub-period; the next
     call starts the day after the previous result ended, until the full
     requested window is covered or a call yields no detail lines.
  4. Before building detail lines, the total already PAID in the currency
     is injected as a negative "regularization" line, so cumulative
     paid-plus-due reflects only the incremental amount still owed.
  5. After a currency's loop finishes (success or failure), the stale
     "calculated" indemnifications of that currency are discarded. Stale
     results in currencies no longer in play are discarded as well.

FAILURE POLICY:
  A failed currency does not roll back results already produced for other
  currencies within the same call. Partial success is an explicit,
  observable outcome.

ATOMICITY:
  All mutation of one run (discard-stale plus create-new, across every
  currency) is collected into a Replacement and applied in one shot by
  the store.

SINGLE WRITER:
  The purge-then-recreate pattern tolerates no concurrent runs against
  the same service. The calculator holds a per-service guard for the
  duration of the call.

SEE ALSO:
  - rules.go: Rule resolution and results
  - store.go: Replacement and the atomicity contract
*/
package claim

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	Currency CurrencyService
	Store    Store // may be nil for purely in-memory evaluation

	guards sync.Map // ServiceID -> *sync.Mutex
}

func NewCalculator(currency CurrencyService, store Store) *Calculator {
	return &Calculator{Currency: currency, Store: store}
}

func (c *Calculator) guard(id ServiceID) *sync.Mutex {
	mu, _ := c.guards.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Calculate runs the full algorithm against one delivered service.
//
// The boolean reports whether every currency resolved its whole requested
// window; errs accumulates rule, missing-detail and persistence errors
// across currencies. Ineligibility yields (false, errs) with the service
// in status "not_eligible" and its indemnifications untouched.
func (c *Calculator) Calculate(ctx context.Context, svc *DeliveredService) (bool, []error) {
	if svc == nil || svc.Loss == nil || svc.Option.ID == "" || svc.Benefit.ID == "" {
		return false, []error{ErrServiceIncomplete}
	}

	mu := c.guard(svc.ID)
	mu.Lock()
	defer mu.Unlock()

	rctx := c.ruleContext(svc)

	eligible, failed, errs := c.checkEligibility(svc, rctx)
	if failed {
		return false, errs
	}
	if !eligible {
		svc.Status = ServiceNotEligible
		return false, errs
	}

	// Stale results are identified up front: only indemnifications that
	// were already "calculated" when this run started are replaceable.
	// Fresh results from a sibling currency of the same run are not.
	// Manual overrides are never replaced.
	stale := staleByCurrency(svc)

	ok := true
	var repl Replacement
	for _, currency := range svc.CurrenciesInPlay() {
		cctx := rctx
		cctx.Currency = currency
		curOK, curErrs := c.calculateCurrency(svc, cctx, stale[currency], &repl)
		ok = ok && curOK
		errs = append(errs, curErrs...)
		delete(stale, currency)
	}

	// Currencies that dropped out of play since the last run (an expense
	// removed, say) still leave stale results behind. Discard those too.
	for _, leftovers := range stale {
		for _, old := range leftovers {
			svc.removeIndemnification(old)
			repl.Delete = append(repl.Delete, old)
		}
	}

	svc.Status = ServiceCalculated

	if c.Store != nil && !repl.IsEmpty() {
		if err := c.Store.ApplyReplacement(ctx, svc.ID, repl); err != nil {
			return false, append(errs, err)
		}
	}
	return ok, errs
}

// ruleContext builds the evaluation context from the loss, option and
// service.
func (c *Calculator) ruleContext(svc *DeliveredService) RuleContext {
	rctx := RuleContext{
		EvaluationDate: svc.Loss.StartDate,
		StartDate:      svc.Loss.StartDate,
		Loss:           svc.Loss,
		Option:         svc.Option,
		Service:        svc,
		CoveredData:    svc.Option.CoveredData,
		PolicyOwner:    svc.Option.PolicyOwner,
	}
	if svc.Loss.EndDate != nil {
		rctx.EndDate = svc.Loss.EndDate.Ptr()
	}
	return rctx
}

// checkEligibility resolves and invokes the eligibility rule. A chain
// without one means the benefit has no restrictions: eligible. The failed
// flag distinguishes a rule evaluation error (leaves the service status
// alone) from a clean ineligible verdict (status becomes "not_eligible").
func (c *Calculator) checkEligibility(svc *DeliveredService, rctx RuleContext) (eligible, failed bool, errs []error) {
	rule, found := svc.Rules.Resolve(RuleEligibility)
	if !found {
		return true, false, nil
	}
	res, evalErrs := rule.Evaluate(rctx)
	if len(evalErrs) > 0 {
		return false, true, evalErrs
	}
	if res.Eligibility == nil {
		return false, true, []error{&RuleError{Kind: RuleEligibility, Message: "rule returned no eligibility result"}}
	}
	if !res.Eligibility.Eligible {
		for _, msg := range res.Eligibility.Messages {
			errs = append(errs, &RuleError{Kind: RuleEligibility, Message: msg})
		}
		return false, false, errs
	}
	return true, false, nil
}

// staleByCurrency partitions the replaceable indemnifications by the
// currency they were computed in.
func staleByCurrency(svc *DeliveredService) map[Currency][]*Indemnification {
	stale := make(map[Currency][]*Indemnification)
	for _, ind := range svc.Indemnifications {
		if ind.Status == StatusCalculated && !ind.Manual {
			currency := ind.CurrencyInPlay()
			stale[currency] = append(stale[currency], ind)
		}
	}
	return stale
}

// calculateCurrency runs the continuation loop for one currency, then
// discards that currency's stale results whether or not the loop
// succeeded.
func (c *Calculator) calculateCurrency(svc *DeliveredService, cctx RuleContext, stale []*Indemnification, repl *Replacement) (bool, []error) {
	ok := true
	var errs []error

	// Amounts already paid in this currency are deducted once per run, on
	// the first result produced.
	paid := svc.PaidTotal(cctx.Currency)

	for {
		ind, indErrs := c.createIndemnification(svc, cctx, paid)
		errs = append(errs, indErrs...)
		if ind == nil {
			ok = false
			break
		}
		paid = decimal.Zero
		repl.Create = append(repl.Create, ind)

		if cctx.EndDate == nil || ind.EndDate.IsZero() || !ind.EndDate.Before(*cctx.EndDate) {
			break
		}
		next := ind.EndDate.AddDays(1)
		if !next.After(cctx.StartDate) {
			// A rule that does not advance the window would never
			// terminate; treat it as a missing-detail failure.
			errs = append(errs, &MissingDetailError{ServiceID: svc.ID, Currency: cctx.Currency, StartDate: next})
			ok = false
			break
		}
		cctx.StartDate = next
	}

	for _, old := range stale {
		svc.removeIndemnification(old)
		repl.Delete = append(repl.Delete, old)
	}
	return ok, errs
}

// createIndemnification performs one rule call and materializes its detail
// groups into a fresh indemnification. A non-zero paid total becomes a
// regularization line deducting what was already paid out.
func (c *Calculator) createIndemnification(svc *DeliveredService, cctx RuleContext, paid decimal.Decimal) (*Indemnification, []error) {
	rule, found := svc.Rules.Resolve(RuleIndemnification)
	if !found {
		return nil, []error{fmt.Errorf("benefit %s: %w", svc.Benefit.Code, ErrRuleNotFound)}
	}
	res, errs := rule.Evaluate(cctx)
	if len(errs) > 0 {
		return nil, errs
	}
	if len(res.Details) == 0 {
		return nil, []error{&MissingDetailError{ServiceID: svc.ID, Currency: cctx.Currency, StartDate: cctx.StartDate}}
	}

	ind := svc.NewIndemnification()

	groups := make(map[DetailKind][]DetailSpec, len(res.Details)+1)
	for kind, specs := range res.Details {
		groups[kind] = specs
	}
	// Correct for amounts already paid in this currency: the new result
	// must reflect only the incremental amount still owed.
	if !paid.IsZero() {
		groups[DetailRegularization] = append(groups[DetailRegularization], DetailSpec{
			AmountPerUnit: paid,
			UnitCount:     decimal.NewFromInt(-1),
		})
	}

	ind.buildDetails(groups)
	if err := c.rollUp(ind, cctx.Currency); err != nil {
		return nil, []error{err}
	}
	svc.insertIndemnification(ind)
	return ind, nil
}

// PaidTotal sums the amounts of this service's paid indemnifications that
// were computed in the given currency.
func (s *DeliveredService) PaidTotal(currency Currency) decimal.Decimal {
	total := decimal.Zero
	for _, ind := range s.Indemnifications {
		if ind.Status == StatusPaid {
			total = total.Add(ind.AmountIn(currency))
		}
	}
	return total
}

// buildDetails materializes rule detail groups in kind-enumeration order.
// The indemnification start date becomes the minimum detail start date.
// Detail construction is all-or-nothing: this runs on a fresh record only.
func (ind *Indemnification) buildDetails(groups map[DetailKind][]DetailSpec) {
	for _, kind := range DetailKindOrder {
		for _, spec := range groups[kind] {
			line := &DetailLine{
				ID:              DetailLineID(NewID("det")),
				Indemnification: ind,
				Kind:            kind,
				StartDate:       spec.StartDate,
				EndDate:         spec.EndDate,
				AmountPerUnit:   spec.AmountPerUnit,
				UnitCount:       spec.UnitCount,
			}
			line.ComputeAmount()
			ind.Details = append(ind.Details, line)
			if spec.StartDate != nil && (ind.StartDate.IsZero() || spec.StartDate.Before(ind.StartDate)) {
				ind.StartDate = *spec.StartDate
			}
		}
	}
}

// rollUp computes the indemnification amount as the currency-rounded sum
// of its detail amounts, converting when the calculation currency differs
// from the service's main currency. The end date is the end date of the
// last detail line in kind-enumeration order.
func (c *Calculator) rollUp(ind *Indemnification, currency Currency) error {
	main := ind.Service.MainCurrency()
	total := decimal.Zero
	local := decimal.Zero
	for _, line := range ind.Details {
		if currency == main {
			total = total.Add(line.Amount)
		} else {
			local = local.Add(line.Amount)
		}
		if line.EndDate != nil {
			ind.EndDate = *line.EndDate
		}
	}
	if currency != main && !local.IsZero() {
		ind.LocalAmount = &Money{Amount: local, Currency: currency}
		converted, err := c.Currency.Convert(Money{Amount: local, Currency: currency}, main)
		if err != nil {
			return err
		}
		total = converted.Amount
	}
	ind.Amount = c.Currency.Round(Money{Amount: total, Currency: main})
	return nil
}
