/*
rules.go - Concrete rule implementations

PURPOSE:
  Provides the rule implementations the benefit factory wires into provider
  chains. Each rule converts a rule context into an eligibility verdict or
  grouped detail specs; the calculator owns everything after that.

SUB-PERIOD RESOLUTION:
  The daily benefit rule resolves at most one revaluation year per call:
  the window it covers ends at the earlier of the requested end date and
  December 31 of the year the window starts in. The calculator's
  continuation loop then calls again for the next sub-period with the
  revalued daily amount, producing one indemnification per year.

EXPENSE CURRENCIES:
  When evaluated in a currency other than its own, the daily benefit rule
  reimburses the service's expenses held in that currency at the configured
  rate instead of paying the allowance.

SEE ALSO:
  - claim/calculator.go: The continuation loop these rules feed
  - benefit.go: JSON wiring of these rules
*/
package factory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/claims-engine/claim"
)

// =============================================================================
// ELIGIBILITY
// =============================================================================

// EligibilityRule restricts a benefit by loss descriptor and duration.
// Empty CoveredLossCodes covers every descriptor.
type EligibilityRule struct {
	CoveredLossCodes []string
	MinLossDays      int
}

func (r *EligibilityRule) Evaluate(ctx claim.RuleContext) (claim.RuleResult, []error) {
	if ctx.Loss == nil {
		return claim.RuleResult{}, []error{fmt.Errorf("eligibility rule: no loss in context")}
	}

	var messages []string
	if len(r.CoveredLossCodes) > 0 && !contains(r.CoveredLossCodes, ctx.Loss.Descriptor.Code) {
		messages = append(messages, fmt.Sprintf("loss %q is not covered", ctx.Loss.Descriptor.Code))
	}
	if r.MinLossDays > 0 && ctx.Loss.EndDate != nil {
		days := claim.DaysBetween(ctx.Loss.StartDate, *ctx.Loss.EndDate) + 1
		if days < r.MinLossDays {
			messages = append(messages, fmt.Sprintf("loss lasted %d days, minimum is %d", days, r.MinLossDays))
		}
	}

	return claim.RuleResult{Eligibility: &claim.EligibilityResult{
		Eligible: len(messages) == 0,
		Messages: messages,
	}}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// DAILY BENEFIT (period kind)
// =============================================================================

// DailyBenefitRule pays a daily allowance over the loss period, after a
// deductible counted from the loss start, capped at MaxDaysPaid paid days,
// with the daily amount revalued each calendar year.
type DailyBenefitRule struct {
	DailyAmount           decimal.Decimal
	Currency              claim.Currency
	DeductibleDays        int
	MaxDaysPaid           int
	AnnualRevaluationRate decimal.Decimal

	// ExpenseReimbursementRate applies when evaluated in an expense
	// currency instead of the rule's own.
	ExpenseReimbursementRate decimal.Decimal
}

func (r *DailyBenefitRule) Evaluate(ctx claim.RuleContext) (claim.RuleResult, []error) {
	if ctx.Currency != "" && ctx.Currency != r.Currency {
		return r.reimburseExpenses(ctx)
	}
	if ctx.EndDate == nil {
		return claim.RuleResult{}, []error{fmt.Errorf("daily benefit requires a loss end date")}
	}

	// Resolve at most one revaluation year per call.
	windowStart := ctx.StartDate
	windowEnd := *ctx.EndDate
	if yearEnd := endOfYear(windowStart); yearEnd.Before(windowEnd) {
		windowEnd = yearEnd
	}
	if windowEnd.Before(windowStart) {
		return claim.RuleResult{}, nil
	}

	details := make(map[claim.DetailKind][]claim.DetailSpec)

	// Deductible days count from the loss start, so a continuation call
	// resumes where the previous sub-period left off.
	consumed := claim.DaysBetween(ctx.Loss.StartDate, windowStart)
	deductibleLeft := r.DeductibleDays - consumed
	if deductibleLeft < 0 {
		deductibleLeft = 0
	}
	windowDays := claim.DaysBetween(windowStart, windowEnd) + 1
	if deductibleLeft > windowDays {
		deductibleLeft = windowDays
	}
	if deductibleLeft > 0 {
		dedEnd := windowStart.AddDays(deductibleLeft - 1)
		details[claim.DetailDeductible] = []claim.DetailSpec{{
			StartDate:     windowStart.Ptr(),
			EndDate:       dedEnd.Ptr(),
			AmountPerUnit: decimal.Zero,
			UnitCount:     decimal.NewFromInt(int64(deductibleLeft)),
		}}
	}

	payDays := windowDays - deductibleLeft
	if payDays <= 0 {
		return claim.RuleResult{Details: details}, nil
	}
	payStart := windowStart.AddDays(deductibleLeft)
	daily := r.revaluedDaily(ctx.Loss.StartDate, windowStart)

	details[claim.DetailBenefit] = []claim.DetailSpec{{
		StartDate:     payStart.Ptr(),
		EndDate:       windowEnd.Ptr(),
		AmountPerUnit: daily,
		UnitCount:     decimal.NewFromInt(int64(payDays)),
	}}

	// Cap: days paid before this window plus this window's pay days must
	// not exceed the maximum. Excess is clawed back by a limit line.
	if r.MaxDaysPaid > 0 {
		paidBefore := consumed - r.DeductibleDays
		if paidBefore < 0 {
			paidBefore = 0
		}
		excess := paidBefore + payDays - r.MaxDaysPaid
		if excess > 0 {
			if excess > payDays {
				excess = payDays
			}
			details[claim.DetailLimit] = []claim.DetailSpec{{
				StartDate:     windowEnd.AddDays(1 - excess).Ptr(),
				EndDate:       windowEnd.Ptr(),
				AmountPerUnit: daily,
				UnitCount:     decimal.NewFromInt(int64(-excess)),
			}}
		}
	}

	return claim.RuleResult{Details: details}, nil
}

// reimburseExpenses pays the service's expenses held in the evaluation
// currency at the configured rate.
func (r *DailyBenefitRule) reimburseExpenses(ctx claim.RuleContext) (claim.RuleResult, []error) {
	if r.ExpenseReimbursementRate.IsZero() || ctx.Service == nil {
		return claim.RuleResult{}, nil
	}
	var specs []claim.DetailSpec
	for _, e := range ctx.Service.Expenses {
		if e.Amount.Currency != ctx.Currency {
			continue
		}
		specs = append(specs, claim.DetailSpec{
			StartDate:     ctx.StartDate.Ptr(),
			EndDate:       ctx.EndDate,
			AmountPerUnit: e.Amount.Amount,
			UnitCount:     r.ExpenseReimbursementRate,
		})
	}
	if len(specs) == 0 {
		return claim.RuleResult{}, nil
	}
	return claim.RuleResult{Details: map[claim.DetailKind][]claim.DetailSpec{
		claim.DetailBenefit: specs,
	}}, nil
}

// revaluedDaily applies the annual revaluation for each full calendar year
// elapsed between the loss start and the window start.
func (r *DailyBenefitRule) revaluedDaily(lossStart, windowStart claim.Date) decimal.Decimal {
	years := windowStart.Time.Year() - lossStart.Time.Year()
	if years <= 0 || r.AnnualRevaluationRate.IsZero() {
		return r.DailyAmount
	}
	factor := decimal.NewFromInt(1).Add(r.AnnualRevaluationRate)
	daily := r.DailyAmount
	for i := 0; i < years; i++ {
		daily = daily.Mul(factor)
	}
	return daily
}

func endOfYear(d claim.Date) claim.Date {
	return claim.NewDate(d.Time.Year(), 12, 31)
}

// =============================================================================
// CAPITAL (capital kind)
// =============================================================================

// CapitalRule pays a lump sum once. The single detail spans the whole
// requested window, so a dated loss resolves in one call instead of
// re-entering the continuation loop.
type CapitalRule struct {
	Amount   decimal.Decimal
	Currency claim.Currency
}

func (r *CapitalRule) Evaluate(ctx claim.RuleContext) (claim.RuleResult, []error) {
	if ctx.Currency != "" && ctx.Currency != r.Currency {
		return claim.RuleResult{}, nil
	}
	end := ctx.StartDate
	if ctx.EndDate != nil {
		end = *ctx.EndDate
	}
	return claim.RuleResult{Details: map[claim.DetailKind][]claim.DetailSpec{
		claim.DetailBenefit: {{
			StartDate:     ctx.StartDate.Ptr(),
			EndDate:       end.Ptr(),
			AmountPerUnit: r.Amount,
			UnitCount:     decimal.NewFromInt(1),
		}},
	}}, nil
}

// =============================================================================
// ANNUITY (annuity kind)
// =============================================================================

// AnnuityRule pays a fixed monthly amount, one month per call: the
// continuation loop yields one indemnification per month of the window.
type AnnuityRule struct {
	MonthlyAmount decimal.Decimal
	Currency      claim.Currency
}

func (r *AnnuityRule) Evaluate(ctx claim.RuleContext) (claim.RuleResult, []error) {
	if ctx.Currency != "" && ctx.Currency != r.Currency {
		return claim.RuleResult{}, nil
	}
	if ctx.EndDate == nil {
		return claim.RuleResult{}, []error{fmt.Errorf("annuity requires a loss end date")}
	}
	monthEnd := ctx.StartDate.AddMonths(1).AddDays(-1)
	if ctx.EndDate.Before(monthEnd) {
		monthEnd = *ctx.EndDate
	}
	return claim.RuleResult{Details: map[claim.DetailKind][]claim.DetailSpec{
		claim.DetailBenefit: {{
			StartDate:     ctx.StartDate.Ptr(),
			EndDate:       monthEnd.Ptr(),
			AmountPerUnit: r.MonthlyAmount,
			UnitCount:     decimal.NewFromInt(1),
		}},
	}}, nil
}
