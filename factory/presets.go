/*
presets.go - Pre-built benefit configurations

PURPOSE:
  Provides ready-to-use benefit configurations for common coverage types.
  These are convenience functions that set up Benefit + rule chain
  according to typical group protection patterns.

AVAILABLE BENEFITS:
  DailyAllowanceBenefit: Daily cash allowance for temporary incapacity,
                         with deductible, yearly cap and revaluation
  DeathCapitalBenefit:   Lump sum paid on death
  DisabilityAnnuityBenefit: Monthly annuity for permanent disability

CUSTOMIZATION:
  These are starting points. Real products layer option- and coverage-level
  overrides into the provider chain; presets keep a single static level.

EXAMPLE:
  benefit, chain := factory.DailyAllowanceBenefit("ben-daily", "EUR", "52.30", 3)
  catalog.Register(benefit, chain)

SEE ALSO:
  - rules.go: The rule implementations behind each preset
  - benefit.go: JSON-based benefit creation
*/
package factory

import (
	"github.com/shopspring/decimal"

	"github.com/warp/claims-engine/claim"
)

// DailyAllowanceBenefit returns a typical incapacity daily allowance:
// covered for temporary incapacity losses, deductible counted from the loss
// start, 365 paid days maximum, 2% yearly revaluation.
func DailyAllowanceBenefit(id claim.BenefitID, currency claim.Currency, dailyAmount string, deductibleDays int) (claim.Benefit, claim.ProviderChain) {
	benefit := claim.Benefit{
		ID:   id,
		Code: "daily_allowance",
		Name: "Daily Allowance",
		Kind: claim.KindPeriod,
	}
	chain := claim.ProviderChain{&claim.StaticProvider{Rules: map[claim.RuleKind]claim.Rule{
		claim.RuleEligibility: &EligibilityRule{
			CoveredLossCodes: []string{"temporary_incapacity"},
		},
		claim.RuleIndemnification: &DailyBenefitRule{
			DailyAmount:              mustDecimal(dailyAmount),
			Currency:                 currency,
			DeductibleDays:           deductibleDays,
			MaxDaysPaid:              365,
			AnnualRevaluationRate:    mustDecimal("0.02"),
			ExpenseReimbursementRate: mustDecimal("0.8"),
		},
	}}}
	return benefit, chain
}

// DeathCapitalBenefit returns a lump-sum death benefit.
func DeathCapitalBenefit(id claim.BenefitID, currency claim.Currency, amount string) (claim.Benefit, claim.ProviderChain) {
	benefit := claim.Benefit{
		ID:   id,
		Code: "death_capital",
		Name: "Death Capital",
		Kind: claim.KindCapital,
	}
	chain := claim.ProviderChain{&claim.StaticProvider{Rules: map[claim.RuleKind]claim.Rule{
		claim.RuleEligibility: &EligibilityRule{
			CoveredLossCodes: []string{"death"},
		},
		claim.RuleIndemnification: &CapitalRule{
			Amount:   mustDecimal(amount),
			Currency: currency,
		},
	}}}
	return benefit, chain
}

// DisabilityAnnuityBenefit returns a monthly disability annuity.
func DisabilityAnnuityBenefit(id claim.BenefitID, currency claim.Currency, monthlyAmount string) (claim.Benefit, claim.ProviderChain) {
	benefit := claim.Benefit{
		ID:   id,
		Code: "disability_annuity",
		Name: "Disability Annuity",
		Kind: claim.KindAnnuity,
	}
	chain := claim.ProviderChain{&claim.StaticProvider{Rules: map[claim.RuleKind]claim.Rule{
		claim.RuleEligibility: &EligibilityRule{
			CoveredLossCodes: []string{"permanent_disability"},
		},
		claim.RuleIndemnification: &AnnuityRule{
			MonthlyAmount: mustDecimal(monthlyAmount),
			Currency:      currency,
		},
	}}}
	return benefit, chain
}

// DefaultCatalog registers the preset benefits in euros, the shape the demo
// server boots with.
func DefaultCatalog() *Catalog {
	catalog := NewCatalog()
	catalog.Register(DailyAllowanceBenefit("ben-daily", "EUR", "52.30", 3))
	catalog.Register(DeathCapitalBenefit("ben-death", "EUR", "50000"))
	catalog.Register(DisabilityAnnuityBenefit("ben-annuity", "EUR", "1200"))
	return catalog
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
