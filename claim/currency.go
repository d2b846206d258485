package claim

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY SERVICE - External rounding and conversion
// =============================================================================

// CurrencyService performs all rounding and conversion for the engine.
// Indemnification amounts are never rounded or converted anywhere else.
type CurrencyService interface {
	// Round rounds an amount to the currency's minor unit.
	Round(m Money) Money

	// Convert expresses an amount in another currency.
	Convert(m Money, to Currency) (Money, error)
}

// =============================================================================
// EXCHANGE SERVICE - Table-driven implementation
// =============================================================================

// ExchangeService is a CurrencyService backed by static digit and rate
// tables. Production deployments replace it with a market-data client.
type ExchangeService struct {
	digits map[Currency]int32
	rates  map[ratePair]decimal.Decimal
}

type ratePair struct {
	From Currency
	To   Currency
}

func NewExchangeService() *ExchangeService {
	return &ExchangeService{
		digits: map[Currency]int32{
			"EUR": 2,
			"USD": 2,
			"GBP": 2,
			"CHF": 2,
			"JPY": 0,
		},
		rates: make(map[ratePair]decimal.Decimal),
	}
}

// SetRate registers a conversion rate and its inverse.
func (s *ExchangeService) SetRate(from, to Currency, rate decimal.Decimal) {
	s.rates[ratePair{from, to}] = rate
	if !rate.IsZero() {
		s.rates[ratePair{to, from}] = decimal.NewFromInt(1).Div(rate)
	}
}

// SetDigits overrides the minor-unit digits for a currency.
func (s *ExchangeService) SetDigits(currency Currency, digits int32) {
	s.digits = copyDigits(s.digits)
	s.digits[currency] = digits
}

func copyDigits(in map[Currency]int32) map[Currency]int32 {
	out := make(map[Currency]int32, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *ExchangeService) Round(m Money) Money {
	digits, ok := s.digits[m.Currency]
	if !ok {
		digits = 2
	}
	return Money{Amount: m.Amount.Round(digits), Currency: m.Currency}
}

func (s *ExchangeService) Convert(m Money, to Currency) (Money, error) {
	if m.Currency == to {
		return m, nil
	}
	rate, ok := s.rates[ratePair{m.Currency, to}]
	if !ok {
		return Money{}, ErrNoExchangeRate
	}
	return Money{Amount: m.Amount.Mul(rate), Currency: to}, nil
}
