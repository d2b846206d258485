/*
selector.go - Batch filter grammar for bulk validate/reject

PURPOSE:
  Operators review calculated indemnifications in bulk. The working set is
  selected with a small textual filter of (field, operator, value) triples,
  e.g.:

    status: = calculated, start_date: <= 2024-01-01

  Tokens are separated by spaces, commas or colons; double-quoted values
  preserve embedded separators. Date-typed fields take YYYY-MM-DD literals.

NULL TOLERANCE:
  Each triple becomes a clause tolerant of missing data:
  (field IS NULL) OR (field operator value). A record without an end date
  is not excluded by an end_date filter.

BOUNDED WORKING SET:
  Searches are ordered by start date and bounded by an explicit limit
  (default 20) to keep the enclosing transaction scope predictable.

SEE ALSO:
  - status.go: The transitions the review applies
  - store.go: SearchIndemnifications
*/
package claim

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TOKENIZER
// =============================================================================

// Tokenize splits a selector string on spaces, commas and colons. A
// double-quoted token keeps its embedded separators.
func Tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	quoted := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			if quoted {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			quoted = !quoted
		case (r == ' ' || r == ',' || r == ':') && !quoted:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// =============================================================================
// CLAUSES
// =============================================================================

// Clause is one parsed (field, operator, value) triple. Date is populated
// for date-typed fields, Amount for the amount field.
type Clause struct {
	Field    string
	Operator string
	Value    string
	Date     *Date
	Amount   *decimal.Decimal
}

var selectorFields = map[string]string{
	"status":     "string",
	"kind":       "string",
	"start_date": "date",
	"end_date":   "date",
	"amount":     "amount",
}

var selectorOperators = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// ParseSelector converts a filter string into ordered clauses.
func ParseSelector(input string) ([]Clause, error) {
	tokens := Tokenize(input)
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens)%3 != 0 {
		return nil, &SelectorError{Input: input, Reason: "tokens do not form (field, operator, value) triples"}
	}
	clauses := make([]Clause, 0, len(tokens)/3)
	for i := 0; i < len(tokens); i += 3 {
		clause := Clause{Field: tokens[i], Operator: tokens[i+1], Value: tokens[i+2]}
		fieldType, known := selectorFields[clause.Field]
		if !known {
			return nil, &SelectorError{Input: input, Reason: fmt.Sprintf("unknown field %q", clause.Field)}
		}
		if !selectorOperators[clause.Operator] {
			return nil, &SelectorError{Input: input, Reason: fmt.Sprintf("unknown operator %q", clause.Operator)}
		}
		switch fieldType {
		case "date":
			d, err := ParseDate(clause.Value)
			if err != nil {
				return nil, &SelectorError{Input: input, Reason: fmt.Sprintf("bad date literal %q", clause.Value)}
			}
			clause.Date = d.Ptr()
		case "amount":
			a, err := decimal.NewFromString(clause.Value)
			if err != nil {
				return nil, &SelectorError{Input: input, Reason: fmt.Sprintf("bad amount literal %q", clause.Value)}
			}
			clause.Amount = &a
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// Matches evaluates the null-tolerant clause against one indemnification:
// a record with no value for the field passes.
func (cl Clause) Matches(ind *Indemnification) bool {
	switch cl.Field {
	case "status":
		return compareStrings(string(ind.Status), cl.Operator, cl.Value)
	case "kind":
		return compareStrings(string(ind.Kind), cl.Operator, cl.Value)
	case "start_date":
		if ind.StartDate.IsZero() {
			return true
		}
		return compareDates(ind.StartDate, cl.Operator, *cl.Date)
	case "end_date":
		if ind.EndDate.IsZero() {
			return true
		}
		return compareDates(ind.EndDate, cl.Operator, *cl.Date)
	case "amount":
		return compareDecimals(ind.Amount.Amount, cl.Operator, *cl.Amount)
	default:
		return false
	}
}

func compareStrings(have, op, want string) bool {
	switch op {
	case "=":
		return have == want
	case "!=":
		return have != want
	case "<":
		return have < want
	case "<=":
		return have <= want
	case ">":
		return have > want
	case ">=":
		return have >= want
	}
	return false
}

func compareDates(have Date, op string, want Date) bool {
	switch op {
	case "=":
		return have.Equal(want)
	case "!=":
		return !have.Equal(want)
	case "<":
		return have.Before(want)
	case "<=":
		return have.BeforeOrEqual(want)
	case ">":
		return have.After(want)
	case ">=":
		return have.AfterOrEqual(want)
	}
	return false
}

func compareDecimals(have decimal.Decimal, op string, want decimal.Decimal) bool {
	switch cmp := have.Cmp(want); op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// =============================================================================
// BATCH REVIEW
// =============================================================================

// DefaultReviewLimit bounds the working set of a review session.
const DefaultReviewLimit = 20

type Decision string

const (
	DecisionNothing  Decision = "nothing"
	DecisionValidate Decision = "validate"
	DecisionReject   Decision = "reject"
)

// BatchReviewer drives the bulk validate/reject operation: select a
// bounded working set, apply operator decisions, then complete payments
// and refresh each touched claim.
type BatchReviewer struct {
	Store Store
}

func NewBatchReviewer(store Store) *BatchReviewer {
	return &BatchReviewer{Store: store}
}

// Find builds the working set for a selector string.
func (r *BatchReviewer) Find(ctx context.Context, selector string, limit int) ([]*Indemnification, error) {
	clauses, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultReviewLimit
	}
	return r.Store.SearchIndemnifications(ctx, clauses, limit)
}

// Apply executes the operator's decisions over a working set. Every claim
// touched gets its validated indemnifications completed and its sub-status
// re-derived on save. Errors are accumulated and surfaced, not thrown.
func (r *BatchReviewer) Apply(ctx context.Context, working []*Indemnification, decisions map[IndemnificationID]Decision) []error {
	touched := make(map[ClaimID]*Claim)
	for _, ind := range working {
		switch decisions[ind.ID] {
		case DecisionValidate:
			ind.Validate()
		case DecisionReject:
			ind.Reject()
		default:
			continue
		}
		c := ind.Service.Loss.Claim
		touched[c.ID] = c
	}

	var errs []error
	for _, c := range touched {
		c.CompleteIndemnifications()
		if err := r.Store.SaveClaim(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
