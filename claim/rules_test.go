package claim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/claims-engine/claim"
)

func namedRule(name string) claim.Rule {
	return claim.RuleFunc(func(ctx claim.RuleContext) (claim.RuleResult, []error) {
		return claim.RuleResult{Eligibility: &claim.EligibilityResult{
			Eligible: true,
			Messages: []string{name},
		}}, nil
	})
}

func TestProviderChain_PriorityOrder(t *testing.T) {
	// Earlier providers shadow later ones; a provider without the rule is
	// skipped.

	option := &claim.StaticProvider{Rules: map[claim.RuleKind]claim.Rule{
		claim.RuleEligibility: namedRule("option"),
	}}
	coverage := &claim.StaticProvider{Rules: map[claim.RuleKind]claim.Rule{
		claim.RuleEligibility:     namedRule("coverage"),
		claim.RuleIndemnification: namedRule("coverage"),
	}}

	chain := claim.ProviderChain{option, coverage}

	rule, found := chain.Resolve(claim.RuleEligibility)
	require.True(t, found)
	res, errs := rule.Evaluate(claim.RuleContext{})
	require.Empty(t, errs)
	assert.Equal(t, []string{"option"}, res.Eligibility.Messages)

	rule, found = chain.Resolve(claim.RuleIndemnification)
	require.True(t, found)
	res, errs = rule.Evaluate(claim.RuleContext{})
	require.Empty(t, errs)
	assert.Equal(t, []string{"coverage"}, res.Eligibility.Messages)
}

func TestProviderChain_Empty(t *testing.T) {
	var chain claim.ProviderChain
	_, found := chain.Resolve(claim.RuleEligibility)
	assert.False(t, found)
}
