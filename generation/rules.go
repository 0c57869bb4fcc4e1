package generation

// AccountType selects the rule set applied to an account's drafts.
type AccountType string

const (
	AccountTypeAdult       AccountType = "adult"
	AccountTypeInfoProduct AccountType = "info_product"
)

// RuleInput is what an account-type rule sees.
type RuleInput struct {
	ForbiddenWords []string
	Body           string
}

// RuleResult is the transformed draft plus anything the rule wants the
// author to know.
type RuleResult struct {
	Body         string   `json:"content"`
	Warnings     []string `json:"warnings"`
	Requirements []string `json:"requirements"`
	AppliedRules []string `json:"appliedRules"`
}

// Rule transforms a draft for one account type.
type Rule func(RuleInput) RuleResult

func baseResult(in RuleInput) RuleResult {
	return RuleResult{
		Body:         in.Body,
		Warnings:     []string{},
		Requirements: []string{},
		AppliedRules: []string{},
	}
}

func markerRule(marker string) Rule {
	return func(in RuleInput) RuleResult {
		r := baseResult(in)
		r.AppliedRules = append(r.AppliedRules, marker)
		return r
	}
}

// identity for unknown or empty account types
var defaultRule Rule = baseResult

var rulesByAccountType = map[AccountType]Rule{
	AccountTypeAdult:       markerRule("adult:placeholder"),
	AccountTypeInfoProduct: markerRule("info_product:placeholder"),
}

// ApplyAccountTypeRules dispatches on accountType. Unknown types fall
// through to the identity rule.
func ApplyAccountTypeRules(accountType AccountType, in RuleInput) RuleResult {
	rule, ok := rulesByAccountType[accountType]
	if !ok {
		rule = defaultRule
	}
	return rule(in)
}
