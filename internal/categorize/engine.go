// Package categorize provides a YAML-based prioritized rule engine that
// assigns semantic categories to transactions with a confidence score.
package categorize

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/finlatam/bankparse/internal/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

// customPriorityBoost lifts caller-supplied rules above every default rule.
const customPriorityBoost = 1000

// fallbackConfidence is assigned when no rule matches.
const fallbackConfidence = 0.1

// Rule is one categorization rule. Rules are data, not code: they can be
// supplied from YAML files, serialized, and tested independently of the
// matching engine. Every criterion is optional.
type Rule struct {
	ID                  string                   `yaml:"id"`
	Name                string                   `yaml:"name"`
	Category            domain.Category          `yaml:"category"`
	Priority            int                      `yaml:"priority"`
	DescriptionPatterns []string                 `yaml:"description_patterns,omitempty"`
	PayeePatterns       []string                 `yaml:"payee_patterns,omitempty"`
	MinAmount           *float64                 `yaml:"min_amount,omitempty"`
	MaxAmount           *float64                 `yaml:"max_amount,omitempty"`
	TransactionTypes    []domain.TransactionType `yaml:"transaction_types,omitempty"`
	Direction           *domain.Direction        `yaml:"direction,omitempty"`
}

// ruleSet is the top-level YAML structure.
type ruleSet struct {
	Rules []Rule `yaml:"rules"`
}

// compiledRule pairs a rule with its patterns compiled once, reused across
// every transaction in a batch.
type compiledRule struct {
	Rule
	effectivePriority int
	descPatterns      []*regexp.Regexp
	payeePatterns     []*regexp.Regexp
}

// Result is the outcome of categorizing one transaction. Categorization
// never fails: absence of any match yields OTHER at low confidence with an
// empty RuleID.
type Result struct {
	Category   domain.Category
	Confidence float64
	RuleID     string
}

// BatchStats aggregates the outcome of categorizing a whole statement.
type BatchStats struct {
	PerCategoryCount map[domain.Category]int
	PerCategoryTotal map[domain.Category]float64 // sum of absolute amounts
	Categorized      int                         // non-OTHER results
	Uncategorized    int
	MeanConfidence   float64
}

// Engine matches transactions against a prioritized rule set. Custom rules
// are boosted above the shipped defaults. Safe for concurrent use: matching
// reads compiled state only.
type Engine struct {
	rules []compiledRule // sorted by effective priority, highest first
}

// NewEngine builds an engine from the embedded default rule set plus
// optional caller-supplied rules, which always outrank defaults.
func NewEngine(custom []Rule) (*Engine, error) {
	defaults, err := LoadRules(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules (possible binary corruption): %w", err)
	}

	compiled := make([]compiledRule, 0, len(defaults)+len(custom))
	for i, r := range defaults {
		cr, err := compileRule(r, r.Priority)
		if err != nil {
			return nil, fmt.Errorf("default rule %d (%s): %w", i, r.ID, err)
		}
		compiled = append(compiled, *cr)
	}
	for i, r := range custom {
		cr, err := compileRule(r, r.Priority+customPriorityBoost)
		if err != nil {
			return nil, fmt.Errorf("custom rule %d (%s): %w", i, r.ID, err)
		}
		compiled = append(compiled, *cr)
	}

	// Stable sort keeps definition order for equal priorities, so matching
	// is deterministic.
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].effectivePriority > compiled[j].effectivePriority
	})

	return &Engine{rules: compiled}, nil
}

// LoadRules parses a YAML rule set and validates every rule.
func LoadRules(data []byte) ([]Rule, error) {
	var rs ruleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}
	for i, r := range rs.Rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.ID, err)
		}
	}
	return rs.Rules, nil
}

// LoadRulesFile loads rules from a filesystem path.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := LoadRules(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return rules, nil
}

func validateRule(r Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule ID cannot be empty")
	}
	if r.Category == "" {
		return fmt.Errorf("category cannot be empty")
	}
	if r.Priority < 0 || r.Priority > 999 {
		return fmt.Errorf("priority must be in [0,999], got %d", r.Priority)
	}
	if r.Direction != nil && *r.Direction != domain.DirectionCredit && *r.Direction != domain.DirectionDebit {
		return fmt.Errorf("invalid direction %q", *r.Direction)
	}
	for _, t := range r.TransactionTypes {
		if !domain.ValidateTransactionType(t) {
			return fmt.Errorf("invalid transaction type %q", t)
		}
	}
	if r.MinAmount != nil && r.MaxAmount != nil && *r.MinAmount > *r.MaxAmount {
		return fmt.Errorf("min_amount %f exceeds max_amount %f", *r.MinAmount, *r.MaxAmount)
	}
	return nil
}

func compileRule(r Rule, effectivePriority int) (*compiledRule, error) {
	cr := compiledRule{Rule: r, effectivePriority: effectivePriority}
	for _, p := range r.DescriptionPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid description pattern %q: %w", p, err)
		}
		cr.descPatterns = append(cr.descPatterns, re)
	}
	for _, p := range r.PayeePatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid payee pattern %q: %w", p, err)
		}
		cr.payeePatterns = append(cr.payeePatterns, re)
	}
	return &cr, nil
}

// Categorize scores the transaction against the rule set in descending
// priority order and returns the first rule that matches at least half of
// its present criteria. Confidence is matched/total criteria.
func (e *Engine) Categorize(txn domain.BankTransaction) Result {
	descText := Fold(txn.Description)
	payeeText := Fold(txn.Payee)

	for _, rule := range e.rules {
		matched, total, ok := rule.score(txn, descText, payeeText)
		if !ok || total == 0 {
			continue
		}
		if matched*2 >= total {
			return Result{
				Category:   rule.Category,
				Confidence: float64(matched) / float64(total),
				RuleID:     rule.ID,
			}
		}
	}

	return Result{Category: domain.CategoryOther, Confidence: fallbackConfidence}
}

// score counts satisfied criteria. Direction is a gate, not a counted
// criterion: a mismatch rejects the rule outright, a match contributes
// nothing, otherwise every debit would half-match every debit-gated rule.
func (r *compiledRule) score(txn domain.BankTransaction, descText, payeeText string) (matched, total int, ok bool) {
	if r.Direction != nil && txn.Direction != *r.Direction {
		return 0, 0, false
	}

	if len(r.TransactionTypes) > 0 {
		total++
		for _, t := range r.TransactionTypes {
			if txn.Type == t {
				matched++
				break
			}
		}
	}

	if len(r.descPatterns) > 0 {
		total++
		for _, re := range r.descPatterns {
			if re.MatchString(descText) {
				matched++
				break
			}
		}
	}

	if len(r.payeePatterns) > 0 {
		total++
		if payeeText != "" {
			for _, re := range r.payeePatterns {
				if re.MatchString(payeeText) {
					matched++
					break
				}
			}
		}
	}

	if r.MinAmount != nil || r.MaxAmount != nil {
		total++
		within := true
		if r.MinAmount != nil && txn.Amount < *r.MinAmount {
			within = false
		}
		if r.MaxAmount != nil && txn.Amount > *r.MaxAmount {
			within = false
		}
		if within {
			matched++
		}
	}

	return matched, total, true
}

// CategorizeAll categorizes a batch and computes aggregate statistics.
func (e *Engine) CategorizeAll(txns []domain.BankTransaction) ([]Result, BatchStats) {
	results := make([]Result, len(txns))
	stats := BatchStats{
		PerCategoryCount: make(map[domain.Category]int),
		PerCategoryTotal: make(map[domain.Category]float64),
	}

	var confidenceSum float64
	for i, txn := range txns {
		res := e.Categorize(txn)
		results[i] = res

		stats.PerCategoryCount[res.Category]++
		amount := txn.Amount
		if amount < 0 {
			amount = -amount
		}
		stats.PerCategoryTotal[res.Category] += amount
		if res.Category == domain.CategoryOther {
			stats.Uncategorized++
		} else {
			stats.Categorized++
		}
		confidenceSum += res.Confidence
	}
	if len(txns) > 0 {
		stats.MeanConfidence = confidenceSum / float64(len(txns))
	}
	return results, stats
}

// Rules returns a copy of the rule definitions in matching order, for
// inspection and debugging.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Rule
	}
	return out
}
