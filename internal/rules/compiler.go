// Package rules implements the rule compilation and transaction
// classification engine.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/budgetsync/budgetsync/internal/model"
)

// CompiledRule pairs a rule with its pre-built matcher. It is built once per
// classification pass and never persisted.
type CompiledRule struct {
	regex *regexp.Regexp
	model.Rule
}

// Matches reports whether the rule's pattern matches the given text.
func (c *CompiledRule) Matches(text string) bool {
	return c.regex.MatchString(text)
}

// CompileError describes a rule pattern that failed to compile.
type CompileError struct {
	Pattern string
	Reason  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %s", e.Pattern, e.Reason)
}

// CompileErrors collects every compile failure from a batch so the caller can
// report all broken rules in one pass.
type CompileErrors []*CompileError

func (e CompileErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ce := range e {
		msgs[i] = ce.Error()
	}
	return fmt.Sprintf("%d rule(s) failed to compile: %s", len(e), strings.Join(msgs, "; "))
}

// Compile turns a rule into an executable matcher. Exact and substring
// patterns are escaped; exact patterns are additionally anchored to the whole
// field. All matching is case-insensitive.
func Compile(rule model.Rule) (*CompiledRule, error) {
	var source string
	switch rule.Kind {
	case model.MatchExact:
		source = "(?i)^" + regexp.QuoteMeta(rule.Pattern) + "$"
	case model.MatchSubstring:
		source = "(?i)" + regexp.QuoteMeta(rule.Pattern)
	case model.MatchFullRegex:
		source = rule.Pattern
		if !strings.HasPrefix(source, "(?i)") {
			source = "(?i)" + source
		}
	default:
		return nil, &CompileError{Pattern: rule.Pattern, Reason: fmt.Sprintf("unknown match kind %q", rule.Kind)}
	}

	regex, err := regexp.Compile(source)
	if err != nil {
		return nil, &CompileError{Pattern: rule.Pattern, Reason: err.Error()}
	}

	return &CompiledRule{Rule: rule, regex: regex}, nil
}

// CompileAll compiles every rule, preserving the caller's ordering. If any
// rule fails, no rules are returned: classification must never run with a
// partially compiled ruleset. All failures are collected rather than
// returned fail-fast.
func CompileAll(ruleSet []model.Rule) ([]CompiledRule, error) {
	compiled := make([]CompiledRule, 0, len(ruleSet))
	var errs CompileErrors

	for _, rule := range ruleSet {
		cr, err := Compile(rule)
		if err != nil {
			var ce *CompileError
			if !errors.As(err, &ce) {
				ce = &CompileError{Pattern: rule.Pattern, Reason: err.Error()}
			}
			errs = append(errs, ce)
			continue
		}
		compiled = append(compiled, *cr)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return compiled, nil
}
