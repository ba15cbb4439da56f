// Package model defines the core data structures for the budgetsync application.
package model

import (
	"time"
)

// MatchKind determines how a rule's pattern is interpreted.
type MatchKind string

// Match kind constants.
const (
	MatchExact     MatchKind = "exact"
	MatchSubstring MatchKind = "substring"
	MatchFullRegex MatchKind = "regex"
)

// RuleField selects which transaction text a rule is matched against.
type RuleField string

// Rule field constants.
const (
	FieldPayee    RuleField = "payee"
	FieldMemo     RuleField = "memo"
	FieldCombined RuleField = "combined"
)

// Rule represents a user-authored directive for classifying transactions.
// Rules are loaded pre-sorted by priority (lower number sorts first) and
// consumed read-only by the classifier.
type Rule struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Name          string    `json:"name"`
	Pattern       string    `json:"pattern"`
	Kind          MatchKind `json:"kind"`
	Field         RuleField `json:"field"`
	CategoryID    string    `json:"category_id"`
	CategoryName  string    `json:"category_name"`
	PayeeOverride string    `json:"payee_override,omitempty"`
	ID            int64     `json:"id"`
	Priority      int       `json:"priority"`
	Enabled       bool      `json:"enabled"`
}

// ValidKind reports whether the rule carries a known match kind.
func (r *Rule) ValidKind() bool {
	switch r.Kind {
	case MatchExact, MatchSubstring, MatchFullRegex:
		return true
	}
	return false
}

// ValidField reports whether the rule carries a known target field.
func (r *Rule) ValidField() bool {
	switch r.Field {
	case FieldPayee, FieldMemo, FieldCombined:
		return true
	}
	return false
}
