package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DuplicateDetail records why a duplicate status was assigned. It is carried
// by every status variant so the UI or logs can explain the outcome without a
// separate lookup.
type DuplicateDetail struct {
	Reference      string
	FuzzyPayee     string
	FuzzyDate      time.Time
	FuzzyAmount    decimal.Decimal
	ReferenceMatch bool
	ImportIDMatch  bool
	FuzzyFound     bool
}

// DuplicateStatus is the outcome of duplicate detection for one transaction.
// Exactly three variants exist: NotDuplicate, PossibleDuplicate and
// ConfirmedDuplicate.
type DuplicateStatus interface {
	// Detail returns the diagnostic record behind this status.
	Detail() DuplicateDetail
	duplicateStatus()
}

// NotDuplicate means no ledger entry matched by any strategy.
type NotDuplicate struct {
	Diag DuplicateDetail
}

// PossibleDuplicate means only the fuzzy strategy matched; the user should
// decide.
type PossibleDuplicate struct {
	Reason string
	Diag   DuplicateDetail
}

// ConfirmedDuplicate means a reference or import-id match proved the
// transaction was already imported.
type ConfirmedDuplicate struct {
	MatchedReference string
	Diag             DuplicateDetail
}

// Detail returns the diagnostic record behind this status.
func (s NotDuplicate) Detail() DuplicateDetail { return s.Diag }

// Detail returns the diagnostic record behind this status.
func (s PossibleDuplicate) Detail() DuplicateDetail { return s.Diag }

// Detail returns the diagnostic record behind this status.
func (s ConfirmedDuplicate) Detail() DuplicateDetail { return s.Diag }

func (NotDuplicate) duplicateStatus()       {}
func (PossibleDuplicate) duplicateStatus()  {}
func (ConfirmedDuplicate) duplicateStatus() {}
