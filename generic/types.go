/*
Package generic provides the core request lifecycle engine.

PURPOSE:
  This package contains the types and algorithms shared by every kind of
  self-service request. Leave applications and reimbursements move through
  the same pending -> approved/rejected lifecycle; leave approvals
  additionally draw down the employee's leave ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: EmployeeID, RequestID (type-safe strings)
  - Kind: which request family a record belongs to (leave, reimbursement)
  - Status: lifecycle state (pending, approved, rejected)
  - Money: decimal amount scoped to an ISO-4217 currency
  - Employee: directory record used for scoping and auditing

DESIGN PRINCIPLES:
  1. Terminal states: a request transitions exactly once
  2. Precision: money uses decimal.Decimal, never float64
  3. Type Safety: distinct ID types so employee and request IDs never mix
  4. Auditability: every transition produces an AuditEntry

SEE ALSO:
  - request.go: Request sum type and submissions
  - balance.go: Leave ledger arithmetic
  - engine.go: Lifecycle engine
  - store.go: Persistence interfaces
*/
package generic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RequestID string

// =============================================================================
// KIND - Request family
// =============================================================================

type Kind string

const (
	KindLeave         Kind = "leave"
	KindReimbursement Kind = "reimbursement"
)

// Kinds lists every request family in listing order.
var Kinds = []Kind{KindLeave, KindReimbursement}

func (k Kind) Valid() bool { return k == KindLeave || k == KindReimbursement }

// ParseKind accepts the singular and plural forms used by URLs.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "leave", "leaves":
		return KindLeave, nil
	case "reimbursement", "reimbursements":
		return KindReimbursement, nil
	}
	return "", fmt.Errorf("unknown request kind %q", s)
}

// =============================================================================
// STATUS - Lifecycle state
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

// =============================================================================
// MONEY - Decimal amount in a currency
// =============================================================================

type Currency string

const DefaultCurrency Currency = "USD"

// minorUnits lists currencies whose minor unit count differs from 2.
var minorUnits = map[Currency]int32{
	"BHD": 3, "CLP": 0, "IDR": 0, "ISK": 0, "JOD": 3, "JPY": 0,
	"KRW": 0, "KWD": 3, "OMR": 3, "TND": 3, "UGX": 0, "VND": 0,
}

// Valid reports whether c looks like an ISO-4217 code.
func (c Currency) Valid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// MinorUnits is the number of decimal places an amount may carry.
func (c Currency) MinorUnits() int32 {
	if n, ok := minorUnits[c]; ok {
		return n
	}
	return 2
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(s string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(s)))
}

type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// FitsCurrency reports whether the amount has no more decimal places than
// the currency allows.
func (m Money) FitsCurrency() bool {
	return m.Amount.Equal(m.Amount.Truncate(m.Currency.MinorUnits()))
}

func (m Money) String() string {
	return m.Amount.StringFixed(m.Currency.MinorUnits()) + " " + string(m.Currency)
}

// =============================================================================
// EMPLOYEE - Directory record
// =============================================================================

// Employee is owned by the directory and immutable while the engine runs.
type Employee struct {
	ID         EmployeeID
	Name       string
	Email      string
	Department string
	ApproverID *EmployeeID
}
