package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	IncomeOther  Type = "income_other"
	ExpenseOther Type = "expense_other"
	IncomeSale   Type = "income_sale"
	ExpenseSale  Type = "expense_sale"
)

const (
	Unmigrated MigrationState = iota
	Migrated
)

type (
	// Type selects the aggregation bucket of a transaction.
	Type string

	// MigrationState is the one-way reclassification marker of a record.
	MigrationState int

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// SupplierCost is one itemized supplier entry of a sale.
	SupplierCost struct {
		Name  string
		Value Money
	}

	// SaleDetails carries the sale-specific fields. It is attached to sale
	// transactions and to legacy records that already hold sale data while
	// awaiting migration.
	SaleDetails struct {
		SaleValue       *Money
		SupplierValue   *Money
		Suppliers       []SupplierCost
		CommissionValue *Money
		Client          string
		Reservation     string
		Supplier        string
		Seller          string
	}

	Transaction struct {
		ID            string
		Type          Type
		Date          Date
		Time          string // HH:MM, optional
		Description   string
		Amount        Money
		Category      string
		PaymentMethod string
		Sale          *SaleDetails
		Migration     MigrationState
		MigratedAt    time.Time
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}
)

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidTime      = errors.New("invalid time")
	ErrEmptyCategory    = errors.New("empty category")
	ErrDirectionChange  = errors.New("migration cannot change income/expense direction")
	ErrInvalidDateRange = errors.New("start date is after end date")
)

var legacyTypes = map[string]Type{
	"entrada":        IncomeOther,
	"saida":          ExpenseOther,
	"saída":          ExpenseOther,
	"entrada_vendas": IncomeSale,
	"saida_vendas":   ExpenseSale,
}

// ParseType accepts both the canonical names and the legacy Portuguese
// vocabulary (entrada, saida, entrada_vendas, saida_vendas).
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	t := Type(s)
	if t.IsValid() {
		return t, nil
	}
	if legacy, ok := legacyTypes[s]; ok {
		return legacy, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t Type) IsValid() bool {
	switch t {
	case IncomeOther, ExpenseOther, IncomeSale, ExpenseSale:
		return true
	default:
		return false
	}
}

// IsIncome reports whether the type belongs to an income bucket.
func (t Type) IsIncome() bool {
	return t == IncomeOther || t == IncomeSale
}

// IsExpense reports whether the type belongs to an expense bucket.
func (t Type) IsExpense() bool {
	return t == ExpenseOther || t == ExpenseSale
}

// IsSale reports whether the type is one of the sale variants.
func (t Type) IsSale() bool {
	return t == IncomeSale || t == ExpenseSale
}

// IsLegacy reports whether the type is one of the two "other" buckets
// that migration starts from.
func (t Type) IsLegacy() bool {
	return t == IncomeOther || t == ExpenseOther
}

// Legacy returns the Portuguese name used by the original data set.
func (t Type) Legacy() string {
	switch t {
	case IncomeOther:
		return "entrada"
	case ExpenseOther:
		return "saida"
	case IncomeSale:
		return "entrada_vendas"
	case ExpenseSale:
		return "saida_vendas"
	}
	return ""
}

func (t Type) String() string {
	return string(t)
}

func (s MigrationState) String() string {
	if s == Migrated {
		return "migrated"
	}
	return "unmigrated"
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// Between reports whether d falls in the inclusive range [start, end].
// A zero bound is open.
func (d Date) Between(start, end Date) bool {
	if !start.IsZero() && d.Before(start.Time) {
		return false
	}
	if !end.IsZero() && d.After(end.Time) {
		return false
	}
	return true
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// MoneyPtr is a convenience for optional money fields.
func MoneyPtr(cents int64) *Money {
	return &Money{Cents: cents}
}

// SaleValue returns the booked sale value, falling back to the amount.
func (t Transaction) SaleValue() Money {
	if t.Sale != nil && t.Sale.SaleValue != nil {
		return *t.Sale.SaleValue
	}
	return t.Amount
}

// SupplierCost resolves the effective supplier cost: a single supplier value
// wins over itemized suppliers; with neither the cost is zero.
func (t Transaction) SupplierCost() Money {
	if t.Sale == nil {
		return Money{}
	}
	if t.Sale.SupplierValue != nil {
		return *t.Sale.SupplierValue
	}
	var total Money
	for _, s := range t.Sale.Suppliers {
		total = total.Add(s.Value)
	}
	return total
}

// Commission returns the commission value or zero.
func (t Transaction) Commission() Money {
	if t.Sale == nil || t.Sale.CommissionValue == nil {
		return Money{}
	}
	return *t.Sale.CommissionValue
}

// Profit is sale value minus supplier cost minus commission.
func (t Transaction) Profit() Money {
	return t.SaleValue().Sub(t.SupplierCost()).Sub(t.Commission())
}

// Seller returns the trimmed seller name, empty when absent.
func (t Transaction) Seller() string {
	if t.Sale == nil {
		return ""
	}
	return strings.TrimSpace(t.Sale.Seller)
}

// Client returns the trimmed client name, empty when absent.
func (t Transaction) Client() string {
	if t.Sale == nil {
		return ""
	}
	return strings.TrimSpace(t.Sale.Client)
}

func (t Transaction) IsMigrated() bool {
	return t.Migration == Migrated
}

// Migrate performs the one-way Unmigrated -> Migrated transition. The type
// may only move within its direction (income stays income). On an already
// migrated record it returns the record unchanged and false.
func (t Transaction) Migrate(target Type, at time.Time) (Transaction, bool, error) {
	if t.IsMigrated() {
		return t, false, nil
	}
	if !target.IsValid() {
		return t, false, fmt.Errorf("%w: %q", ErrInvalidType, target)
	}
	if target.IsIncome() != t.Type.IsIncome() {
		return t, false, fmt.Errorf("%w: %s -> %s", ErrDirectionChange, t.Type, target)
	}
	t.Type = target
	t.Migration = Migrated
	t.MigratedAt = at.UTC()
	return t, true, nil
}

func (t Transaction) Validate() error {
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Time != "" {
		if _, err := time.Parse("15:04", t.Time); err != nil {
			return ErrInvalidTime
		}
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if t.Sale != nil {
		if err := t.Sale.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s SaleDetails) Validate() error {
	for _, m := range []*Money{s.SaleValue, s.SupplierValue, s.CommissionValue} {
		if m != nil && m.Cents < 0 {
			return ErrInvalidAmount
		}
	}
	for _, sc := range s.Suppliers {
		if err := sc.Value.Validate(); err != nil {
			return fmt.Errorf("supplier %q: %w", sc.Name, err)
		}
	}
	return nil
}

// IsEmpty reports whether no sale field is set.
func (s *SaleDetails) IsEmpty() bool {
	if s == nil {
		return true
	}
	return s.SaleValue == nil && s.SupplierValue == nil && len(s.Suppliers) == 0 &&
		s.CommissionValue == nil && s.Client == "" && s.Reservation == "" &&
		s.Supplier == "" && s.Seller == ""
}

// Clone returns a deep copy of t so callers can mutate it freely.
func (t Transaction) Clone() Transaction {
	if t.Sale == nil {
		return t
	}
	s := *t.Sale
	for _, p := range []**Money{&s.SaleValue, &s.SupplierValue, &s.CommissionValue} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	s.Suppliers = append([]SupplierCost(nil), s.Suppliers...)
	t.Sale = &s
	return t
}
