// Package classify suggests the richer sale/other type for legacy
// income_other and expense_other transactions.
//
// Suggestions are heuristics: operators may accept them or pick another
// type through the migration controller.
package classify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cashflow/internal/core"
)

// Keywords holds the case-insensitive substrings that mark a legacy record
// as sale-related.
type Keywords struct {
	Sale     []string `yaml:"sale"`
	Supplier []string `yaml:"supplier"`
}

// DefaultKeywords returns the travel-agency vocabulary.
func DefaultKeywords() Keywords {
	return Keywords{
		Sale: []string{
			"passagem", "passagens", "viagem", "emissão", "emissao", "venda",
			"pacote", "reserva", "hospedagem", "cruzeiro", "aéreo", "aereo",
		},
		Supplier: []string{
			"fornecedor", "comissão", "comissao", "operadora", "consolidadora",
			"repasse", "companhia aérea", "cia aérea", "hotel",
		},
	}
}

// LoadKeywords reads a YAML file with "sale" and "supplier" lists. Empty
// lists fall back to the defaults.
func LoadKeywords(path string) (Keywords, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Keywords{}, fmt.Errorf("read keywords: %w", err)
	}
	var kw Keywords
	if err := yaml.Unmarshal(raw, &kw); err != nil {
		return Keywords{}, fmt.Errorf("parse keywords %s: %w", path, err)
	}
	def := DefaultKeywords()
	if len(kw.Sale) == 0 {
		kw.Sale = def.Sale
	}
	if len(kw.Supplier) == 0 {
		kw.Supplier = def.Supplier
	}
	return kw.normalized(), nil
}

func (k Keywords) normalized() Keywords {
	norm := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return Keywords{Sale: norm(k.Sale), Supplier: norm(k.Supplier)}
}

// Reason codes explaining a suggestion.
const (
	ReasonClient        = "client"
	ReasonReservation   = "reservation"
	ReasonSupplier      = "supplier"
	ReasonSupplierValue = "supplier_value"
	ReasonKeyword       = "keyword"
	ReasonNoMatch       = "no_match"
	ReasonNotLegacy     = "not_legacy"
)

// Suggestion is a suggested type with the evidence behind it.
type Suggestion struct {
	Current   core.Type
	Suggested core.Type
	Reason    string
	Keyword   string // set when Reason is ReasonKeyword
	Field     string // "description" or "category" for keyword matches
}

// Changes reports whether accepting the suggestion would change the type.
func (s Suggestion) Changes() bool {
	return s.Current != s.Suggested
}

var ErrNoKeywords = errors.New("classifier needs at least one keyword")

type Classifier struct {
	kw Keywords
}

// New builds a classifier over kw. Both lists empty is an error.
func New(kw Keywords) (*Classifier, error) {
	kw = kw.normalized()
	if len(kw.Sale) == 0 && len(kw.Supplier) == 0 {
		return nil, ErrNoKeywords
	}
	return &Classifier{kw: kw}, nil
}

// Default returns a classifier using DefaultKeywords.
func Default() *Classifier {
	return &Classifier{kw: DefaultKeywords().normalized()}
}

// Keywords returns a copy of the configured keyword lists.
func (c *Classifier) Keywords() Keywords {
	return Keywords{
		Sale:     append([]string(nil), c.kw.Sale...),
		Supplier: append([]string(nil), c.kw.Supplier...),
	}
}

// Suggest returns the suggested type of t. Records that are not legacy
// "other" types are returned with their own type.
func (c *Classifier) Suggest(t core.Transaction) core.Type {
	return c.Explain(t).Suggested
}

// Explain is Suggest plus the matched field or keyword.
func (c *Classifier) Explain(t core.Transaction) Suggestion {
	s := Suggestion{Current: t.Type, Suggested: t.Type}
	switch t.Type {
	case core.IncomeOther:
		if t.Client() != "" {
			return s.to(core.IncomeSale, ReasonClient)
		}
		if t.Sale != nil && strings.TrimSpace(t.Sale.Reservation) != "" {
			return s.to(core.IncomeSale, ReasonReservation)
		}
		if field, kw, ok := match(t, c.kw.Sale); ok {
			s = s.to(core.IncomeSale, ReasonKeyword)
			s.Field, s.Keyword = field, kw
			return s
		}
	case core.ExpenseOther:
		if t.Sale != nil && strings.TrimSpace(t.Sale.Supplier) != "" {
			return s.to(core.ExpenseSale, ReasonSupplier)
		}
		if t.Sale != nil && (t.Sale.SupplierValue != nil || len(t.Sale.Suppliers) > 0) {
			return s.to(core.ExpenseSale, ReasonSupplierValue)
		}
		if field, kw, ok := match(t, c.kw.Supplier); ok {
			s = s.to(core.ExpenseSale, ReasonKeyword)
			s.Field, s.Keyword = field, kw
			return s
		}
	default:
		s.Reason = ReasonNotLegacy
		return s
	}
	s.Reason = ReasonNoMatch
	return s
}

func (s Suggestion) to(t core.Type, reason string) Suggestion {
	s.Suggested = t
	s.Reason = reason
	return s
}

func match(t core.Transaction, keywords []string) (field, keyword string, ok bool) {
	fields := []struct{ name, value string }{
		{"description", strings.ToLower(t.Description)},
		{"category", strings.ToLower(t.Category)},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(f.value, kw) {
				return f.name, kw, true
			}
		}
	}
	return "", "", false
}
