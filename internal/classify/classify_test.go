package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
)

func TestSuggest_Income(t *testing.T) {
	c := Default()

	tests := []struct {
		name     string
		tx       core.Transaction
		expected core.Type
		reason   string
	}{
		{
			name:     "client present",
			tx:       core.Transaction{Type: core.IncomeOther, Sale: &core.SaleDetails{Client: "Maria"}},
			expected: core.IncomeSale,
			reason:   ReasonClient,
		},
		{
			name:     "reservation present",
			tx:       core.Transaction{Type: core.IncomeOther, Sale: &core.SaleDetails{Reservation: "LOC123"}},
			expected: core.IncomeSale,
			reason:   ReasonReservation,
		},
		{
			name:     "keyword in description, any case",
			tx:       core.Transaction{Type: core.IncomeOther, Description: "PASSAGEM GRU-LIS"},
			expected: core.IncomeSale,
			reason:   ReasonKeyword,
		},
		{
			name:     "keyword in category",
			tx:       core.Transaction{Type: core.IncomeOther, Category: "Vendas balcão"},
			expected: core.IncomeSale,
			reason:   ReasonKeyword,
		},
		{
			name:     "nothing matches",
			tx:       core.Transaction{Type: core.IncomeOther, Description: "Rendimento poupança", Category: "Financeiro"},
			expected: core.IncomeOther,
			reason:   ReasonNoMatch,
		},
		{
			name:     "blank client ignored",
			tx:       core.Transaction{Type: core.IncomeOther, Sale: &core.SaleDetails{Client: "   "}},
			expected: core.IncomeOther,
			reason:   ReasonNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Explain(tt.tx)
			assert.Equal(t, tt.expected, got.Suggested)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.expected, c.Suggest(tt.tx))
		})
	}
}

func TestSuggest_Expense(t *testing.T) {
	c := Default()

	tests := []struct {
		name     string
		tx       core.Transaction
		expected core.Type
	}{
		{"supplier present", core.Transaction{Type: core.ExpenseOther, Sale: &core.SaleDetails{Supplier: "CVC"}}, core.ExpenseSale},
		{"itemized suppliers", core.Transaction{Type: core.ExpenseOther, Sale: &core.SaleDetails{
			Suppliers: []core.SupplierCost{{Name: "Hotel X", Value: core.Money{Cents: 100}}},
		}}, core.ExpenseSale},
		{"commission keyword", core.Transaction{Type: core.ExpenseOther, Description: "Comissão vendedor março"}, core.ExpenseSale},
		{"sale keyword does not apply to expenses", core.Transaction{Type: core.ExpenseOther, Description: "Venda de móveis"}, core.ExpenseOther},
		{"rent", core.Transaction{Type: core.ExpenseOther, Description: "Aluguel", Category: "Escritório"}, core.ExpenseOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Suggest(tt.tx))
		})
	}
}

func TestSuggest_NonLegacyKeepsType(t *testing.T) {
	c := Default()

	for _, typ := range []core.Type{core.IncomeSale, core.ExpenseSale} {
		s := c.Explain(core.Transaction{Type: typ, Description: "fornecedor passagem"})
		assert.Equal(t, typ, s.Suggested)
		assert.Equal(t, ReasonNotLegacy, s.Reason)
		assert.False(t, s.Changes())
	}
}

func TestExplain_ReportsKeyword(t *testing.T) {
	c, err := New(Keywords{Sale: []string{"  Cruzeiro "}})
	require.NoError(t, err)

	s := c.Explain(core.Transaction{Type: core.IncomeOther, Description: "Cruzeiro pelo Caribe"})

	assert.True(t, s.Changes())
	assert.Equal(t, "cruzeiro", s.Keyword)
	assert.Equal(t, "description", s.Field)
}

func TestNew_RequiresKeywords(t *testing.T) {
	_, err := New(Keywords{Sale: []string{" "}})
	assert.ErrorIs(t, err, ErrNoKeywords)
}

func TestLoadKeywords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	content := "sale:\n  - Intercâmbio\n  - seguro viagem\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	kw, err := LoadKeywords(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"intercâmbio", "seguro viagem"}, kw.Sale)
	assert.Equal(t, DefaultKeywords().normalized().Supplier, kw.Supplier)

	c, err := New(kw)
	require.NoError(t, err)
	assert.Equal(t, core.IncomeSale, c.Suggest(core.Transaction{Type: core.IncomeOther, Description: "Intercâmbio Dublin"}))
}

func TestLoadKeywords_Errors(t *testing.T) {
	_, err := LoadKeywords(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sale: [unterminated"), 0o600))
	_, err = LoadKeywords(path)
	assert.Error(t, err)
}
