package google

import (
	"strings"

	"cashflow/internal/analytics"
	"cashflow/internal/core"
)

// Ledger columns: ID, date, time, type, description, amount, category,
// payment method, sale value, supplier cost, commission, profit, client,
// seller, migrated.
const lastColumn = "O"

var header = []any{
	"ID", "Data", "Hora", "Tipo", "Descrição", "Valor", "Categoria", "Pagamento",
	"Valor venda", "Fornecedores", "Comissão", "Lucro", "Cliente", "Vendedor", "Migrado",
}

func ledgerRow(t core.Transaction) []any {
	row := []any{
		t.ID,
		t.Date.String(),
		t.Time,
		t.Type.Legacy(),
		t.Description,
		reais(t.Amount),
		t.Category,
		t.PaymentMethod,
		"", "", "", "",
		t.Client(),
		t.Seller(),
		migratedLabel(t),
	}
	if t.Type.IsSale() || !t.Sale.IsEmpty() {
		row[8] = reais(t.SaleValue())
		row[9] = reais(t.SupplierCost())
		row[10] = reais(t.Commission())
		row[11] = reais(t.Profit())
	}
	return row
}

// reais renders cents with a decimal point for USER_ENTERED input.
func reais(m core.Money) string {
	return analytics.Reais(m).StringFixed(2)
}

func migratedLabel(t core.Transaction) string {
	if t.IsMigrated() {
		return "sim"
	}
	return "não"
}

// rowFor returns the 1-based row of id, or the first row after the data
// when id is new. Row 1 is reserved for the header.
func rowFor(ids []string, id string) int {
	if idx := indexOf(ids, id); idx >= 0 {
		return idx + 1
	}
	if len(ids) == 0 {
		return 2
	}
	return len(ids) + 1
}

func indexOf(arr []string, target string) int {
	target = strings.TrimSpace(target)
	for i, v := range arr {
		if strings.TrimSpace(v) == target {
			return i
		}
	}
	return -1
}
