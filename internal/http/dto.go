package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/analytics"
	"cashflow/internal/classify"
	"cashflow/internal/core"
	"cashflow/internal/migration"
	"cashflow/internal/services"
)

// transactionRequest is the body of POST /transactions and PUT
// /transactions/{id}. Absent fields keep the stored value on PUT.
type transactionRequest struct {
	Type          *string          `json:"type" validate:"omitempty,max=32"`
	Date          *string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time          *string          `json:"time" validate:"omitempty,datetime=15:04"`
	Description   *string          `json:"description" validate:"omitempty,max=500"`
	Amount        *decimal.Decimal `json:"amount" validate:"omitempty,gte=0,lte=1000000000000"`
	Category      *string          `json:"category" validate:"omitempty,max=100"`
	PaymentMethod *string          `json:"payment_method" validate:"omitempty,max=100"`

	SaleValue       *decimal.Decimal  `json:"sale_value" validate:"omitempty,gte=0,lte=1000000000000"`
	SupplierValue   *decimal.Decimal  `json:"supplier_value" validate:"omitempty,gte=0,lte=1000000000000"`
	Suppliers       []supplierRequest `json:"suppliers" validate:"omitempty,dive"`
	CommissionValue *decimal.Decimal  `json:"commission_value" validate:"omitempty,gte=0,lte=1000000000000"`
	Client          *string           `json:"client" validate:"omitempty,max=200"`
	Reservation     *string           `json:"reservation" validate:"omitempty,max=100"`
	Supplier        *string           `json:"supplier" validate:"omitempty,max=200"`
	Seller          *string           `json:"seller" validate:"omitempty,max=200"`

	// Migrate requests the one-way migration even when type is unchanged.
	// Migrated is the same flag under the name the response uses.
	Migrate  bool  `json:"migrate"`
	Migrated *bool `json:"migrated"`

	// Read-only fields of transactionResponse, accepted and ignored so a
	// fetched record can be sent back as is.
	ID         json.RawMessage `json:"id"`
	LegacyType json.RawMessage `json:"legacy_type"`
	MigratedAt json.RawMessage `json:"migrated_at"`
	CreatedAt  json.RawMessage `json:"created_at"`
	UpdatedAt  json.RawMessage `json:"updated_at"`
}

// wantsMigration reports whether the body asks for the one-way migration.
func (req transactionRequest) wantsMigration() bool {
	return req.Migrate || (req.Migrated != nil && *req.Migrated)
}

type supplierRequest struct {
	Name  string          `json:"name" validate:"required,max=200"`
	Value decimal.Decimal `json:"value" validate:"gte=0,lte=1000000000000"`
}

type migrateRequest struct {
	Type string `json:"type" validate:"omitempty,max=32"`
}

// requireForCreate reports the fields a new record cannot do without.
func (req transactionRequest) requireForCreate() error {
	var missing []string
	if req.Type == nil {
		missing = append(missing, "type is required")
	}
	if req.Date == nil {
		missing = append(missing, "date is required")
	}
	if req.Amount == nil {
		missing = append(missing, "amount is required")
	}
	if req.Category == nil {
		missing = append(missing, "category is required")
	}
	if len(missing) > 0 {
		return &requestError{msg: "validation failed", details: missing}
	}
	return nil
}

// apply overlays the request on base and returns the resulting record.
func (req transactionRequest) apply(base core.Transaction) (core.Transaction, error) {
	t := base.Clone()
	if req.Type != nil {
		typ, err := core.ParseType(*req.Type)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Type = typ
	}
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			return core.Transaction{}, badRequest("invalid date %q: expected YYYY-MM-DD", *req.Date)
		}
		t.Date = d
	}
	setString(&t.Time, req.Time)
	setString(&t.Description, req.Description)
	setString(&t.Category, req.Category)
	setString(&t.PaymentMethod, req.PaymentMethod)
	if req.Amount != nil {
		m, err := cents("amount", *req.Amount)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Amount = m
	}

	if req.hasSaleFields() {
		sale := t.Sale
		if sale == nil {
			sale = &core.SaleDetails{}
		}
		for _, f := range []struct {
			name string
			dst  **core.Money
			v    *decimal.Decimal
		}{
			{"sale_value", &sale.SaleValue, req.SaleValue},
			{"supplier_value", &sale.SupplierValue, req.SupplierValue},
			{"commission_value", &sale.CommissionValue, req.CommissionValue},
		} {
			if err := setMoney(f.dst, f.name, f.v); err != nil {
				return core.Transaction{}, err
			}
		}
		if req.Suppliers != nil {
			sale.Suppliers = make([]core.SupplierCost, 0, len(req.Suppliers))
			for _, s := range req.Suppliers {
				v, err := cents("suppliers.value", s.Value)
				if err != nil {
					return core.Transaction{}, err
				}
				sale.Suppliers = append(sale.Suppliers, core.SupplierCost{Name: sanitizeInput(s.Name), Value: v})
			}
		}
		setString(&sale.Client, req.Client)
		setString(&sale.Reservation, req.Reservation)
		setString(&sale.Supplier, req.Supplier)
		setString(&sale.Seller, req.Seller)
		t.Sale = sale
	}
	return t, nil
}

func (req transactionRequest) hasSaleFields() bool {
	return req.SaleValue != nil || req.SupplierValue != nil || req.Suppliers != nil ||
		req.CommissionValue != nil || req.Client != nil || req.Reservation != nil ||
		req.Supplier != nil || req.Seller != nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = sanitizeInput(*v)
	}
}

func setMoney(dst **core.Money, field string, v *decimal.Decimal) error {
	if v == nil {
		return nil
	}
	m, err := cents(field, *v)
	if err != nil {
		return err
	}
	*dst = &m
	return nil
}

// cents converts reais to cents with half-up rounding, rejecting values
// outside [0, core.MaxAmountCents].
func cents(field string, d decimal.Decimal) (core.Money, error) {
	m, err := core.CentsFromDecimal(d)
	if err != nil {
		return core.Money{}, badRequest("%s must be between 0 and %s", field, reais(core.Money{Cents: core.MaxAmountCents}).String())
	}
	return m, nil
}

func reais(m core.Money) number { return num(analytics.Reais(m)) }

func reaisPtr(m *core.Money) *number {
	if m == nil {
		return nil
	}
	n := reais(*m)
	return &n
}

type periodResponse struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func newPeriod(p services.Period) periodResponse {
	return periodResponse{StartDate: p.Start.String(), EndDate: p.End.String()}
}

type supplierResponse struct {
	Name  string `json:"name"`
	Value number `json:"value"`
}

type transactionResponse struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	LegacyType    string `json:"legacy_type"`
	Date          string `json:"date"`
	Time          string `json:"time,omitempty"`
	Description   string `json:"description"`
	Amount        number `json:"amount"`
	Category      string `json:"category"`
	PaymentMethod string `json:"payment_method,omitempty"`

	SaleValue       *number            `json:"sale_value,omitempty"`
	SupplierValue   *number            `json:"supplier_value,omitempty"`
	Suppliers       []supplierResponse `json:"suppliers,omitempty"`
	CommissionValue *number            `json:"commission_value,omitempty"`
	Client          string             `json:"client,omitempty"`
	Reservation     string             `json:"reservation,omitempty"`
	Supplier        string             `json:"supplier,omitempty"`
	Seller          string             `json:"seller,omitempty"`

	Migrated   bool       `json:"migrated"`
	MigratedAt *time.Time `json:"migrated_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func newTransaction(t core.Transaction) transactionResponse {
	out := transactionResponse{
		ID:            t.ID,
		Type:          t.Type.String(),
		LegacyType:    t.Type.Legacy(),
		Date:          t.Date.String(),
		Time:          t.Time,
		Description:   t.Description,
		Amount:        reais(t.Amount),
		Category:      t.Category,
		PaymentMethod: t.PaymentMethod,
		Migrated:      t.IsMigrated(),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	if t.IsMigrated() && !t.MigratedAt.IsZero() {
		at := t.MigratedAt
		out.MigratedAt = &at
	}
	if s := t.Sale; s != nil {
		out.SaleValue = reaisPtr(s.SaleValue)
		out.SupplierValue = reaisPtr(s.SupplierValue)
		out.CommissionValue = reaisPtr(s.CommissionValue)
		for _, sc := range s.Suppliers {
			out.Suppliers = append(out.Suppliers, supplierResponse{Name: sc.Name, Value: reais(sc.Value)})
		}
		out.Client = s.Client
		out.Reservation = s.Reservation
		out.Supplier = s.Supplier
		out.Seller = s.Seller
	}
	return out
}

func newTransactions(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransaction(t))
	}
	return out
}

// summaryResponse keeps the field names the cash-flow dashboard reads.
type summaryResponse struct {
	TotalEntradas     number `json:"totalEntradas"`
	TotalSaidas       number `json:"totalSaidas"`
	SaldoAtual        number `json:"saldoAtual"`
	TransacoesHoje    int    `json:"transacoesHoje"`
	ClientesAtendidos int    `json:"clientesAtendidos"`
	TicketMedio       number `json:"ticketMedio"`
}

func newSummary(d analytics.Dashboard) summaryResponse {
	return summaryResponse{
		TotalEntradas:     reais(d.TotalIncome),
		TotalSaidas:       reais(d.TotalExpense),
		SaldoAtual:        reais(d.Balance),
		TransacoesHoje:    d.TodayCount,
		ClientesAtendidos: d.ClientsServed,
		TicketMedio:       num(d.AverageTicket.Round(2)),
	}
}

type salesMetricsResponse struct {
	TotalSales         number `json:"total_sales"`
	TotalSupplierCosts number `json:"total_supplier_costs"`
	TotalCommissions   number `json:"total_commissions"`
	NetProfit          number `json:"net_profit"`
	SalesCount         int    `json:"sales_count"`
	AverageSale        number `json:"average_sale"`
	SaleExpenses       number `json:"sale_expenses"`
	SaleExpenseCount   int    `json:"sale_expense_count"`
}

func newSalesMetrics(m analytics.SalesMetrics) salesMetricsResponse {
	return salesMetricsResponse{
		TotalSales:         reais(m.TotalSales),
		TotalSupplierCosts: reais(m.TotalSupplierPayments),
		TotalCommissions:   reais(m.TotalCommissions),
		NetProfit:          reais(m.NetSalesProfit),
		SalesCount:         m.SalesCount,
		AverageSale:        num(m.AverageSale.Round(2)),
		SaleExpenses:       reais(m.SaleExpenses),
		SaleExpenseCount:   m.SaleExpenseCount,
	}
}

type saleLineResponse struct {
	transactionResponse
	EffectiveSaleValue   number `json:"effective_sale_value"`
	SupplierCost         number `json:"supplier_cost"`
	Commission           number `json:"commission"`
	Profit               number `json:"profit"`
	CommissionPercentage number `json:"commission_percentage"`
}

type salesAnalysisResponse struct {
	Period       periodResponse       `json:"period"`
	Sales        salesMetricsResponse `json:"sales"`
	Transactions []saleLineResponse   `json:"transactions,omitempty"`
}

func newSalesAnalysis(p services.Period, r analytics.SalesReport, withLines bool) salesAnalysisResponse {
	out := salesAnalysisResponse{Period: newPeriod(p), Sales: newSalesMetrics(r.Metrics)}
	if !withLines {
		return out
	}
	out.Transactions = make([]saleLineResponse, 0, len(r.Lines))
	for _, l := range r.Lines {
		out.Transactions = append(out.Transactions, saleLineResponse{
			transactionResponse:  newTransaction(l.Transaction),
			EffectiveSaleValue:   reais(l.SaleValue),
			SupplierCost:         reais(l.SupplierCost),
			Commission:           reais(l.Commission),
			Profit:               reais(l.Profit),
			CommissionPercentage: num(l.CommissionPercentage),
		})
	}
	return out
}

type changeResponse struct {
	Percent    number `json:"percent"`
	IsPositive bool   `json:"is_positive"`
}

func newChange(c analytics.Change) changeResponse {
	return changeResponse{Percent: num(c.Percent.Round(2)), IsPositive: c.IsPositive}
}

type salesComparisonResponse struct {
	Period         periodResponse            `json:"period"`
	PreviousPeriod periodResponse            `json:"previous_period"`
	Current        salesMetricsResponse      `json:"current"`
	Previous       salesMetricsResponse      `json:"previous"`
	Changes        map[string]changeResponse `json:"changes"`
}

func newSalesComparison(p services.Period, c analytics.SalesComparison) salesComparisonResponse {
	return salesComparisonResponse{
		Period:         newPeriod(p),
		PreviousPeriod: newPeriod(p.Previous()),
		Current:        newSalesMetrics(c.Current),
		Previous:       newSalesMetrics(c.Previous),
		Changes: map[string]changeResponse{
			"total_sales":          newChange(c.TotalSales),
			"total_supplier_costs": newChange(c.TotalSupplierPayments),
			"total_commissions":    newChange(c.TotalCommissions),
			"net_profit":           newChange(c.NetSalesProfit),
			"sales_count":          newChange(c.SalesCount),
			"average_sale":         newChange(c.AverageSale),
		},
	}
}

type completeSummaryResponse struct {
	TotalEntradas number `json:"total_entradas"`
	TotalSaidas   number `json:"total_saidas"`
	Balance       number `json:"balance"`
	EntradasCount int    `json:"entradas_count"`
	SaidasCount   int    `json:"saidas_count"`
	AverageTicket number `json:"average_ticket"`
}

type completeAnalysisResponse struct {
	Period          periodResponse          `json:"period"`
	Summary         completeSummaryResponse `json:"summary"`
	AllTransactions []transactionResponse   `json:"all_transactions"`
}

func newCompleteAnalysis(a services.CompleteAnalysis) completeAnalysisResponse {
	s := a.Summary
	return completeAnalysisResponse{
		Period: newPeriod(a.Period),
		Summary: completeSummaryResponse{
			TotalEntradas: reais(s.TotalIncome),
			TotalSaidas:   reais(s.TotalExpense),
			Balance:       reais(s.Balance),
			EntradasCount: s.IncomeCount,
			SaidasCount:   s.ExpenseCount,
			AverageTicket: num(s.AverageTicket.Round(2)),
		},
		AllTransactions: newTransactions(a.Transactions),
	}
}

type categoryShareResponse struct {
	Category   string `json:"category"`
	Amount     number `json:"amount"`
	Percentage number `json:"percentage"`
}

func newShares(shares []analytics.CategoryShare) []categoryShareResponse {
	out := make([]categoryShareResponse, 0, len(shares))
	for _, s := range shares {
		out = append(out, categoryShareResponse{Category: s.Category, Amount: reais(s.Amount), Percentage: num(s.Percentage)})
	}
	return out
}

type categoriesResponse struct {
	Period         periodResponse          `json:"period"`
	Income         []categoryShareResponse `json:"income"`
	Expense        []categoryShareResponse `json:"expense"`
	PaymentMethods []categoryShareResponse `json:"payment_methods"`
}

func newCategories(r services.CategoryReport) categoriesResponse {
	return categoriesResponse{
		Period:         newPeriod(r.Period),
		Income:         newShares(r.Income),
		Expense:        newShares(r.Expense),
		PaymentMethods: newShares(r.PaymentMethods),
	}
}

type sellerRankResponse struct {
	Position         int    `json:"position"`
	Seller           string `json:"seller"`
	TotalSales       number `json:"total_sales"`
	TotalCommissions number `json:"total_commissions"`
	SalesCount       int    `json:"sales_count"`
	AverageSale      number `json:"average_sale"`
	Podium           bool   `json:"podium"`
}

type rankingResponse struct {
	Period  periodResponse       `json:"period"`
	Ranking []sellerRankResponse `json:"ranking"`
}

func newRanking(p services.Period, ranks []analytics.SellerRank) rankingResponse {
	out := rankingResponse{Period: newPeriod(p), Ranking: make([]sellerRankResponse, 0, len(ranks))}
	for _, r := range ranks {
		out.Ranking = append(out.Ranking, sellerRankResponse{
			Position:         r.Position,
			Seller:           r.Seller,
			TotalSales:       reais(r.TotalSales),
			TotalCommissions: reais(r.TotalCommissions),
			SalesCount:       r.SalesCount,
			AverageSale:      num(r.AverageSale.Round(2)),
			Podium:           r.OnPodium(),
		})
	}
	return out
}

type suggestionResponse struct {
	Current   string `json:"current_type"`
	Suggested string `json:"suggested_type"`
	Reason    string `json:"reason"`
	Keyword   string `json:"keyword,omitempty"`
	Field     string `json:"field,omitempty"`
	Changes   bool   `json:"changes"`
}

func newSuggestion(s classify.Suggestion) suggestionResponse {
	return suggestionResponse{
		Current:   s.Current.String(),
		Suggested: s.Suggested.String(),
		Reason:    s.Reason,
		Keyword:   s.Keyword,
		Field:     s.Field,
		Changes:   s.Changes(),
	}
}

type candidateResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Suggestion  suggestionResponse  `json:"suggestion"`
}

func newCandidates(cs []migration.Candidate) []candidateResponse {
	out := make([]candidateResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, candidateResponse{Transaction: newTransaction(c.Transaction), Suggestion: newSuggestion(c.Suggestion)})
	}
	return out
}

type migrationResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Changed     bool                `json:"changed"`
	Suggestion  suggestionResponse  `json:"suggestion"`
}

func newMigration(r migration.Result) migrationResponse {
	return migrationResponse{
		Transaction: newTransaction(r.Transaction),
		Changed:     r.Changed,
		Suggestion:  newSuggestion(r.Suggestion),
	}
}
