// Command cashflow-cli runs maintenance tasks against the configured store:
// listing legacy records awaiting migration, migrating one, and printing a
// period summary.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"cashflow/internal/backend"
	"cashflow/internal/cli"
	"cashflow/internal/core"
	"cashflow/internal/services"
	"cashflow/internal/store"
)

const usage = `usage:
  cashflow-cli candidates
  cashflow-cli migrate <id> [type]
  cashflow-cli summary <start YYYY-MM-DD> <end YYYY-MM-DD>`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, logger := cli.Bootstrap("cli")
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		log.Fatalf("backend config: %v", err)
	}
	// Reads must see every write, so skip the shared report cache.
	backendCfg.ReportCache = backend.NoCache
	backendCfg.AMQPURL = ""

	ctx := context.Background()
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		log.Fatalf("backend: %v", err)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	args := os.Args[2:]
	switch os.Args[1] {
	case "candidates":
		err = candidates(ctx, result.Transactions)
	case "migrate":
		err = migrate(ctx, result.Transactions, args)
	case "summary":
		err = summary(ctx, result.ReportQuery, args)
	default:
		err = fmt.Errorf("unknown command %q\n%s", os.Args[1], usage)
	}
	if err != nil {
		logger.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func candidates(ctx context.Context, txs *services.TransactionService) error {
	list, err := txs.Candidates(ctx, store.Filter{})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tSUGGESTED\tREASON\tDESCRIPTION")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Transaction.ID,
			c.Transaction.Date,
			c.Suggestion.Current,
			c.Suggestion.Suggested,
			c.Suggestion.Reason,
			c.Transaction.Description)
	}
	return tw.Flush()
}

func migrate(ctx context.Context, txs *services.TransactionService, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("migrate takes <id> [type]\n%s", usage)
	}
	var target core.Type
	if len(args) == 2 {
		t, err := core.ParseType(args[1])
		if err != nil {
			return err
		}
		target = t
	}
	res, err := txs.Migrate(ctx, args[0], target)
	if err != nil {
		return err
	}
	if !res.Changed {
		fmt.Printf("%s already migrated as %s\n", res.Transaction.ID, res.Transaction.Type)
		return nil
	}
	fmt.Printf("%s migrated %s -> %s (%s)\n",
		res.Transaction.ID, res.Suggestion.Current, res.Transaction.Type, res.Suggestion.Reason)
	return nil
}

func summary(ctx context.Context, reports *services.ReportService, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("summary takes <start> <end>\n%s", usage)
	}
	start, err := core.ParseDate(args[0])
	if err != nil {
		return err
	}
	end, err := core.ParseDate(args[1])
	if err != nil {
		return err
	}
	p := services.Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return err
	}
	d, err := reports.Summary(ctx, p)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "period\t%s\n", p)
	fmt.Fprintf(tw, "income\t%s\t(%d)\n", d.TotalIncome, d.IncomeCount)
	fmt.Fprintf(tw, "expense\t%s\t(%d)\n", d.TotalExpense, d.ExpenseCount)
	fmt.Fprintf(tw, "balance\t%s\n", d.Balance)
	fmt.Fprintf(tw, "average ticket\t%s\n", d.AverageTicket.StringFixed(2))
	fmt.Fprintf(tw, "clients served\t%d\n", d.ClientsServed)
	return tw.Flush()
}
