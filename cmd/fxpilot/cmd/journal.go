package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxpilot/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite journal",
	Long: `Query and display journal records from the SQLite database.

Subcommands:
  close   - Get details of a specific close by ID
  closes  - List closes for a day (default today) with a summary
  orders  - List the most recent order attempts

Examples:
  fxpilot journal close <close-id>
  fxpilot journal closes
  fxpilot journal closes --day 2024-01-15
  fxpilot journal orders --limit 20`,
}

var journalCloseCmd = &cobra.Command{
	Use:   "close <close-id>",
	Short: "Get details of a specific close",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalClose,
}

var journalClosesCmd = &cobra.Command{
	Use:   "closes",
	Short: "List closes for a day",
	Args:  cobra.NoArgs,
	RunE:  runJournalCloses,
}

var journalOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List recent order attempts",
	Args:  cobra.NoArgs,
	RunE:  runJournalOrders,
}

var (
	journalDBPath string
	journalDay    string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalCloseCmd)
	journalCmd.AddCommand(journalClosesCmd)
	journalCmd.AddCommand(journalOrdersCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./fxpilot.db", "path to SQLite journal DB")
	journalClosesCmd.Flags().StringVar(&journalDay, "day", "", "day as YYYY-MM-DD (default today)")
	journalOrdersCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "number of orders")
}

func runJournalClose(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetClose(args[0])
	if err != nil {
		return fmt.Errorf("get close: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatCloseOrg(rec))
	return nil
}

func runJournalCloses(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	loc := time.Local
	day := journalDay
	if day == "" {
		day = time.Now().In(loc).Format("2006-01-02")
	}
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListClosesBetween(start, end)
	if err != nil {
		return fmt.Errorf("query closes: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, journal.FormatClosesOrg(recs))
	printSummary(out, journal.Summarize(recs))
	return nil
}

func runJournalOrders(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListOrders(journalLimit)
	if err != nil {
		return fmt.Errorf("query orders: %w", err)
	}
	return printOrders(cmd.OutOrStdout(), recs)
}

func printOrders(w io.Writer, recs []journal.OrderRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tINSTRUMENT\tDIR\tUNITS\tFILL\tRESULT")
	for _, o := range recs {
		result := "accepted"
		if !o.Accepted {
			result = "rejected: " + o.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%.5f\t%s\n",
			o.Time.Local().Format("2006-01-02 15:04:05"), o.Instrument, o.Direction, o.Units, o.FillPrice, result)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s journal.Summary) {
	fmt.Fprintf(w, "Closes: %d  Wins: %d  Losses: %d  Net PL: %.2f  Profit factor: %.2f\n",
		s.Closes, s.Wins, s.Losses, s.NetPL, s.ProfitFactor)
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
