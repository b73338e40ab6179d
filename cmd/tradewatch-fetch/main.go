// Command tradewatch-fetch runs one pass of the acquisition pipeline and
// prints what came back. It is a diagnostic tool, not a stable interface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/bobmcallan/tradewatch/internal/app"
	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/models"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv("TRADEWATCH_CONFIG"), "path to config file")
	sources := flag.String("sources", "", "comma-separated source order override (html,api)")
	sample := flag.Int("n", 5, "number of sample rows to print")
	asJSON := flag.Bool("json", false, "print the full record set as JSON")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()

	if *sources != "" {
		os.Setenv("TRADEWATCH_SOURCES", *sources)
	}

	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return 1
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "tradewatch-fetch %s\n", common.GetFullVersion())
	fmt.Fprintf(os.Stderr, "Sources: %s\n\n", strings.Join(a.Coordinator.Sources(), " > "))

	for _, src := range a.Sources {
		fmt.Fprintf(os.Stderr, "  %-40s available=%t\n", src.Name(), src.IsAvailable(ctx))
	}
	fmt.Fprintln(os.Stderr)

	data, label := a.Records.GetRecords(ctx, true)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode records: %v\n", err)
			return 1
		}
	} else {
		printSummary(os.Stdout, data, label, *sample)
	}

	printStatus(os.Stderr, a.Records.CacheStatus())

	if data.IsEmpty() {
		return 2
	}
	return 0
}

func printSummary(w io.Writer, data models.RecordSet, label string, sample int) {
	fmt.Fprintf(w, "Source:  %s\n", label)
	fmt.Fprintf(w, "Records: %d\n", data.Len())

	synthesized := len(data.Filter(func(r models.TradeRecord) bool {
		return r.Provenance == models.ProvenanceSynthesized
	}).Records)
	if synthesized > 0 {
		fmt.Fprintf(w, "Note:    %d of %d records are synthesized from page patterns, not parsed\n", synthesized, data.Len())
	}
	fmt.Fprintln(w)

	if data.IsEmpty() || sample <= 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POLITICIAN\tTICKER\tCOMPANY\tTYPE\tTRADE\tDISCLOSED\tDELAY\tSIZE\tPRICE")
	for _, r := range data.Records[:min(sample, data.Len())] {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.PoliticianName, r.Ticker, r.Company, r.TransactionType,
			dateOrDash(r.TradeDate), dateOrDash(r.DisclosureDate),
			r.ReportingDelay, r.TradeSize, r.Price)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printStatus(w io.Writer, status models.CacheStatus) {
	fmt.Fprintf(w, "Cache: has_data=%t valid=%t age=%dm remaining=%dm total=%d\n",
		status.HasData, status.CacheValid, status.CacheAgeMinutes, status.CacheRemainingMinutes, status.TotalRecords)
}

func dateOrDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(models.DateLayout)
}
