package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/bulkhead/internal/engine/batch"
)

// renderResult writes the batch result to w in the requested format.
func renderResult(w io.Writer, res *batch.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "table", "":
		return renderTable(w, res)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// renderTable writes a human-readable summary followed by the error list.
func renderTable(w io.Writer, res *batch.Result) error {
	pr := message.NewPrinter(language.English)

	if _, err := pr.Fprintf(w, "Run %s finished in %s\n",
		res.RunID, res.Duration.Round(time.Millisecond)); err != nil {
		return err
	}
	if _, err := pr.Fprintf(w, "  Items: %d  Completed: %d  Failed: %d  (%d%%)\n",
		res.Progress.Total, res.Progress.Completed, res.Progress.Failed,
		res.Progress.Percentage); err != nil {
		return err
	}
	if _, err := pr.Fprintf(w, "  Chunks: %d  Duplicates removed: %d  Cache hits: %d  Calls saved: %d\n",
		res.Progress.TotalChunks, res.Optimizations.DuplicatesRemoved,
		res.Optimizations.CacheHits, res.Optimizations.TotalSavings); err != nil {
		return err
	}

	if len(res.Errors) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tATTEMPTS\tERROR")
	for _, itemErr := range res.Errors {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", itemErr.ItemKey, itemErr.Attempts, itemErr.Message)
	}
	return tw.Flush()
}
