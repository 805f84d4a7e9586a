package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inferloop/tabanon/internal/anonymizer"
	"github.com/inferloop/tabanon/internal/risk"
)

func printResult(out io.Writer, res *anonymizer.Result, path string) {
	fmt.Fprintf(out, " - Run: %s\n", res.RunID)
	fmt.Fprintf(out, " - Transformation: %s\n", res.Node)
	for _, attr := range res.Attributes {
		fmt.Fprintf(out, "   * %s: level %d\n", attr, res.Levels[attr])
	}
	fmt.Fprintf(out, " - Information loss (%s): %s\n", res.Metric, strconv.FormatFloat(res.Loss, 'f', -1, 64))
	fmt.Fprintf(out, " - Suppressed records: %d of %d (%s)\n",
		len(res.Suppressed), res.Records, percent(res.SuppressedFraction()))
	fmt.Fprintf(out, " - Nodes evaluated: %d, inferred: %d, pruned: %d\n",
		res.Stats.Evaluated, res.Stats.Inferred, res.Stats.Pruned)
	if path != "" {
		fmt.Fprintf(out, " - Released data: %s\n", path)
	}
}

func printRecords(out io.Writer, res *anonymizer.Result) {
	for _, rec := range res.Output.Records() {
		fmt.Fprintf(out, "   [%s]\n", strings.Join(rec.Values, ", "))
	}
}

func printRisk(out io.Writer, summary *risk.Summary) {
	fmt.Fprintf(out, " * Wildcard risk model (%s, threshold %s)\n", summary.Estimator, percent(summary.Threshold))
	fmt.Fprintf(out, "   - Records at risk: %s\n", percent(summary.RecordsAtRiskFraction))
	fmt.Fprintf(out, "   - Highest risk: %s\n", percent(summary.HighestRisk))
	fmt.Fprintf(out, "   - Average risk: %s\n", percent(summary.AverageRisk))
}

func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', -1, 64) + "%"
}
