package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

// screenCmd runs one full tail-session screen and prints the outcome.
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "跑一次完整的八关选股",
	Long: `跑一次完整的尾盘八关选股并打印结果.

Example:
  go run ./cmd/tailscan screen
  go run ./cmd/tailscan screen --market SZ --json`,
	RunE: runScreen,
}

func init() {
	rootCmd.AddCommand(screenCmd)
}

func runScreen(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	market, err := resolveMarket(s.Cfg)
	if err != nil {
		return err
	}

	outcome, err := s.Runner.Screen(context.Background(), market)
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	printOutcome(outcome)
	return nil
}

func printOutcome(outcome *contracts.Outcome) {
	fmt.Printf("Run %s  market=%s  status=%s\n", outcome.RunID, outcome.Market, outcome.Status)
	if outcome.PartialMatch {
		fmt.Printf("⚠ 部分匹配: 只过到第 %d 关 (%s)\n", outcome.MaxStepReached, outcome.Message)
	}

	fmt.Println("\nStages:")
	for _, st := range outcome.Stages {
		fmt.Printf("  [%d] %-18s %4d -> %-4d (%s)\n",
			st.Index, st.Name, st.InputCount, len(st.Output), st.Duration)
	}

	if len(outcome.Results) == 0 {
		fmt.Println("\n没有候选.")
		return
	}

	fmt.Printf("\nResults (%d):\n", len(outcome.Results))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tPRICE\tCHG%\t量比\t换手%\t可靠性")
	for _, c := range outcome.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Code, c.Name,
			fmtField(c.Price), fmtField(c.ChangePct),
			fmtField(c.VolumeRatio), fmtField(c.TurnoverRate),
			outcome.Reliability[c.Code])
	}
	w.Flush()

	summary := outcome.ReliabilitySummary()
	fmt.Printf("\n可靠性: COMPLETE=%d PARTIAL=%d MISSING=%d\n",
		summary[contracts.ReliabilityComplete],
		summary[contracts.ReliabilityPartial],
		summary[contracts.ReliabilityMissing])
}

func fmtField(f contracts.Field) string {
	if !f.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f", f.Value)
}
