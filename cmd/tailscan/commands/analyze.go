package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// analyzeCmd explains one stock against every gate.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <code>",
	Short: "单只个股过关诊断",
	Long: `对一只个股跑完整的八道关卡, 逐关给出通过/淘汰与原因.

Example:
  go run ./cmd/tailscan analyze 600519
  go run ./cmd/tailscan analyze 300750 --market SZ`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	market, err := resolveMarket(s.Cfg)
	if err != nil {
		return err
	}

	analysis, err := s.Runner.Analyze(context.Background(), args[0], market)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}

	c := analysis.Candidate
	fmt.Printf("%s %s (%s)\n", c.Code, c.Name, c.Market)
	fmt.Printf("  价格 %s  涨幅 %s%%  量比 %s  换手 %s%%  市值 %s\n\n",
		fmtField(c.Price), fmtField(c.ChangePct), fmtField(c.VolumeRatio),
		fmtField(c.TurnoverRate), fmtField(c.MarketCap))

	for _, g := range analysis.Gates {
		mark := "✅"
		if !g.Pass {
			mark = "❌"
		}
		if g.Reason != "" {
			fmt.Printf("  %s [%d] %-18s %s\n", mark, g.Index, g.Name, g.Reason)
		} else {
			fmt.Printf("  %s [%d] %s\n", mark, g.Index, g.Name)
		}
	}

	if analysis.WouldPass {
		fmt.Println("\n结论: 全部通过, 会进入今日候选.")
	} else {
		fmt.Println("\n结论: 未能全部通过.")
	}
	return nil
}
