package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

var (
	klineGranularity string
	klineCount       int
)

// klineCmd fetches and prints an OHLCV series.
var klineCmd = &cobra.Command{
	Use:   "kline <code>",
	Short: "拉取 K 线",
	Long: `拉取一只个股的 K 线并打印.

Example:
  go run ./cmd/tailscan kline 600519
  go run ./cmd/tailscan kline 600519 --granularity week --count 30`,
	Args: cobra.ExactArgs(1),
	RunE: runKline,
}

func init() {
	rootCmd.AddCommand(klineCmd)
	klineCmd.Flags().StringVar(&klineGranularity, "granularity", "day", "bar size (day|week|month)")
	klineCmd.Flags().IntVar(&klineCount, "count", 60, "number of bars")
}

func runKline(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	market, err := resolveMarket(s.Cfg)
	if err != nil {
		return err
	}

	granularity := contracts.KlineGranularity(klineGranularity)
	if !granularity.Valid() {
		return fmt.Errorf("granularity must be day, week or month")
	}

	series, err := s.Gateway.Kline(context.Background(), args[0], market, granularity, klineCount)
	if err != nil {
		return fmt.Errorf("kline: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(series)
	}

	fmt.Printf("%s %s (%d bars, source %s)\n", series.Code, series.Granularity, len(series.Bars), series.Provenance.Source)
	fmt.Println("DATE        OPEN     HIGH     LOW      CLOSE    VOLUME")
	for _, b := range series.Bars {
		fmt.Printf("%s  %-8.2f %-8.2f %-8.2f %-8.2f %.0f\n",
			b.Date.Format("2006-01-02"), b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	return nil
}
