package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	marketFlag string
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tailscan",
	Short: "尾盘选股 - 八关筛选器",
	Long: `Tailscan - 尾盘八关选股

在收盘前的尾盘时段 (14:30-15:00) 跑八道关卡,
从全市场行情里筛出温和放量、均线多头、守住高点的候选.

Usage:
  go run ./cmd/tailscan [command]

Examples:
  go run ./cmd/tailscan screen
  go run ./cmd/tailscan screen --market SZ --json
  go run ./cmd/tailscan analyze 600519
  go run ./cmd/tailscan api
  go run ./cmd/tailscan scheduler`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&marketFlag, "market", "", "market (SH|SZ|BJ|HK|US), default from env")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of tables")
}
