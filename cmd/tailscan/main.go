package main

import (
	"os"

	"github.com/ss3211545/stock-web-app/cmd/tailscan/commands"
)

// main is the entry point for the tailscan CLI
// ⭐ 统一 CLI 入口: go run ./cmd/tailscan [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
