// Package main - fishbowl CLI
//
// Usage:
//
//	go run ./cmd/fishbowl etl
//	go run ./cmd/fishbowl recalc [symbol...]
//	go run ./cmd/fishbowl rank
//	go run ./cmd/fishbowl api
package main

import (
	"os"

	"github.com/wuwenjia6498/fishbowl-monitor/cmd/fishbowl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
