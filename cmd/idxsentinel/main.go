package main

import (
	"os"

	"github.com/kurokishi/stock-analysis-id/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
