package main

import (
	"context"
	"os"

	"github.com/xiaot623/gogo/assistant/internal/cli"
)

func main() {
	if err := cli.RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
