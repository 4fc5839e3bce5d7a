// Command resourcemodel generates OpenAPI 3.0 documents from resource
// definitions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/morganstanley/resource-model/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
