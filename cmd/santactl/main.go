// Command santactl is the Secret Santa admin tool.
//
//	santactl seed participants.yaml
//	santactl pairings generate
//	santactl reveal unlock
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sakif/secret-santa/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand(nil).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
