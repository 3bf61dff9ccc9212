// Command keyringdb queries, edits and serves an OpenPGP key ring database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/keyringdb/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
