package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Maizu/RLAccountMigrator/app/cmd"
)

func main() {
	// a cancelled operation still closes the game before returning
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cmd.Execute(ctx, os.Args[1:])

	cancel()
	os.Exit(code)
}
