package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"muhabet/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		log.Printf("muhabet: %v", err)
		stop()
		os.Exit(1)
	}
}
