// Command relay tails Kafka topics and sends messages to them.
//
// Configuration is read from the file given with --config and from
// RELAY_* environment variables, RELAY_BROKERS=k1:9092,k2:9092 for
// instance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand(newDriver).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}
