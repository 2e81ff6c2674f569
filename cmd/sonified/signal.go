package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// notifyContext returns a context cancelled on the first interrupt; a
// second interrupt exits the process.
func notifyContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nCancelling...")
		cancel()
		<-sigChan
		os.Exit(1)
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
