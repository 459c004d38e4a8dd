// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Command signalctl drives a Signalcart server over its HTTP API.
//
//	signalctl record --user 7 --product 42 --type PURCHASE
//	signalctl export --cursor 0 --ndjson > interactions.ndjson
//	signalctl train --force --tag v2
//	signalctl models activate v1 --role admin
//	signalctl recommend similar 42 --count 5
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
