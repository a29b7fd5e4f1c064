// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/absmach/brokerperf/results"
)

func main() {
	input := flag.String("input", "", "Path to JSONL results file")
	badgerDir := flag.String("badger", "", "Path to BadgerDB results directory")
	limit := flag.Int("limit", 0, "Show only the most recent N runs (0 shows all)")
	flag.Parse()

	var store results.Store
	switch {
	case *input != "" && *badgerDir != "":
		exitErr(errors.New("use either -input or -badger, not both"))
	case *input != "":
		if _, err := os.Stat(*input); err != nil {
			exitErr(fmt.Errorf("failed to open %s: %w", *input, err))
		}
		store = results.NewFileStore(*input)
	case *badgerDir != "":
		s, err := results.NewBadgerStore(*badgerDir)
		if err != nil {
			exitErr(err)
		}
		store = s
	default:
		exitErr(errors.New("-input or -badger is required"))
	}
	defer store.Close()

	runs, err := store.List(*limit)
	if err != nil {
		store.Close()
		exitErr(err)
	}

	if err := results.Render(os.Stdout, runs); err != nil {
		store.Close()
		exitErr(err)
	}
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
