// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package results persists finished runs and renders them as a table.
package results

import (
	"errors"
	"fmt"

	"github.com/absmach/brokerperf/config"
	"github.com/absmach/brokerperf/perf"
)

// ErrClosed is returned when a closed store is used.
var ErrClosed = errors.New("results store closed")

// Store keeps finished runs.
type Store interface {
	// Append stores one run.
	Append(res perf.RunResult) error

	// List returns stored runs oldest first. A positive limit keeps only the
	// most recent limit runs.
	List(limit int) ([]perf.RunResult, error)

	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg config.ResultsConfig) (Store, error) {
	switch cfg.Type {
	case config.ResultsNone, "":
		return nopStore{}, nil
	case config.ResultsJSONL:
		return NewFileStore(cfg.Path), nil
	case config.ResultsBadger:
		return NewBadgerStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown results type %q", cfg.Type)
	}
}

type nopStore struct{}

func (nopStore) Append(perf.RunResult) error        { return nil }
func (nopStore) List(int) ([]perf.RunResult, error) { return nil, nil }
func (nopStore) Close() error                       { return nil }

func tail(runs []perf.RunResult, limit int) []perf.RunResult {
	if limit > 0 && len(runs) > limit {
		return runs[len(runs)-limit:]
	}
	return runs
}
