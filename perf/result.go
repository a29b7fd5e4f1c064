// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package perf

import "time"

// Mode identifies how a run generated its load.
type Mode string

// Run modes.
const (
	ModeSequential Mode = "sequential"
	ModeConcurrent Mode = "concurrent"
)

// RunResult describes one finished test run.
type RunResult struct {
	ID           string       `json:"id"`
	Mode         Mode         `json:"mode"`
	Transport    string       `json:"transport"`
	Users        int          `json:"users"`
	Target       int64        `json:"target"`
	Sent         int64        `json:"sent"`
	Received     int64        `json:"received"`
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
	DurationMS   int64        `json:"duration_ms"`
	SendRateMPS  float64      `json:"send_rate_mps"`
	AvgLatencyMS float64      `json:"avg_latency_ms"`
	Pass         bool         `json:"pass"`
	Error        string       `json:"error,omitempty"`
	UserResults  []UserResult `json:"user_results,omitempty"`
}

// Duration returns the wall-clock time between the first send and completion.
func (r RunResult) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// UserResult describes one simulated user of a concurrent run.
type UserResult struct {
	ID           int       `json:"id"`
	Messages     int       `json:"messages"`
	Sent         int       `json:"sent"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	AvgLatencyMS int64     `json:"avg_latency_ms"`
	Error        string    `json:"error,omitempty"`

	// Err is nil, a send failure, or wraps ErrCancelled.
	Err error `json:"-"`
}

// Elapsed returns the time the user spent in its message loop.
func (u UserResult) Elapsed() time.Duration {
	return u.End.Sub(u.Start)
}

// AvgLatency is the elapsed time divided by the planned message count.
func (u UserResult) AvgLatency() time.Duration {
	if u.Messages <= 0 {
		return 0
	}
	return u.Elapsed() / time.Duration(u.Messages)
}

func (r *RunResult) complete(err error) {
	d := r.Duration()
	r.DurationMS = d.Milliseconds()
	if d > 0 {
		r.SendRateMPS = float64(r.Sent) / d.Seconds()
	}

	switch {
	case len(r.UserResults) > 0:
		var total time.Duration
		for _, u := range r.UserResults {
			total += u.AvgLatency()
		}
		r.AvgLatencyMS = msFloat(total / time.Duration(len(r.UserResults)))
	case r.Sent > 0:
		r.AvgLatencyMS = msFloat(d / time.Duration(r.Sent))
	}

	r.Pass = err == nil
	if err != nil {
		r.Error = err.Error()
	}
}

func (u *UserResult) complete() {
	u.ElapsedMS = u.Elapsed().Milliseconds()
	u.AvgLatencyMS = u.AvgLatency().Milliseconds()
	if u.Err != nil {
		u.Error = u.Err.Error()
	}
}

func msFloat(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
