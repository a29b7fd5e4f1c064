// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessage(t *testing.T) {
	cases := []struct {
		desc   string
		prefix string
		seq    int
		size   int
		want   string
	}{
		{desc: "plain", prefix: "Test Message", seq: 1, want: "Test Message 1"},
		{desc: "size below text", prefix: "Test Message", seq: 42, size: 4, want: "Test Message 42"},
		{desc: "size one above text", prefix: "m", seq: 7, size: 4, want: "m 7"},
		{desc: "padded", prefix: "m", seq: 7, size: 8, want: "m 7|efgh"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got := FormatMessage(tc.prefix, tc.seq, tc.size)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, FormatMessage(tc.prefix, tc.seq, 0), MessageText(got))
		})
	}
}
