// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"strconv"
	"strings"
)

// FormatMessage builds the body of message seq. When size exceeds the text
// length the body is padded with a '|' separator and filler letters.
func FormatMessage(prefix string, seq, size int) string {
	text := prefix + " " + strconv.Itoa(seq)
	if size <= len(text)+1 {
		return text
	}

	var b strings.Builder
	b.Grow(size)
	b.WriteString(text)
	b.WriteByte('|')
	for i := b.Len(); i < size; i++ {
		b.WriteByte(byte('a' + (i % 26)))
	}
	return b.String()
}

// MessageText strips the padding added by FormatMessage.
func MessageText(body string) string {
	if idx := strings.IndexByte(body, '|'); idx > 0 {
		return body[:idx]
	}
	return body
}
