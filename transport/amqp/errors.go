// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp

import "errors"

// Adapter errors.
var (
	ErrNoAddress        = errors.New("no broker address configured")
	ErrInvalidQueueName = errors.New("queue name cannot be empty")
	ErrNilHandler       = errors.New("handler cannot be nil")
	ErrPublisherConfirm = errors.New("publisher confirm not acknowledged")
	ErrClosed           = errors.New("amqp transport closed")
)
