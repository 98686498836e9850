// Package mq defines how order change events leave the record store.
package mq

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// OrderPublisher receives every committed change.
type OrderPublisher interface {
	Publish(ctx context.Context, msg OrderMessage) error
}

// OrderMessageQueue is a publisher that in-process consumers can also read from.
type OrderMessageQueue interface {
	OrderPublisher
	Subscribe() (uuid.UUID, <-chan OrderMessage, error)
	DeSubscribe(id uuid.UUID) error
}

// Publishers fans one message out to several publishers and joins their errors.
type Publishers []OrderPublisher

func (ps Publishers) Publish(ctx context.Context, msg OrderMessage) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Publish(context.Context, OrderMessage) error { return nil }
