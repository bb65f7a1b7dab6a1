// Package noop drops notification events when publishing is disabled.
package noop

import (
	"context"

	"github.com/openrec/reggie/internal/reggie"
)

// Publisher discards every event.
type Publisher struct{}

// New returns the no-op publisher.
func New() *Publisher { return &Publisher{} }

// Publish reports success without sending anything.
func (Publisher) Publish(context.Context, string, any) (string, error) {
	return "", nil
}

var _ reggie.Publisher = (*Publisher)(nil)
