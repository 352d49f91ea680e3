// Package notify tells the outside world about detected accidents.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Alert is what gets sent for one detected accident.
type Alert struct {
	Recipient  string    `json:"email"`
	Severity   string    `json:"severity"`
	Vehicles   int       `json:"vehicles"`
	Impact     int       `json:"impact"`
	ClipPath   string    `json:"clip"`
	DetectedAt time.Time `json:"detected_at"`
}

type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, alert Alert) error

func (f NotifierFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// Nop drops every alert.
type Nop struct{}

func (Nop) Notify(context.Context, Alert) error { return nil }

// Fanout delivers each alert to every notifier, even after one fails.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, alert Alert) error {
	var err error
	for i, n := range f {
		if nerr := n.Notify(ctx, alert); nerr != nil {
			err = multierr.Append(err, fmt.Errorf("notifier %d: %w", i, nerr))
		}
	}
	return err
}
