// Package notify delivers price-drop alerts. Delivery is best-effort:
// the engine assembles subject and body, implementations only carry
// them somewhere.
package notify

import (
	"context"

	"go.uber.org/multierr"
)

type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// Multi fans a notification out to every configured channel and
// reports all failures together.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, subject, body string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, subject, body))
	}
	return errs
}
