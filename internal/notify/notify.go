// Package notify delivers change notifications for mutated addresses.
//
// Delivery is fire-and-forget: a Notifier never reports failure back to
// the mutation that triggered it, and nothing is queued or retried.
package notify

import "context"

// Notifier is told about addresses whose data changed. Notify is called
// after the change has committed and must not block for long.
type Notifier interface {
	Notify(ctx context.Context, addresses ...string)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, addresses ...string)

func (f Func) Notify(ctx context.Context, addresses ...string) {
	f(ctx, addresses...)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, ...string) {}

// Multi fans one notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, addresses ...string) {
	for _, n := range m {
		n.Notify(ctx, addresses...)
	}
}
