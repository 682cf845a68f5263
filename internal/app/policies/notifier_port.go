package policies

import "context"

// Notifier delivers a renter-facing message. to is the renter contact
// number and template names the message kind.
type Notifier interface {
	Send(ctx context.Context, to string, template string, data any) error
}
