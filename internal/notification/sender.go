// Package notification delivers email to users. Delivery is advisory: a
// failed send never rolls back the operation that triggered it.
package notification

import "context"

// Sender delivers one message to one recipient.
type Sender interface {
	Deliver(ctx context.Context, recipient, subject, body string) error
}
