package notifier

import "context"

type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// Transport is the outbound delivery capability. Implementations report
// delivery as a boolean; they never surface transport failure as an error.
// The dispatcher records the outcome and moves on, with at most one attempt
// per idempotency key.
type Transport interface {
	Send(ctx context.Context, ch Channel, recipient, subject, body string) bool
}
