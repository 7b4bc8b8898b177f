package notifier

import (
	"context"
	"log"
)

// LogTransport writes every message to the process log and reports it
// delivered. Used in dev and as the default when no real provider is wired.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, ch Channel, recipient, subject, _ string) bool {
	log.Printf("[notify] %s -> %s: %s", ch, recipient, subject)
	return true
}
