// Package notify delivers alert messages to the messaging endpoint.
package notify

import "context"

// Sender is the outbound notification contract: one call per
// qualifying entity per cycle. Implementations must not panic across
// this boundary; delivery failure is an error the caller logs.
type Sender interface {
	Send(ctx context.Context, text string) error
}
