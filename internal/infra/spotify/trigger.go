package spotify

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/uniqueusername/listening-with/internal/app/coordinator"
)

// Trigger adapts the client's one-shot play call to the coordinator's
// trigger boundary.
type Trigger struct {
	client *Client
}

// NewTrigger creates a play trigger backed by the given client.
func NewTrigger(c *Client) *Trigger {
	return &Trigger{client: c}
}

// Play dispatches a play request for the given song.
func (t *Trigger) Play(ctx context.Context, songID string) coordinator.TriggerResult {
	err := t.client.PlayTrack(ctx, songID)
	switch {
	case err == nil:
		return coordinator.TriggerResult{Status: coordinator.TriggerDispatched}
	case errors.Is(err, ErrNoActiveDevice):
		return coordinator.TriggerResult{Status: coordinator.TriggerTargetMissing, Err: err}
	default:
		return coordinator.TriggerResult{Status: coordinator.TriggerFailed, Err: err}
	}
}
