package notify

import (
	"context"

	"github.com/peoplehub/dispatch/pkg/realtime"
)

// RealtimeChannel pushes notifications to the recipient's live sessions. A
// recipient without a connected session simply does not receive the push;
// the persisted notification row is the durable fallback they catch up from.
type RealtimeChannel struct {
	hub *realtime.Hub[Notification]
}

// NewRealtimeChannel creates a realtime channel over the given hub.
func NewRealtimeChannel(hub *realtime.Hub[Notification]) *RealtimeChannel {
	return &RealtimeChannel{hub: hub}
}

func (c *RealtimeChannel) Send(ctx context.Context, n Notification) error {
	return c.hub.Publish(ctx, n.RecipientID, n)
}

var _ ChannelSender = (*RealtimeChannel)(nil)
