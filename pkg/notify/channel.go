package notify

import "context"

// ChannelSender delivers one notification over one transport. Expected
// no-op cases, such as a recipient with no email on file or no live realtime
// session, return nil. Transport failures return an error which the
// orchestrator logs without letting it affect persistence or the other
// channel.
type ChannelSender interface {
	Send(ctx context.Context, n Notification) error
}
