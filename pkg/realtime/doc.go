// Package realtime implements the in-process push hub behind the in-app
// notification channel. Messages are fanned out per user to whatever live
// sessions are subscribed at publish time. Disconnected users receive
// nothing; the persisted notification record is the durable fallback for
// later retrieval.
package realtime
