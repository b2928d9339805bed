// Package notify implements persisted user notifications with
// preference-gated multi-channel delivery.
//
// A Notification row records that something happened; delivery over the
// realtime and email channels is a separate, best-effort concern. The
// Orchestrator always persists first, then resolves the recipient's
// per-type Preference and fans out: in_app routes to the realtime hub,
// email renders an HTML message through the mailer, both hits both. An
// absent or disabled preference suppresses delivery while the stored row
// still shows up in listings and unread counts.
//
// Preference rows are seeded per user by InitializeUserPreferences with the
// default of both channels enabled. The seeding is idempotent and never
// overwrites rows the user has customized.
//
// Stores come in two flavors: in-memory for tests and local development,
// and Postgres via pgx for production.
package notify
