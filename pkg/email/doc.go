// Package email defines the outbound mail transport used by the email
// notification channel. Production sends go through Postmark; the dev
// sender writes emails to disk for local inspection.
package email
