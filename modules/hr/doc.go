// Package hr wires the generic queue and notification machinery to the HR
// portal domain: the fixed queue set, the job type catalog with its payload
// shapes, the template builders mapping domain events to notification
// payloads, the handlers consumed by the queue manager, and the HTTP
// management surface.
package hr
