// Package redis provides the Redis client setup backing the durable job
// broker: retried connect from environment configuration and a health probe.
package redis
