package queue

import "time"

// Config holds the environment-driven settings for the queue manager.
type Config struct {
	Prefix            string        `env:"QUEUE_PREFIX" envDefault:"dispatch"`
	PollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout       time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	MaxConcurrentJobs int           `env:"QUEUE_MAX_CONCURRENT_JOBS" envDefault:"10"`
}
