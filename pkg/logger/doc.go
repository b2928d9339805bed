// Package logger provides a small factory around log/slog plus typed
// attribute helpers shared by the queue and notification components.
//
// The factory keeps configuration concerns (level, format, static service
// attributes) out of business code:
//
//	log := logger.New(
//	    logger.WithService("dispatch"),
//	    logger.WithLevel(slog.LevelDebug),
//	    logger.WithFormat(logger.FormatText),
//	)
//	logger.SetAsDefault(log)
//
// Attribute helpers keep log keys consistent across packages:
//
//	log.Error("job failed", logger.Queue(job.Queue), logger.JobID(job.ID), logger.Error(err))
package logger
