// Package logger provides structured, leveled logging built on Uber's Zap.
//
// Every log method takes the message, an optional error, and optional
// maps of structured fields:
//
//	log := logger.NewLoggerClient(logger.Config{
//	    Level:       logger.Info,
//	    ServiceName: "eventflow-producer",
//	})
//	log.Info("event published", nil, map[string]interface{}{
//	    "topic":     "user_events",
//	    "schema_id": 7,
//	})
//
// The package ships an fx module that provides the logger and flushes
// it on shutdown.
package logger
