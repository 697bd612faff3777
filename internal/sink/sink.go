// Package sink delivers activity envelopes produced by the SDK client to
// log files, Kafka, Postgres and AMQP.
package sink

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/shortontech/attributionrc/internal/activity"
)

type Sink interface {
	Start(ctx context.Context) error
	Enqueue(a activity.Activity) error
	Close() error
	Name() string // Returns the sink name for metrics and logging
}

// Helper functions
func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}
