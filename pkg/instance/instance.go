package instance

import "os"

// ID returns the worker instance identifier. It prefers the explicit
// SERATA_WORKER_ID, falls back to the pod hostname, and finally to a
// fixed default for local runs.
func ID() string {
	if id := os.Getenv("SERATA_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
