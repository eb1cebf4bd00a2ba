package instance

import "os"

// GetID returns the process instance identifier from WORKER_ID, falling back
// to the Heroku dyno name and then to fallback.
func GetID(fallback string) string {
	for _, key := range []string{"WORKER_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return fallback
}
