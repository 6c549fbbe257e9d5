// Package enrich drains the durable enrichment queue: claimed jobs call the
// external route provider and write coordinates or polylines back onto their
// owning entities, with exponential backoff and dead-lettering on repeated
// failure.
package enrich

import (
	"strings"
	"time"
)

// maxBackoff caps the retry schedule.
const maxBackoff = 48 * time.Hour

// Backoff returns how long to wait before the next attempt. The schedule
// doubles from 2 hours and saturates at 48: attempts 1..6 yield
// 2, 4, 8, 16, 32, 48 hours.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 6 {
		attempts = 6
	}
	d := time.Duration(1<<attempts) * time.Hour
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// RouteQuery packs an origin/destination pair into a polyline job's query
// payload. SplitRouteQuery is its inverse.
func RouteQuery(origin, destination string) string {
	return origin + "|" + destination
}

func SplitRouteQuery(query string) (origin, destination string, ok bool) {
	origin, destination, ok = strings.Cut(query, "|")
	return origin, destination, ok && origin != "" && destination != ""
}
