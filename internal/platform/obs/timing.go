// Package obs carries the request id across handler, planner and rerouting
// code and times the service's long operations.
package obs

import (
	"context"
	"log"
	"time"
)

type ctxKey string

// RequestIDKey holds the inbound request id in the context, set by the API
// middleware and read back when logging operation timings.
const RequestIDKey ctxKey = "req_id"

// Time logs how long a named operation took once the returned func runs.
// Callers pass the address of their named error so failed runs log with it:
//
//	defer obs.Time(ctx, "planner.PlanWeek")(&err)
func Time(ctx context.Context, op string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(RequestIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start).Milliseconds()

		if errp != nil && *errp != nil {
			log.Printf("req_id=%s op=%s dur=%dms err=%v", reqID, op, dur, *errp)
			return
		}
		log.Printf("req_id=%s op=%s dur=%dms", reqID, op, dur)
	}
}
