package adapter

import "context"

// AlertNotifier delivers operator-facing alerts (job failures, publishes
// stuck waiting for manual action). Implementations must be best-effort;
// a notification failure never affects the job.
type AlertNotifier interface {
	Alert(ctx context.Context, message string) error
}
