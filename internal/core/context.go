package core

import "context"

type contextKey string

const ctxKeyTrigger contextKey = "run_trigger"

// Run triggers recorded in history.
const (
	TriggerCLI      = "cli"
	TriggerHTTP     = "http"
	TriggerSchedule = "schedule"
)

// ContextWithTrigger records what started a run.
func ContextWithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, trigger)
}

// GetTriggerFromContext returns the run trigger, defaulting to TriggerCLI.
func GetTriggerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTrigger).(string); ok && v != "" {
		return v
	}
	return TriggerCLI
}
