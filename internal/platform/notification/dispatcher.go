package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// Dispatcher is the fire-and-forget surface services use to send template
// notifications. Delivery failures are logged, never propagated, so a failed
// reminder can not fail the business operation that triggered it.
type Dispatcher interface {
	Dispatch(ctx context.Context, templateID string, data map[string]string, recipient string)
}

type managerDispatcher struct {
	mgr    *NotificationManager
	logger zerolog.Logger
}

// NewDispatcher wraps a NotificationManager in the fire-and-forget Dispatcher.
func NewDispatcher(mgr *NotificationManager, logger zerolog.Logger) Dispatcher {
	return &managerDispatcher{mgr: mgr, logger: logger}
}

func (d *managerDispatcher) Dispatch(ctx context.Context, templateID string, data map[string]string, recipient string) {
	if recipient == "" {
		return
	}
	if _, err := d.mgr.SendFromTemplate(ctx, templateID, data, recipient); err != nil {
		d.logger.Error().Err(err).
			Str("template_id", templateID).
			Str("recipient", recipient).
			Msg("notification dispatch failed")
	}
}

// NopDispatcher discards all notifications. Useful in tests and for
// deployments without a configured delivery channel.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, string, map[string]string, string) {}
