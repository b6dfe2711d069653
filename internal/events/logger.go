package events

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// slogAdapter lets watermill components log through the application's slog logger.
type slogAdapter struct {
	log *slog.Logger
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by log.
// Watermill's trace level is mapped to slog debug.
func NewLoggerAdapter(log *slog.Logger) watermill.LoggerAdapter {
	return &slogAdapter{log: log}
}

func (a *slogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(attrs(fields), "error", err)...)
}

func (a *slogAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, attrs(fields)...)
}

func (a *slogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, attrs(fields)...)
}

func (a *slogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, attrs(fields)...)
}

func (a *slogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &slogAdapter{log: a.log.With(attrs(fields)...)}
}

func attrs(fields watermill.LogFields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

// AuditLog returns a HandlerFunc that writes one structured log line per event.
func AuditLog(log *slog.Logger) HandlerFunc {
	return func(ctx context.Context, ev domain.TripEvent) error {
		args := []any{
			"kind", string(ev.Kind),
			"trip_id", ev.TripID.String(),
			"driver_id", ev.DriverID.String(),
			"available_seats", ev.AvailableSeats,
			"status", string(ev.Status),
		}
		if ev.PassengerID != nil {
			args = append(args, "passenger_id", ev.PassengerID.String())
		}
		log.InfoContext(ctx, "trip event", args...)
		return nil
	}
}
