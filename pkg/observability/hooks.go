package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/coherence/internal/logging"
	"github.com/aretw0/coherence/pkg/domain"
)

// Chain merges several hook sets; each callback runs in order.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnTransition = chain(out.OnTransition, h.OnTransition)
		out.OnMessageSent = chain(out.OnMessageSent, h.OnMessageSent)
		out.OnMessageReceived = chain(out.OnMessageReceived, h.OnMessageReceived)
		out.OnFault = chain(out.OnFault, h.OnFault)
		out.OnHandlerError = chain(out.OnHandlerError, h.OnHandlerError)
	}
	return out
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}

// LogHooks returns hooks that trace every event at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition", logging.Addr(e.Addr), "from", e.From, "to", e.To, "cause", e.Cause)
		},
		OnMessageSent: func(ctx context.Context, e *domain.MessageEvent) {
			logger.DebugContext(ctx, "message_sent", "kind", e.Kind, "id", e.ID, logging.Addr(e.Addr), "err", e.Err)
		},
		OnMessageReceived: func(ctx context.Context, e *domain.MessageEvent) {
			logger.DebugContext(ctx, "message_received", "kind", e.Kind, "id", e.ID, logging.Addr(e.Addr))
		},
		OnFault: func(ctx context.Context, e *domain.FaultEvent) {
			logger.DebugContext(ctx, "fault", logging.Addr(e.Addr), "access", e.Kind, "duration", e.Duration, "no_data", e.NoData, "err", e.Err)
		},
	}
}
