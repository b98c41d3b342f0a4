package relay

import (
	"errors"
	"log/slog"
	"net"
	"time"
)

// cleanup tears the connection down. It runs once; later calls are no-ops.
//
// The registry release happens in one critical section and reports the partner
// only if the partner's entry still pointed back at us, so exactly one side of
// a pair sends the disconnect notice. The partner's socket is never closed
// here: its handler is signalled and closes it itself.
func (h *handler) cleanup() {
	h.cleanupOnce.Do(func() {
		h.state = StateTerminated

		partner, paired := h.srv.registry.Release(h.c.id)
		if paired {
			if pc := h.srv.lookup(partner); pc != nil {
				if err := pc.send(partnerDisconnected(h.identity())); err != nil {
					h.logger.Debug("partner notice failed", slog.String("error", err.Error()))
				}
				pc.signalPartnerLeft()
			}
		}

		close(h.done)
		if err := h.c.close(); err != nil && !errors.Is(err, net.ErrClosed) {
			h.logger.Debug("close failed", slog.String("error", err.Error()))
		}
		h.srv.untrack(h.c.id)

		h.logger.Info("connection closed",
			slog.String("user", h.identity()),
			slog.Bool("had_partner", paired),
			slog.Duration("connection_duration", time.Since(h.c.connectedAt)))
	})
}
