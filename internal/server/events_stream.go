package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/qubitlab/subisom/internal/events"
)

// streamBufferSize bounds the per-subscriber event queue. A slow
// consumer loses events rather than backpressuring the search loop.
const streamBufferSize = 64

// EventsStreamHandler streams search lifecycle events over a
// websocket connection.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates the stream handler.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP upgrades the connection and forwards bus events until the
// client disconnects.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := r.Context()
	eventCh := make(chan events.EventWithData, streamBufferSize)

	unsubscribe := h.bus.Subscribe(func(e events.EventWithData) {
		select {
		case eventCh <- e:
		default:
			// Queue full, drop. The client still gets terminal events
			// for later rounds.
		}
	})
	defer unsubscribe()

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("Stream subscriber connected")

	// Read loop for close detection only; inbound payloads are ignored.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-readDone:
			h.log.Debug().Str("remote", r.RemoteAddr).Msg("Stream subscriber disconnected")
			return
		case event := <-eventCh:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, &event)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Stream write failed")
				return
			}
		}
	}
}
