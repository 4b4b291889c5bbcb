// Package web exposes a read-only status endpoint for debugging and
// verification. It is not part of the time-sync core; disabling it changes
// nothing else.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"gpstimed/internal/pps"
	"gpstimed/internal/timesync"
)

type statusPayload struct {
	timesync.Snapshot
	UptimeSec int64    `json:"uptime_sec"`
	PPSAgeSec *float64 `json:"pps_age_sec,omitempty"`
}

// Handler serves GET /api/status. snapshot must be safe to call from any
// goroutine; ppsMon may be nil when PPS monitoring is disabled.
func Handler(start time.Time, snapshot func() timesync.Snapshot, ppsMon *pps.Monitor) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		now := time.Now()
		payload := statusPayload{
			Snapshot:  snapshot(),
			UptimeSec: int64(now.Sub(start).Seconds()),
		}
		if ppsMon != nil {
			if last, ok := ppsMon.LastPulse(); ok {
				age := now.Sub(last).Seconds()
				payload.PPSAgeSec = &age
			}
		}

		b, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	return mux
}

// Serve runs an http.Server for the handler until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
