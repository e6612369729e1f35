package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const indexPage = `<html><head><title>querysvc metrics</title></head><body>
<h1>Advanced query service</h1>
<ul><li><a href="/metrics">/metrics</a></li>%s</ul>
</body></html>`

// StartServer serves /metrics on port in the background. When ready is
// non-nil it is also mounted at /health/ready so probes can use the
// metrics port. The returned func shuts the server down.
func StartServer(port int, ready http.HandlerFunc) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      newMux(ready),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}

func newMux(ready http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	links := ""
	if ready != nil {
		mux.HandleFunc("GET /health/ready", ready)
		links = `<li><a href="/health/ready">/health/ready</a></li>`
	}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, indexPage, links)
	})
	return mux
}
