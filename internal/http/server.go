package httpx

import (
	"net/http"
)

// NewMux routes the command and lifecycle endpoints and wraps them with
// CORS, metrics and request logging.
func NewMux(e Env) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", e.Healthz)
	mux.HandleFunc("/readyz", e.Readyz)
	mux.HandleFunc("/command", e.Command)
	mux.HandleFunc("/lifecycle/pause", e.Pause)
	mux.HandleFunc("/lifecycle/resume", e.Resume)

	return RequestLogger(e.logger(), e.Cfg.TrustProxy)(MetricsMiddleware(e.Metrics)(cors(mux)))
}
