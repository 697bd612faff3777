package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"github.com/shortontech/attributionrc/internal/metrics"
	"github.com/shortontech/attributionrc/internal/payload"
	"github.com/shortontech/attributionrc/internal/remotecommand"
	cfg "github.com/shortontech/attributionrc/pkg/config"
)

// Invoker runs one remote command document.
type Invoker interface {
	ID() string
	Invoke(ctx context.Context, resp remotecommand.Response) []remotecommand.Result
}

// Signals forwards host lifecycle transitions.
type Signals interface {
	Pause()
	Resume()
}

type Env struct {
	Cfg        cfg.Config
	Dispatcher Invoker
	Lifecycle  Signals
	Ready      func() bool // reports whether the SDK has been initialized
	HMACAuth   *HMACAuth
	Metrics    *metrics.Metrics
	Log        logrus.FieldLogger
}

func (e Env) logger() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

func (e Env) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz answers 200 once the SDK has been initialized and 503 before.
func (e Env) Readyz(w http.ResponseWriter, r *http.Request) {
	if e.Ready != nil && !e.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not initialized"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type commandOutcome struct {
	Command string `json:"command"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type commandReply struct {
	ID      string           `json:"id"`
	Results []commandOutcome `json:"results"`
	Failed  int              `json:"failed"`
}

// httpResponse acknowledges an invocation by writing the per-token outcomes.
type httpResponse struct {
	w    http.ResponseWriter
	id   string
	p    payload.Object
	sent bool
}

func (h *httpResponse) Payload() payload.Object { return h.p }

func (h *httpResponse) Send(results []remotecommand.Result) error {
	if h.sent {
		return errors.New("response already sent")
	}
	h.sent = true

	reply := commandReply{ID: h.id, Results: make([]commandOutcome, 0, len(results))}
	for _, r := range results {
		if r.Status == remotecommand.StatusFailed {
			reply.Failed++
		}
		reply.Results = append(reply.Results, commandOutcome{
			Command: r.Command,
			Status:  string(r.Status),
			Error:   r.Reason(),
		})
	}

	body, err := sonic.Marshal(reply)
	if err != nil {
		http.Error(h.w, "failed to encode response", http.StatusInternalServerError)
		return err
	}
	h.w.Header().Set("Content-Type", "application/json")
	h.w.WriteHeader(http.StatusOK)
	_, err = h.w.Write(body)
	return err
}

// Command handles POST /command: it runs the comma-separated command_name tokens of a JSON document.
func (e Env) Command(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return
	}
	if e.Dispatcher == nil {
		http.Error(w, "command dispatcher not configured", http.StatusServiceUnavailable)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.Cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if e.HMACAuth != nil && !e.HMACAuth.VerifyHMAC(r, body) {
		http.Error(w, "invalid or missing HMAC signature", http.StatusUnauthorized)
		return
	}

	p, err := payload.Decode(body)
	if err != nil {
		e.logger().WithError(err).Info("rejected command payload")
		http.Error(w, "invalid json object", http.StatusBadRequest)
		return
	}

	resp := &httpResponse{w: w, id: e.Dispatcher.ID(), p: p}
	results := e.Dispatcher.Invoke(r.Context(), resp)
	if !resp.sent {
		_ = resp.Send(results)
	}
}

func (e Env) Pause(w http.ResponseWriter, r *http.Request) {
	e.signal(w, r, "pause")
}

func (e Env) Resume(w http.ResponseWriter, r *http.Request) {
	e.signal(w, r, "resume")
}

func (e Env) signal(w http.ResponseWriter, r *http.Request, which string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if e.Lifecycle == nil {
		http.Error(w, "lifecycle not configured", http.StatusServiceUnavailable)
		return
	}
	if which == "pause" {
		e.Lifecycle.Pause()
	} else {
		e.Lifecycle.Resume()
	}
	w.WriteHeader(http.StatusNoContent)
}
