package remotecommand

import (
	"github.com/shortontech/attributionrc/internal/payload"
)

// Response is the host runtime's handle on one invocation: the request
// document and the acknowledgement sent once every token has run.
type Response interface {
	Payload() payload.Object
	Send(results []Result) error
}

// Status is the outcome of one command token.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped" // nothing actionable in the payload
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

// Result records what happened to one token.
type Result struct {
	Command string
	Status  Status
	Err     error
}

// Reason is the error text, or empty.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type funcResponse struct {
	p    payload.Object
	send func([]Result) error
}

// NewResponse adapts a decoded document and an acknowledgement callback.
// send may be nil.
func NewResponse(p payload.Object, send func([]Result) error) Response {
	if p == nil {
		p = payload.Object{}
	}
	return &funcResponse{p: p, send: send}
}

func (r *funcResponse) Payload() payload.Object { return r.p }

func (r *funcResponse) Send(results []Result) error {
	if r.send == nil {
		return nil
	}
	return r.send(results)
}
