package rchttp

import (
	"errors"
	"net/http"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`

	// Kind is a stable machine-readable error class.
	Kind string `json:"kind"`

	Field string `json:"field,omitempty"`
}

// classify maps err to an HTTP status and response body.
func classify(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}

	var (
		pe *rcstate.ParamError
		ve *rcstate.ViolationError
		ce *rcchain.ChainError
		re *rcaccept.RejectionError
		de *rccodec.DecodeError
	)
	// Rejections wrap the engine or chain error that caused them,
	// so they are matched first.
	switch {
	case errors.As(err, &re):
		resp.Kind, resp.Field = "rejected", re.Rule
		return http.StatusForbidden, resp
	case errors.As(err, &pe):
		resp.Kind, resp.Field = "invalid_parameter", pe.Field
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &ve):
		resp.Kind, resp.Field = ve.Violation.String(), ve.Field
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &ce):
		resp.Kind, resp.Field = ce.Kind.String(), ce.Field
		if ce.Kind == rcchain.StaleReference {
			return http.StatusConflict, resp
		}
		return http.StatusInternalServerError, resp
	case errors.Is(err, rcledger.ErrNotFound):
		resp.Kind = "not_found"
		return http.StatusNotFound, resp
	case errors.As(err, &de):
		resp.Kind, resp.Field = "decode", de.Field
		return http.StatusInternalServerError, resp
	default:
		resp.Kind = "internal"
		return http.StatusInternalServerError, resp
	}
}

func (h *handler) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Warn(
			"Request failed",
			"request_id", w.Header().Get(RequestIDHeader), "path", req.URL.Path, "err", err,
		)
	}
	h.writeJSON(w, req, status, resp)
}
