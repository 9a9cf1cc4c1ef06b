package rchttp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rctransition"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestIDHeader carries the identifier assigned to each request.
const RequestIDHeader = "X-Request-Id"

type handler struct {
	log      *slog.Logger
	cfg      ServerConfig
	validate *validator.Validate
}

// NewHandler returns the router for cfg without starting a server.
func NewHandler(log *slog.Logger, cfg ServerConfig) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	h := &handler{log: log, cfg: cfg, validate: validator.New()}

	r := mux.NewRouter()
	r.Use(h.requestID)

	r.HandleFunc("/circles", h.createCircle).Methods("POST")
	r.HandleFunc("/circles/{id}", h.getCircle).Methods("GET")
	r.HandleFunc("/circles/{id}/state", h.getState).Methods("GET")
	r.HandleFunc("/circles/{id}/history", h.getHistory).Methods("GET")
	r.HandleFunc("/circles/{id}/members", h.addMember).Methods("POST")
	r.HandleFunc("/circles/{id}/contributions", h.contribute).Methods("POST")

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	return r
}

func (h *handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, req)
		h.log.Debug(
			"Handled request",
			"request_id", id, "method", req.Method, "path", req.URL.Path, "dur", time.Since(start),
		)
	})
}

type createRequest struct {
	CircleID             string `json:"circle_id" validate:"omitempty,hexadecimal,len=64"`
	ContributionPerRound uint64 `json:"contribution_per_round" validate:"required,gt=0"`
	RoundDuration        uint64 `json:"round_duration" validate:"required,gt=0"`
	MemberCapacity       uint32 `json:"member_capacity" validate:"required,gte=2"`
	Founder              string `json:"founder" validate:"required,hexadecimal,len=66"`
	CreatedAt            uint64 `json:"created_at"`
}

type addMemberRequest struct {
	PubKey      string  `json:"pubkey" validate:"required,hexadecimal,len=66"`
	PayoutRound *uint32 `json:"payout_round" validate:"required"`
	JoinedAt    uint64  `json:"joined_at"`
}

type contributeRequest struct {
	PubKey    string `json:"pubkey" validate:"required,hexadecimal,len=66"`
	Amount    uint64 `json:"amount" validate:"required,gt=0"`
	Timestamp uint64 `json:"timestamp"`
	TxRef     string `json:"tx_ref" validate:"required,hexadecimal,len=64"`
}

// commitResponse is returned by every mutating route.
type commitResponse struct {
	CircleID string  `json:"circle_id"`
	Ref      string  `json:"ref"`
	State    string  `json:"state"`
	Payout   *payout `json:"payout,omitempty"`
}

type payout struct {
	Round     uint32 `json:"round"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

func (h *handler) createCircle(w http.ResponseWriter, req *http.Request) {
	var body createRequest
	if !h.decode(w, req, &body) {
		return
	}

	founder, err := gcrypto.ParseSecp256k1PubKeyHex(body.Founder)
	if err != nil {
		h.writeError(w, req, &rcstate.ParamError{Field: "founder", Reason: err.Error()})
		return
	}

	p := rctransition.CreateParams{
		ContributionPerRound: body.ContributionPerRound,
		RoundDuration:        body.RoundDuration,
		CreatedAt:            body.CreatedAt,
		Founder:              founder,
		MemberCapacity:       body.MemberCapacity,
	}
	if body.CircleID != "" {
		id, err := parseHash(body.CircleID)
		if err != nil {
			h.writeError(w, req, &rcstate.ParamError{Field: "circle_id", Reason: err.Error()})
			return
		}
		p.CircleID = id
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = h.now()
	}

	commit, err := h.cfg.Client.Create(req.Context(), p, nil)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.writeJSON(w, req, http.StatusCreated, toCommitResponse(commit))
}

func (h *handler) addMember(w http.ResponseWriter, req *http.Request) {
	app, ok := h.app(w, req)
	if !ok {
		return
	}
	var body addMemberRequest
	if !h.decode(w, req, &body) {
		return
	}

	pub, err := gcrypto.ParseSecp256k1PubKeyHex(body.PubKey)
	if err != nil {
		h.writeError(w, req, &rcstate.ParamError{Field: "pubkey", Reason: err.Error()})
		return
	}
	op := rcstate.AddMember{PubKey: pub, PayoutRound: *body.PayoutRound, JoinedAt: body.JoinedAt}
	if op.JoinedAt == 0 {
		op.JoinedAt = h.now()
	}

	commit, err := h.cfg.Client.Advance(req.Context(), app, op, nil)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.writeJSON(w, req, http.StatusOK, toCommitResponse(commit))
}

func (h *handler) contribute(w http.ResponseWriter, req *http.Request) {
	app, ok := h.app(w, req)
	if !ok {
		return
	}
	var body contributeRequest
	if !h.decode(w, req, &body) {
		return
	}

	pub, err := gcrypto.ParseSecp256k1PubKeyHex(body.PubKey)
	if err != nil {
		h.writeError(w, req, &rcstate.ParamError{Field: "pubkey", Reason: err.Error()})
		return
	}
	txRef, err := parseHash(body.TxRef)
	if err != nil {
		h.writeError(w, req, &rcstate.ParamError{Field: "tx_ref", Reason: err.Error()})
		return
	}
	op := rcstate.Contribute{PubKey: pub, Amount: body.Amount, Timestamp: body.Timestamp, TxRef: txRef}
	if op.Timestamp == 0 {
		op.Timestamp = h.now()
	}

	commit, err := h.cfg.Client.Advance(req.Context(), app, op, nil)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.writeJSON(w, req, http.StatusOK, toCommitResponse(commit))
}

func (h *handler) getState(w http.ResponseWriter, req *http.Request) {
	app, ok := h.app(w, req)
	if !ok {
		return
	}
	s, ref, err := h.cfg.Client.State(req.Context(), app)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.writeJSON(w, req, http.StatusOK, commitResponse{
		CircleID: hex.EncodeToString(s.CircleID[:]),
		Ref:      ref.String(),
		State:    rccodec.EncodeHex(rccodec.MarshalState(s)),
	})
}

func (h *handler) getCircle(w http.ResponseWriter, req *http.Request) {
	app, ok := h.app(w, req)
	if !ok {
		return
	}
	s, ref, err := h.cfg.Client.State(req.Context(), app)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.writeJSON(w, req, http.StatusOK, NewCircleView(s, ref, h.now()))
}

func (h *handler) getHistory(w http.ResponseWriter, req *http.Request) {
	app, ok := h.app(w, req)
	if !ok {
		return
	}
	if h.cfg.Historian == nil {
		http.Error(w, "history not available", http.StatusNotImplemented)
		return
	}

	blobs, err := h.cfg.Historian.History(req.Context(), app)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	if _, err := rcchain.VerifyHistory(blobs); err != nil {
		h.writeError(w, req, fmt.Errorf("stored history failed verification: %w", err))
		return
	}

	states := make([]string, len(blobs))
	for i, b := range blobs {
		states[i] = rccodec.EncodeHex(b)
	}
	h.writeJSON(w, req, http.StatusOK, struct {
		States []string `json:"states"`
	}{States: states})
}

func (h *handler) app(w http.ResponseWriter, req *http.Request) (rcaccept.App, bool) {
	id, err := parseHash(mux.Vars(req)["id"])
	if err != nil {
		h.writeError(w, req, &rcstate.ParamError{Field: "id", Reason: err.Error()})
		return rcaccept.App{}, false
	}
	return rcaccept.AppFor(id), true
}

func (h *handler) decode(w http.ResponseWriter, req *http.Request, dst any) bool {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, req, &rcstate.ParamError{Field: "body", Reason: err.Error()})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, req, &rcstate.ParamError{Field: "body", Reason: err.Error()})
		return false
	}
	return true
}

func (h *handler) now() uint64 {
	return uint64(h.cfg.Now().Unix())
}

func (h *handler) writeJSON(w http.ResponseWriter, req *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("Failed to write response", "request_id", w.Header().Get(RequestIDHeader), "path", req.URL.Path, "err", err)
	}
}

func parseHash(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("must be %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

func toCommitResponse(c rcledger.Commit) commitResponse {
	r := commitResponse{
		CircleID: hex.EncodeToString(c.App.Identity[:]),
		Ref:      c.Ref.String(),
		State:    rccodec.EncodeHex(rccodec.MarshalState(c.State)),
	}
	if p := c.Payout; p != nil {
		r.Payout = &payout{Round: p.Round, Recipient: p.Recipient.String(), Amount: p.Amount}
	}
	return r
}
