package rcledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gordian-engine/gcircle/gcrypto"
	"github.com/gordian-engine/gcircle/internal/glog"
	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rcstate"
	"github.com/gordian-engine/gcircle/rc/rctransition"
)

// ClientConfig is the configuration for [NewClient].
type ClientConfig struct {
	Ledger Ledger

	// Prover checks bundles before submission.
	// Defaults to a LocalProver running rcaccept.Full.
	Prover Prover

	// MaxRetries is how many times Advance refetches and reapplies
	// after its spent state was superseded by a concurrent commit.
	MaxRetries int

	// Metrics is optional.
	Metrics *Metrics
}

// DefaultClientConfig returns a ClientConfig for l with default settings.
func DefaultClientConfig(l Ledger) ClientConfig {
	return ClientConfig{
		Ledger:     l,
		Prover:     LocalProver{Predicate: rcaccept.Full{}},
		MaxRetries: 3,
	}
}

// Client drives circles on a [Ledger].
// A Client holds no per-circle state; many clients, in many processes,
// may advance the same circle and the ledger arbitrates.
type Client struct {
	log *slog.Logger

	ledger  Ledger
	prover  Prover
	retries int
	metrics *Metrics

	committed atomic.Uint64
	rejected  atomic.Uint64
	retried   atomic.Uint64
}

// Commit describes a state committed to the ledger.
type Commit struct {
	App   rcaccept.App
	Ref   OutputRef
	State rcstate.CircleState

	// Payout is set when the committed transition paid out a round.
	Payout *rctransition.Payout
}

// Stats are cumulative counts of a Client's outcomes.
type Stats struct {
	Committed uint64
	Rejected  uint64
	Retried   uint64
}

// NewClient returns a Client. A nil log uses slog.Default().
func NewClient(log *slog.Logger, cfg ClientConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Prover == nil {
		cfg.Prover = LocalProver{Predicate: rcaccept.Full{}}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		log:     log,
		ledger:  cfg.Ledger,
		prover:  cfg.Prover,
		retries: cfg.MaxRetries,
		metrics: cfg.Metrics,
	}
}

// Create commits the genesis state of a new circle.
// If signer is non-nil it signs the witness, and must be the founder.
func (c *Client) Create(
	ctx context.Context, p rctransition.CreateParams, signer gcrypto.Signer,
) (Commit, error) {
	s, err := rctransition.CreateCircle(p)
	if err != nil {
		c.observe("create", outcomeOf(err))
		return Commit{}, err
	}

	app := rcaccept.AppFor(s.CircleID)
	newBytes := rccodec.MarshalState(s)
	w, err := c.witness(ctx, signer, nil, newBytes)
	if err != nil {
		c.observe("create", "error")
		return Commit{}, err
	}

	ref, err := c.submit(ctx, Bundle{App: app, NewState: newBytes, Witness: w})
	if err != nil {
		c.observe("create", outcomeOf(err))
		return Commit{}, fmt.Errorf("failed to commit genesis of %s: %w", app, err)
	}

	c.observe("create", "committed")
	c.log.Info("Created circle", "app", app.String(), "ref", ref.String(), "capacity", s.MemberCapacity)
	return Commit{App: app, Ref: ref, State: s}, nil
}

// Advance applies op to the current state of app's circle and commits the result.
//
// If another commit supersedes the state Advance started from,
// it fetches the new current state and reapplies op, up to MaxRetries times.
// Engine and predicate rejections are returned immediately.
// If signer is non-nil it signs the witness, and must be op's actor.
func (c *Client) Advance(
	ctx context.Context, app rcaccept.App, op rcstate.Operation, signer gcrypto.Signer,
) (Commit, error) {
	if op == nil {
		return Commit{}, &rcstate.ParamError{Field: "operation", Reason: "no operation given"}
	}
	opName := op.Kind().String()

	for attempt := 0; ; attempt++ {
		commit, err := c.advanceOnce(ctx, app, op, signer)
		if err == nil {
			c.observe(opName, "committed")
			if commit.Payout != nil && c.metrics != nil {
				c.metrics.Payouts.Inc()
			}
			return commit, nil
		}

		if !rcchain.Retryable(err) || attempt >= c.retries || ctx.Err() != nil {
			c.observe(opName, outcomeOf(err))
			return Commit{}, err
		}

		c.retried.Add(1)
		if c.metrics != nil {
			c.metrics.Retries.Inc()
		}
		c.log.Debug(
			"Circle state superseded; retrying",
			"app", app.String(), "op", opName, "attempt", attempt+1, "err", err,
		)
	}
}

func (c *Client) advanceOnce(
	ctx context.Context, app rcaccept.App, op rcstate.Operation, signer gcrypto.Signer,
) (Commit, error) {
	ref, prevBytes, err := c.ledger.LatestOutput(ctx, app)
	if err != nil {
		return Commit{}, fmt.Errorf("failed to fetch current state of %s: %w", app, err)
	}
	prev, err := rccodec.UnmarshalState(prevBytes)
	if err != nil {
		return Commit{}, fmt.Errorf("failed to decode current state of %s: %w", app, err)
	}

	next, err := rctransition.Apply(prev, op)
	if err != nil {
		return Commit{}, err
	}
	newBytes := rccodec.MarshalState(next)

	w, err := c.witness(ctx, signer, op, newBytes)
	if err != nil {
		return Commit{}, err
	}

	newRef, err := c.submit(ctx, Bundle{
		App:       app,
		Spend:     &ref,
		PrevState: prevBytes,
		NewState:  newBytes,
		Witness:   w,
	})
	if err != nil {
		return Commit{}, err
	}

	commit := Commit{App: app, Ref: newRef, State: next}
	if p, ok := rctransition.PayoutOf(prev, next); ok {
		commit.Payout = &p
		c.log.Info(
			"Round paid out",
			"app", app.String(), "round", p.Round, "recipient", glog.Hex(p.Recipient[:]), "amount", p.Amount,
		)
	}
	return commit, nil
}

// State returns the current state of app's circle and the output holding it.
func (c *Client) State(ctx context.Context, app rcaccept.App) (rcstate.CircleState, OutputRef, error) {
	ref, b, err := c.ledger.LatestOutput(ctx, app)
	if err != nil {
		return rcstate.CircleState{}, OutputRef{}, err
	}
	s, err := rccodec.UnmarshalState(b)
	if err != nil {
		return rcstate.CircleState{}, OutputRef{}, fmt.Errorf("failed to decode state at %s: %w", ref, err)
	}
	return s, ref, nil
}

// Stats returns the Client's cumulative outcome counts.
func (c *Client) Stats() Stats {
	return Stats{
		Committed: c.committed.Load(),
		Rejected:  c.rejected.Load(),
		Retried:   c.retried.Load(),
	}
}

func (c *Client) witness(
	ctx context.Context, signer gcrypto.Signer, op rcstate.Operation, newState []byte,
) ([]byte, error) {
	w := rcaccept.Witness{Op: op}
	if signer != nil {
		var err error
		w, err = rcaccept.SignWitness(ctx, signer, op, newState)
		if err != nil {
			return nil, err
		}
	}
	return w.Marshal()
}

func (c *Client) submit(ctx context.Context, draft Bundle) (OutputRef, error) {
	b, err := c.prover.Prove(ctx, draft)
	if err != nil {
		return OutputRef{}, err
	}

	start := time.Now()
	ref, err := c.ledger.Submit(ctx, b)
	if c.metrics != nil {
		c.metrics.SubmitSeconds.Observe(time.Since(start).Seconds())
	}
	return ref, err
}

func (c *Client) observe(op, outcome string) {
	switch outcome {
	case "committed":
		c.committed.Add(1)
	case "rejected":
		c.rejected.Add(1)
	}
	if c.metrics != nil {
		c.metrics.Operations.WithLabelValues(op, outcome).Inc()
	}
}

func outcomeOf(err error) string {
	switch {
	case rcchain.Retryable(err):
		return "stale"
	case errors.Is(err, rcaccept.ErrRejected),
		errors.Is(err, rcstate.ErrInvariantViolation),
		errors.Is(err, rcstate.ErrInvalidParameter):
		return "rejected"
	default:
		return "error"
	}
}
