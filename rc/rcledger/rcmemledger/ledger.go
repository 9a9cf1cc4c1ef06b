// Package rcmemledger is an in-memory [rcledger.Ledger].
// It enforces single consumption of outputs and runs an acceptance predicate
// on every submission, like a real ledger would.
package rcmemledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcledger"
)

type output struct {
	app     rcaccept.App
	payload []byte
	spent   bool
}

// Ledger is an in-memory ledger. Its zero value is not usable; call [New].
type Ledger struct {
	log       *slog.Logger
	predicate rcaccept.Predicate

	mu      sync.Mutex
	outputs map[rcledger.OutputRef]output
	chains  map[rcaccept.App][]rcledger.OutputRef
}

var (
	_ rcledger.Ledger    = (*Ledger)(nil)
	_ rcledger.Historian = (*Ledger)(nil)
)

// New returns an empty Ledger accepting transactions that satisfy p.
func New(log *slog.Logger, p rcaccept.Predicate) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		log:       log,
		predicate: p,

		outputs: make(map[rcledger.OutputRef]output),
		chains:  make(map[rcaccept.App][]rcledger.OutputRef),
	}
}

func (l *Ledger) FetchOutput(_ context.Context, ref rcledger.OutputRef) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.outputs[ref]
	if !ok {
		return nil, fmt.Errorf("output %s: %w", ref, rcledger.ErrNotFound)
	}
	return slices.Clone(o.payload), nil
}

func (l *Ledger) LatestOutput(_ context.Context, app rcaccept.App) (rcledger.OutputRef, []byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	refs := l.chains[app]
	if len(refs) == 0 {
		return rcledger.OutputRef{}, nil, fmt.Errorf("circle %s: %w", app, rcledger.ErrNotFound)
	}
	ref := refs[len(refs)-1]
	return ref, slices.Clone(l.outputs[ref].payload), nil
}

func (l *Ledger) History(_ context.Context, app rcaccept.App) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	refs := l.chains[app]
	if len(refs) == 0 {
		return nil, fmt.Errorf("circle %s: %w", app, rcledger.ErrNotFound)
	}
	out := make([][]byte, len(refs))
	for i, ref := range refs {
		out[i] = slices.Clone(l.outputs[ref].payload)
	}
	return out, nil
}

func (l *Ledger) Submit(_ context.Context, b rcledger.Bundle) (rcledger.OutputRef, error) {
	// Holding the lock across the predicate makes submission atomic:
	// of two bundles spending the same output, exactly one commits.
	l.mu.Lock()
	defer l.mu.Unlock()

	var prevState []byte
	if b.Spend == nil {
		if len(l.chains[b.App]) > 0 {
			return rcledger.OutputRef{}, rcledger.ExistsError(b.App)
		}
	} else {
		o, ok := l.outputs[*b.Spend]
		if !ok {
			return rcledger.OutputRef{}, fmt.Errorf("spent output %s: %w", *b.Spend, rcledger.ErrNotFound)
		}
		if o.app != b.App {
			return rcledger.OutputRef{}, rcledger.MismatchError(*b.Spend, b.App, o.app)
		}
		if o.spent {
			return rcledger.OutputRef{}, rcledger.SpentError(*b.Spend)
		}
		prevState = o.payload
	}

	if err := l.predicate.Accept(b.App, b.Tx(prevState), b.Witness); err != nil {
		l.log.Debug("Rejected bundle", "app", b.App.String(), "err", err)
		return rcledger.OutputRef{}, err
	}

	ref := rcledger.OutputRef{TxID: b.TxID()}
	if b.Spend != nil {
		o := l.outputs[*b.Spend]
		o.spent = true
		l.outputs[*b.Spend] = o
	}
	l.outputs[ref] = output{app: b.App, payload: slices.Clone(b.NewState)}
	l.chains[b.App] = append(l.chains[b.App], ref)

	return ref, nil
}
