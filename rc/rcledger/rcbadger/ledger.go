// Package rcbadger is a persistent [rcledger.Ledger] backed by BadgerDB.
//
// Each submission runs in a single read-write badger transaction
// that reads the spent marker and circle head it depends on,
// so of two concurrent submissions spending the same output
// the later commit fails with a conflict, reported as a stale reference.
package rcbadger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcchain"
	"github.com/gordian-engine/gcircle/rc/rcledger"
)

// Ledger is a BadgerDB-backed ledger.
type Ledger struct {
	log       *slog.Logger
	db        *badger.DB
	predicate rcaccept.Predicate
}

var (
	_ rcledger.Ledger    = (*Ledger)(nil)
	_ rcledger.Historian = (*Ledger)(nil)
)

// Open opens or creates a ledger accepting transactions that satisfy p.
// The caller must Close the returned Ledger.
func Open(log *slog.Logger, cfg Config, p rcaccept.Predicate) (*Ledger, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Ledger{log: log, db: db, predicate: p}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) FetchOutput(_ context.Context, ref rcledger.OutputRef) ([]byte, error) {
	var r record
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		r, err = getRecord(txn, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.payload, nil
}

func (l *Ledger) LatestOutput(_ context.Context, app rcaccept.App) (rcledger.OutputRef, []byte, error) {
	var (
		ref rcledger.OutputRef
		r   record
	)
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		ref, err = getHead(txn, app)
		if err != nil {
			return err
		}
		r, err = getRecord(txn, ref)
		return err
	})
	if err != nil {
		return rcledger.OutputRef{}, nil, err
	}
	return ref, r.payload, nil
}

func (l *Ledger) History(_ context.Context, app rcaccept.App) ([][]byte, error) {
	var out [][]byte
	err := l.db.View(func(txn *badger.Txn) error {
		ref, err := getHead(txn, app)
		if err != nil {
			return err
		}
		for {
			r, err := getRecord(txn, ref)
			if err != nil {
				return err
			}
			out = append(out, r.payload)
			if r.prev == nil {
				return nil
			}
			ref = *r.prev
		}
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (l *Ledger) Submit(_ context.Context, b rcledger.Bundle) (rcledger.OutputRef, error) {
	ref := rcledger.OutputRef{TxID: b.TxID()}

	err := l.db.Update(func(txn *badger.Txn) error {
		var prevState []byte
		if b.Spend == nil {
			_, err := getHead(txn, b.App)
			if err == nil {
				return rcledger.ExistsError(b.App)
			}
			if !errors.Is(err, rcledger.ErrNotFound) {
				return err
			}
		} else {
			prev, err := getRecord(txn, *b.Spend)
			if err != nil {
				return fmt.Errorf("spent output: %w", err)
			}
			if prev.app != b.App {
				return rcledger.MismatchError(*b.Spend, b.App, prev.app)
			}

			_, err = txn.Get(spentKey(*b.Spend))
			if err == nil {
				return rcledger.SpentError(*b.Spend)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to read spent marker: %w", err)
			}
			prevState = prev.payload

			if err := txn.Set(spentKey(*b.Spend), nil); err != nil {
				return fmt.Errorf("failed to mark output spent: %w", err)
			}
		}

		if err := l.predicate.Accept(b.App, b.Tx(prevState), b.Witness); err != nil {
			return err
		}

		rec := record{prev: b.Spend, app: b.App, payload: b.NewState}
		if err := txn.Set(outputKey(ref), rec.marshal()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if err := txn.Set(headKey(b.App), encodeRef(ref)); err != nil {
			return fmt.Errorf("failed to write circle head: %w", err)
		}
		return nil
	})

	if errors.Is(err, badger.ErrConflict) {
		l.log.Debug("Submission lost a conflict", "app", b.App.String())
		return rcledger.OutputRef{}, &rcchain.ChainError{
			Kind:   rcchain.StaleReference,
			Field:  "spend",
			Detail: "concurrent submission committed first",
		}
	}
	if err != nil {
		return rcledger.OutputRef{}, err
	}
	return ref, nil
}

func getHead(txn *badger.Txn, app rcaccept.App) (rcledger.OutputRef, error) {
	item, err := txn.Get(headKey(app))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rcledger.OutputRef{}, fmt.Errorf("circle %s: %w", app, rcledger.ErrNotFound)
	}
	if err != nil {
		return rcledger.OutputRef{}, fmt.Errorf("failed to read circle head: %w", err)
	}

	var ref rcledger.OutputRef
	err = item.Value(func(v []byte) error {
		var err error
		ref, err = decodeRef(v)
		return err
	})
	return ref, err
}

func getRecord(txn *badger.Txn, ref rcledger.OutputRef) (record, error) {
	item, err := txn.Get(outputKey(ref))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, fmt.Errorf("output %s: %w", ref, rcledger.ErrNotFound)
	}
	if err != nil {
		return record{}, fmt.Errorf("failed to read output %s: %w", ref, err)
	}

	var r record
	err = item.Value(func(v []byte) error {
		var err error
		r, err = unmarshalRecord(v)
		return err
	})
	return r, err
}
