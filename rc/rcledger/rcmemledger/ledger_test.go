package rcmemledger_test

import (
	"testing"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/gordian-engine/gcircle/rc/rcledger/rcledgertest"
	"github.com/gordian-engine/gcircle/rc/rcledger/rcmemledger"
	"github.com/neilotoole/slogt"
)

func TestLedgerCompliance(t *testing.T) {
	rcledgertest.TestLedgerCompliance(t, func(t *testing.T, p rcaccept.Predicate) rcledger.Ledger {
		return rcmemledger.New(slogt.New(t), p)
	})
}
