package rcaccept

import (
	"encoding/hex"
	"fmt"

	"github.com/gordian-engine/gcircle/rc/rcstate"
)

// AppTag is the application tag of every circle.
const AppTag = "rosca"

// App identifies the application whose payloads a predicate guards.
// A circle's App is its tag together with its circle ID.
type App struct {
	Tag      string
	Identity [rcstate.HashSize]byte
}

// AppFor returns the App of the circle with the given ID.
func AppFor(circleID [rcstate.HashSize]byte) App {
	return App{Tag: AppTag, Identity: circleID}
}

func (a App) String() string {
	return fmt.Sprintf("%s:%s", a.Tag, hex.EncodeToString(a.Identity[:]))
}

// Output is a transaction output, as far as the predicate is concerned:
// the application payloads it carries.
type Output struct {
	Payloads map[App][]byte
}

// Payload returns the payload for app, or nil.
func (o Output) Payload(app App) []byte {
	return o.Payloads[app]
}

// Tx is a ledger transaction presented to a predicate.
// Ins are the outputs being spent.
type Tx struct {
	Ins  []Output
	Outs []Output
}

// payloads returns every non-empty payload for app among outs.
func payloads(outs []Output, app App) [][]byte {
	var found [][]byte
	for _, o := range outs {
		if p := o.Payload(app); len(p) > 0 {
			found = append(found, p)
		}
	}
	return found
}
