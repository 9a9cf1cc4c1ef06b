package rcstate

import "github.com/gordian-engine/gcircle/gcrypto"

// OpKind tags an Operation on the wire.
type OpKind uint8

const (
	OpAddMember  OpKind = 1
	OpContribute OpKind = 2
)

func (k OpKind) String() string {
	switch k {
	case OpAddMember:
		return "add_member"
	case OpContribute:
		return "contribute"
	default:
		return "unknown"
	}
}

// Operation is a request to advance a circle by one transition.
// The concrete types are [AddMember] and [Contribute].
type Operation interface {
	Kind() OpKind

	// Actor is the member on whose behalf the operation is made.
	Actor() gcrypto.Secp256k1PubKey
}

// AddMember enrolls a new member while the circle is open.
type AddMember struct {
	PubKey      gcrypto.Secp256k1PubKey
	PayoutRound uint32
	JoinedAt    uint64
}

func (AddMember) Kind() OpKind                     { return OpAddMember }
func (o AddMember) Actor() gcrypto.Secp256k1PubKey { return o.PubKey }

// Contribute records a member's payment for the current round.
type Contribute struct {
	PubKey    gcrypto.Secp256k1PubKey
	Amount    uint64
	Timestamp uint64
	TxRef     [HashSize]byte
}

func (Contribute) Kind() OpKind                     { return OpContribute }
func (o Contribute) Actor() gcrypto.Secp256k1PubKey { return o.PubKey }
