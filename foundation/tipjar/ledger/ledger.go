// Package ledger defines the surface of the remote tip ledger and the
// transport used to observe it. Implementations live in sub-packages.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Set of field limits enforced by the ledger contract surface.
const (
	MaxNameLength    = 64
	MaxMessageLength = 280
)

// ErrNotFound is returned when a requested item is unknown to the ledger.
var ErrNotFound = errors.New("not found")

// =============================================================================

// TipRecord is a single tip as stored by the ledger. Records are immutable
// once created; callers only ever hold copies.
type TipRecord struct {
	From      common.Address `json:"from"`
	Timestamp uint64         `json:"timestamp"`
	Name      string         `json:"name"`
	Amount    *big.Int       `json:"amount"`
	Message   string         `json:"message"`
}

// Copy returns a deep copy of the record.
func (tr TipRecord) Copy() TipRecord {
	if tr.Amount != nil {
		tr.Amount = new(big.Int).Set(tr.Amount)
	}
	return tr
}

// =============================================================================

// ReceiptStatus represents what the transport knows about a handle.
type ReceiptStatus int

// Set of receipt states a transport can report.
const (
	ReceiptUnknown ReceiptStatus = iota
	ReceiptPending
	ReceiptSuccess
	ReceiptFailed
)

// String implements the fmt.Stringer interface.
func (rs ReceiptStatus) String() string {
	switch rs {
	case ReceiptPending:
		return "pending"
	case ReceiptSuccess:
		return "success"
	case ReceiptFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Receipt is the transport's report for a submitted transaction handle.
type Receipt struct {
	Status      ReceiptStatus
	BlockNumber uint64
	Reason      string
}

// =============================================================================

// Reader provides the read side of the ledger.
type Reader interface {
	AllTips(ctx context.Context) ([]TipRecord, error)
	Beneficiary(ctx context.Context) (common.Address, error)
}

// Submitter sends tips to the ledger on behalf of the connected wallet.
type Submitter interface {
	SubmitTip(ctx context.Context, name string, message string, value *big.Int) (common.Hash, error)
}

// Withdrawer drains the ledger's held balance to the beneficiary.
type Withdrawer interface {
	Withdraw(ctx context.Context) (common.Hash, error)
}

// Ledger represents the complete contract surface.
type Ledger interface {
	Reader
	Submitter
	Withdrawer
	Address() common.Address
}

// Transport represents the wallet/RPC collaborator used to observe the chain.
type Transport interface {
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	Receipt(ctx context.Context, handle common.Hash) (Receipt, error)
	SubscribeBlocks(ctx context.Context) (<-chan uint64, error)
}
