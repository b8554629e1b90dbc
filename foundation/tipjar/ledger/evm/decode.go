package evm

import (
	"fmt"
	"math/big"

	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// memo matches the tuple returned by the contract's getMemos method.
type memo struct {
	From      common.Address
	Timestamp *big.Int
	Name      string
	Amount    *big.Int
	Message   string
}

// decodeTips converts the unpacked contract result into tip records.
func decodeTips(out []any) (tips []ledger.TipRecord, err error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("decoding %s: unexpected result length %d", methodGetMemos, len(out))
	}

	// ConvertType panics when the shapes do not line up.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoding %s: %v", methodGetMemos, r)
		}
	}()

	memos := *abi.ConvertType(out[0], new([]memo)).(*[]memo)

	tips = make([]ledger.TipRecord, len(memos))
	for i, m := range memos {
		tips[i] = ledger.TipRecord{
			From:      m.From,
			Timestamp: m.Timestamp.Uint64(),
			Name:      m.Name,
			Amount:    m.Amount,
			Message:   m.Message,
		}
	}

	return tips, nil
}

// toReceipt converts a chain receipt into a ledger receipt.
func toReceipt(rct *types.Receipt) ledger.Receipt {
	var number uint64
	if rct.BlockNumber != nil {
		number = rct.BlockNumber.Uint64()
	}

	if rct.Status == types.ReceiptStatusFailed {
		return ledger.Receipt{
			Status:      ledger.ReceiptFailed,
			BlockNumber: number,
			Reason:      "execution reverted",
		}
	}

	return ledger.Receipt{
		Status:      ledger.ReceiptSuccess,
		BlockNumber: number,
	}
}
