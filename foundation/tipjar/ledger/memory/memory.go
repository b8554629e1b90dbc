// Package memory implements an in-memory ledger and transport. It is used for
// local development and as the ledger double in tests.
package memory

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Set of transaction kinds held in the pending pool.
const (
	kindTip = iota
	kindWithdraw
)

// pendingTx represents a transaction waiting for the next block.
type pendingTx struct {
	kind    int
	from    common.Address
	name    string
	message string
	value   *big.Int
	revert  string
}

// Ledger maintains tips, balances and receipts in memory. Submitted
// transactions sit in a pending pool until MineBlock is called.
type Ledger struct {
	mu          sync.Mutex
	address     common.Address
	beneficiary common.Address
	sender      common.Address
	records     []ledger.TipRecord
	balances    map[common.Address]*big.Int
	pool        map[common.Hash]pendingTx
	order       []common.Hash
	receipts    map[common.Hash]ledger.Receipt
	block       uint64
	nonce       uint64
	subs        map[int]chan uint64
	nextSub     int
	submitErr   error
	readErr     error
	submits     int
	reads       int
	now         func() time.Time
}

// New constructs an in-memory ledger at the specified address with the
// specified beneficiary. The sender is the connected wallet used for writes.
func New(address common.Address, beneficiary common.Address, sender common.Address) *Ledger {
	return &Ledger{
		address:     address,
		beneficiary: beneficiary,
		sender:      sender,
		balances:    make(map[common.Address]*big.Int),
		pool:        make(map[common.Hash]pendingTx),
		receipts:    make(map[common.Hash]ledger.Receipt),
		subs:        make(map[int]chan uint64),
		now:         time.Now,
	}
}

// Address returns the ledger's address.
func (l *Ledger) Address() common.Address {
	return l.address
}

// SetSender changes the connected wallet used for writes.
func (l *Ledger) SetSender(sender common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sender = sender
}

// SetBalance sets the balance for the specified account.
func (l *Ledger) SetBalance(account common.Address, value *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[account] = new(big.Int).Set(value)
}

// FailSubmits makes every write return the specified error until called
// again with nil.
func (l *Ledger) FailSubmits(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.submitErr = err
}

// FailReads makes every read of the tip list return the specified error
// until called again with nil.
func (l *Ledger) FailReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.readErr = err
}

// Revert marks a pending transaction to fail with the reason when mined.
func (l *Ledger) Revert(handle common.Hash, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, exists := l.pool[handle]
	if !exists {
		return ledger.ErrNotFound
	}

	tx.revert = reason
	l.pool[handle] = tx
	return nil
}

// Submissions returns the number of write calls made against the ledger.
func (l *Ledger) Submissions() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.submits
}

// Reads returns the number of tip list reads made against the ledger.
func (l *Ledger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.reads
}

// Append adds a record directly to the ledger, bypassing the pending pool.
func (l *Ledger) Append(tr ledger.TipRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, tr.Copy())
}

// =============================================================================

// SubmitTip places a tip transaction in the pending pool.
func (l *Ledger) SubmitTip(ctx context.Context, name string, message string, value *big.Int) (common.Hash, error) {
	if value == nil || value.Sign() < 0 {
		return common.Hash{}, errors.New("invalid tip value")
	}

	return l.submit(pendingTx{
		kind:    kindTip,
		name:    name,
		message: message,
		value:   new(big.Int).Set(value),
	})
}

// Withdraw places a withdrawal transaction in the pending pool. A withdrawal
// from any account other than the beneficiary reverts when mined.
func (l *Ledger) Withdraw(ctx context.Context) (common.Hash, error) {
	return l.submit(pendingTx{
		kind:  kindWithdraw,
		value: new(big.Int),
	})
}

// AllTips returns a copy of every record in insertion order.
func (l *Ledger) AllTips(ctx context.Context) ([]ledger.TipRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reads++
	if l.readErr != nil {
		return nil, l.readErr
	}

	out := make([]ledger.TipRecord, len(l.records))
	for i, tr := range l.records {
		out[i] = tr.Copy()
	}

	return out, nil
}

// Beneficiary returns the account entitled to withdraw.
func (l *Ledger) Beneficiary(ctx context.Context) (common.Address, error) {
	return l.beneficiary, nil
}

// =============================================================================

// Balance returns the balance for the specified account.
func (l *Ledger) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, exists := l.balances[account]
	if !exists {
		return new(big.Int), nil
	}

	return new(big.Int).Set(bal), nil
}

// Receipt reports the state of the transaction handle.
func (l *Ledger) Receipt(ctx context.Context, handle common.Hash) (ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rct, exists := l.receipts[handle]; exists {
		return rct, nil
	}

	if _, exists := l.pool[handle]; exists {
		return ledger.Receipt{Status: ledger.ReceiptPending}, nil
	}

	return ledger.Receipt{Status: ledger.ReceiptUnknown}, nil
}

// SubscribeBlocks returns a channel that receives the number of every new
// block. The channel is closed when the context is cancelled.
func (l *Ledger) SubscribeBlocks(ctx context.Context) (<-chan uint64, error) {
	const blockBuffer = 16

	ch := make(chan uint64, blockBuffer)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	go func() {
		<-ctx.Done()

		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.subs, id)
		close(ch)
	}()

	return ch, nil
}

// =============================================================================

// MineBlock applies every pending transaction in submission order, produces
// receipts for them, and notifies block subscribers.
func (l *Ledger) MineBlock() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.block++

	for _, handle := range l.order {
		tx, exists := l.pool[handle]
		if !exists {
			continue
		}
		delete(l.pool, handle)

		rct := ledger.Receipt{
			Status:      ledger.ReceiptSuccess,
			BlockNumber: l.block,
		}

		switch {
		case tx.revert != "":
			rct.Status = ledger.ReceiptFailed
			rct.Reason = tx.revert

		case tx.kind == kindWithdraw && tx.from != l.beneficiary:
			rct.Status = ledger.ReceiptFailed
			rct.Reason = "execution reverted: caller is not the owner"

		case tx.kind == kindWithdraw:
			held := l.balanceOf(l.address)
			l.balanceOf(l.beneficiary).Add(l.balanceOf(l.beneficiary), held)
			l.balances[l.address] = new(big.Int)

		default:
			l.balanceOf(l.address).Add(l.balanceOf(l.address), tx.value)
			l.records = append(l.records, ledger.TipRecord{
				From:      tx.from,
				Timestamp: uint64(l.now().UTC().Unix()),
				Name:      tx.name,
				Amount:    tx.value,
				Message:   tx.message,
			})
		}

		l.receipts[handle] = rct
	}
	l.order = nil

	// Since a notification is dropped if the subscriber is not ready to
	// receive, subscribers only rely on the block arriving, not every block.
	for _, ch := range l.subs {
		select {
		case ch <- l.block:
		default:
		}
	}

	return l.block
}

// MineEvery mines a block on the specified interval until the context is
// cancelled. It is used to drive the ledger during local development.
func (l *Ledger) MineEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.MineBlock()
		case <-ctx.Done():
			return
		}
	}
}

// =============================================================================

// submit records the write and places the transaction in the pool.
func (l *Ledger) submit(tx pendingTx) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.submits++
	if l.submitErr != nil {
		return common.Hash{}, l.submitErr
	}

	tx.from = l.sender

	l.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], l.nonce)
	handle := crypto.Keccak256Hash(l.address.Bytes(), tx.from.Bytes(), buf[:])

	l.pool[handle] = tx
	l.order = append(l.order, handle)

	return handle, nil
}

// balanceOf returns the stored balance pointer for the account, creating it
// when missing. The caller must hold the lock.
func (l *Ledger) balanceOf(account common.Address) *big.Int {
	bal, exists := l.balances[account]
	if !exists {
		bal = new(big.Int)
		l.balances[account] = bal
	}
	return bal
}
