// Package evm implements the ledger against a tip jar contract deployed on an
// EVM compatible chain using the go-ethereum client.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrNoWallet is returned by writes when no private key was provided.
var ErrNoWallet = errors.New("no wallet connected")

// EventHandler defines a function that is called when events
// occur in the processing of ledger calls.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to use the ledger.
type Config struct {
	Client     *ethclient.Client
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
	BlockPoll  time.Duration
	EvHandler  EventHandler
}

// Ledger provides access to the tip jar contract and the chain it lives on.
type Ledger struct {
	client    *ethclient.Client
	address   common.Address
	contract  *bind.BoundContract
	key       *ecdsa.PrivateKey
	chainID   *big.Int
	blockPoll time.Duration
	evHandler EventHandler
}

// Dial connects to the RPC endpoint at the specified url.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return client, nil
}

// New constructs a ledger bound to the contract at the configured address.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	parsed, err := abi.JSON(strings.NewReader(tipJarABI))
	if err != nil {
		return nil, fmt.Errorf("parsing contract abi: %w", err)
	}

	chainID, err := cfg.Client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieving chain id: %w", err)
	}

	blockPoll := cfg.BlockPoll
	if blockPoll <= 0 {
		blockPoll = 2 * time.Second
	}

	l := Ledger{
		client:    cfg.Client,
		address:   cfg.Address,
		contract:  bind.NewBoundContract(cfg.Address, parsed, cfg.Client, cfg.Client, cfg.Client),
		key:       cfg.PrivateKey,
		chainID:   chainID,
		blockPoll: blockPoll,
		evHandler: ev,
	}

	return &l, nil
}

// Address returns the contract address.
func (l *Ledger) Address() common.Address {
	return l.address
}

// From returns the account of the connected wallet, or the zero address.
func (l *Ledger) From() common.Address {
	if l.key == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(l.key.PublicKey)
}

// ChainID returns the id of the chain the client is connected to.
func (l *Ledger) ChainID() *big.Int {
	return new(big.Int).Set(l.chainID)
}

// =============================================================================

// SubmitTip calls the contract's payable tip method with the value attached.
func (l *Ledger) SubmitTip(ctx context.Context, name string, message string, value *big.Int) (common.Hash, error) {
	opts, err := l.transactOpts(ctx, value)
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := l.contract.Transact(opts, methodTip, name, message)
	if err != nil {
		return common.Hash{}, err
	}

	l.evHandler("evm: SubmitTip: tx[%s] value[%s]", tx.Hash().Hex(), value)

	return tx.Hash(), nil
}

// Withdraw calls the contract's withdrawal method.
func (l *Ledger) Withdraw(ctx context.Context) (common.Hash, error) {
	opts, err := l.transactOpts(ctx, nil)
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := l.contract.Transact(opts, methodWithdrawTips)
	if err != nil {
		return common.Hash{}, err
	}

	l.evHandler("evm: Withdraw: tx[%s]", tx.Hash().Hex())

	return tx.Hash(), nil
}

// AllTips reads every record from the contract in insertion order.
func (l *Ledger) AllTips(ctx context.Context) ([]ledger.TipRecord, error) {
	var out []any
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGetMemos); err != nil {
		return nil, fmt.Errorf("calling %s: %w", methodGetMemos, err)
	}

	return decodeTips(out)
}

// Beneficiary reads the contract owner.
func (l *Ledger) Beneficiary(ctx context.Context) (common.Address, error) {
	var out []any
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodOwner); err != nil {
		return common.Address{}, fmt.Errorf("calling %s: %w", methodOwner, err)
	}

	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("calling %s: unexpected result length %d", methodOwner, len(out))
	}

	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("calling %s: unexpected result type %T", methodOwner, out[0])
	}

	return owner, nil
}

// =============================================================================

// Balance returns the latest balance for the account.
func (l *Ledger) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return l.client.BalanceAt(ctx, account, nil)
}

// Receipt reports what the chain knows about the transaction handle.
func (l *Ledger) Receipt(ctx context.Context, handle common.Hash) (ledger.Receipt, error) {
	rct, err := l.client.TransactionReceipt(ctx, handle)
	switch {
	case err == nil:
		return toReceipt(rct), nil

	case !errors.Is(err, geth.NotFound):
		return ledger.Receipt{}, err
	}

	// A known transaction without a receipt is either in the pool or mined
	// with the receipt on its way, so it is confirming either way.
	if _, _, err := l.client.TransactionByHash(ctx, handle); err != nil {
		if errors.Is(err, geth.NotFound) {
			return ledger.Receipt{Status: ledger.ReceiptUnknown}, nil
		}
		return ledger.Receipt{}, err
	}

	return ledger.Receipt{Status: ledger.ReceiptPending}, nil
}

// SubscribeBlocks returns a channel receiving new block numbers. When the
// endpoint does not support subscriptions, the latest block number is polled
// and a notification is produced every time it moves.
func (l *Ledger) SubscribeBlocks(ctx context.Context) (<-chan uint64, error) {
	const blockBuffer = 16

	out := make(chan uint64, blockBuffer)

	headers := make(chan *types.Header, blockBuffer)
	sub, err := l.client.SubscribeNewHead(ctx, headers)
	if err != nil {
		l.evHandler("evm: SubscribeBlocks: subscription unavailable, polling every %v: %s", l.blockPoll, err)
		go l.pollBlocks(ctx, out)
		return out, nil
	}

	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for {
			select {
			case hdr := <-headers:
				send(out, hdr.Number.Uint64())

			case err := <-sub.Err():
				if err != nil {
					l.evHandler("evm: SubscribeBlocks: subscription dropped: %s", err)
				}
				return

			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// =============================================================================

// pollBlocks produces block notifications by polling the block number.
func (l *Ledger) pollBlocks(ctx context.Context, out chan<- uint64) {
	defer close(out)

	ticker := time.NewTicker(l.blockPoll)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ticker.C:
			n, err := l.client.BlockNumber(ctx)
			if err != nil {
				l.evHandler("evm: pollBlocks: ERROR: %s", err)
				continue
			}

			if n > last {
				last = n
				send(out, n)
			}

		case <-ctx.Done():
			return
		}
	}
}

// transactOpts builds the signing options for a write.
func (l *Ledger) transactOpts(ctx context.Context, value *big.Int) (*bind.TransactOpts, error) {
	if l.key == nil {
		return nil, ErrNoWallet
	}

	opts, err := bind.NewKeyedTransactorWithChainID(l.key, l.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.Value = value

	return opts, nil
}

// send delivers the block number without blocking. A slow receiver only
// misses intermediate notifications.
func send(out chan<- uint64, n uint64) {
	select {
	case out <- n:
	default:
	}
}
