// Package tipgrp maintains the group of handlers for the tip jar.
package tipgrp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ardanlabs/tipjar/business/core/jar"
	"github.com/ardanlabs/tipjar/business/sys/metrics"
	"github.com/ardanlabs/tipjar/business/web/errs"
	"github.com/ardanlabs/tipjar/foundation/events"
	"github.com/ardanlabs/tipjar/foundation/nameservice"
	"github.com/ardanlabs/tipjar/foundation/tipjar/amount"
	"github.com/ardanlabs/tipjar/foundation/tipjar/form"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of tip jar endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	Jar     *jar.Jar
	NS      *nameservice.NameService
	Metrics *metrics.Metrics
	WS      websocket.Upgrader
	Evts    *events.Events

	// The form holds one set of fields, so filling and submitting it is
	// done under this lock.
	FormMu *sync.Mutex
}

// Status returns the configuration warning and the state of the form.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st := h.Jar.Form.State()

	resp := status{
		Warning:   st.Warning,
		Wallet:    st.Account,
		Connected: st.Connected,
		CanSubmit: st.CanSubmit,
		Notice:    st.Notice,
		Error:     st.Error,
	}
	if h.Jar.Settings.Configured() {
		resp.Ledger = h.Jar.Settings.LedgerAddress().Hex()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Tips returns the most recent tips for the tips view.
func (h Handlers) Tips(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.configured(); err != nil {
		return err
	}

	return web.Respond(ctx, w, toTips(h.Jar.History.View(jar.TipsView), h.NS), http.StatusOK)
}

// Memos returns the most recent tips for the memos view.
func (h Handlers) Memos(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.configured(); err != nil {
		return err
	}

	return web.Respond(ctx, w, toTips(h.Jar.History.View(jar.MemosView), h.NS), http.StatusOK)
}

// Submit fills the tip form with the request and submits it.
func (h Handlers) Submit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	if err := h.configured(); err != nil {
		return err
	}

	var nt newTip
	if err := web.Decode(w, r, &nt); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.FormMu.Lock()
	defer h.FormMu.Unlock()

	h.Jar.Form.SetName(nt.Name)
	h.Jar.Form.SetMessage(nt.Message)
	h.Jar.Form.SetAmount(nt.Amount)

	h.Log.Infow("submit tip", "traceid", v.TraceID, "name", nt.Name, "amount", nt.Amount)

	tx, err := h.Jar.Form.Submit(ctx)
	if err != nil {
		h.recordSubmission("tip", err)
		return errs.FromTipJar(err)
	}
	h.recordSubmission("tip", nil)

	resp := submitted{
		Tx:     tx,
		Notice: h.Jar.Form.State().Notice,
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// TxStatus returns the lifecycle phase of the last submitted tip, or of the
// last withdrawal when kind=withdraw is requested.
func (h Handlers) TxStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	poller := h.Jar.TipPoller
	switch web.Query(r, "kind") {
	case "", "tip":
	case "withdraw":
		poller = h.Jar.WithdrawPoller
	default:
		return errs.NewTrusted(errors.New("kind must be tip or withdraw"), http.StatusBadRequest)
	}

	tx, tracking := poller.Tracker().Current()

	resp := txStatus{
		Tracking: tracking,
		Tx:       tx,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// WithdrawStatus returns the held balance and whether the connected wallet
// may withdraw it.
func (h Handlers) WithdrawStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st, err := h.Jar.Withdraw.Status(ctx)
	if err != nil {
		return errs.FromTipJar(err)
	}

	resp := withdrawStatus{
		Contract:      st.Contract,
		Beneficiary:   st.Beneficiary,
		IsBeneficiary: st.IsBeneficiary,
		CanWithdraw:   st.CanWithdraw,
	}
	if st.Balance != nil {
		resp.Balance = amount.FormatFixed(st.Balance, 2)
		resp.BalanceWei = st.Balance.String()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Withdraw drains the held balance to the beneficiary.
func (h Handlers) Withdraw(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.Log.Infow("withdraw", "traceid", v.TraceID)

	tx, err := h.Jar.Withdraw.Withdraw(ctx)
	if err != nil {
		h.recordSubmission("withdraw", err)
		return errs.FromTipJar(err)
	}
	h.recordSubmission("withdraw", nil)

	return web.Respond(ctx, w, submitted{Tx: tx}, http.StatusCreated)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	h.Metrics.WebsocketOpened()
	defer h.Metrics.WebsocketClosed()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(evt); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// =============================================================================

// configured returns the configuration warning as a trusted error when the
// ledger address is not set.
func (h Handlers) configured() error {
	if err := h.Jar.Settings.Validate(); err != nil {
		return errs.FromTipJar(ledger.ErrNotConfigured)
	}
	return nil
}

func (h Handlers) recordSubmission(kind string, err error) {
	outcome := "submitted"
	switch {
	case form.IsValidationError(err):
		outcome = "rejected"
	case err != nil:
		outcome = "failed"
	}

	h.Metrics.RecordSubmission(kind, outcome)
}
