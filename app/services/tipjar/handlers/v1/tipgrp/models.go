package tipgrp

import (
	"time"

	"github.com/ardanlabs/tipjar/foundation/nameservice"
	"github.com/ardanlabs/tipjar/foundation/tipjar/amount"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/tracker"
	"github.com/ethereum/go-ethereum/common"
)

type tip struct {
	From      common.Address `json:"from"`
	FromName  string         `json:"from_name"`
	Timestamp uint64         `json:"timestamp"`
	Time      string         `json:"time"`
	Name      string         `json:"name"`
	Amount    string         `json:"amount"`
	AmountWei string         `json:"amount_wei"`
	Message   string         `json:"message,omitempty"`
}

func toTips(records []ledger.TipRecord, ns *nameservice.NameService) []tip {
	tips := make([]tip, len(records))
	for i, tr := range records {
		tips[i] = tip{
			From:      tr.From,
			FromName:  ns.Lookup(tr.From),
			Timestamp: tr.Timestamp,
			Time:      time.Unix(int64(tr.Timestamp), 0).UTC().Format(time.RFC3339),
			Name:      tr.Name,
			Amount:    amount.Format(tr.Amount),
			AmountWei: tr.Amount.String(),
			Message:   tr.Message,
		}
	}
	return tips
}

type newTip struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Amount  string `json:"amount"`
}

type submitted struct {
	Tx     tracker.PendingTransaction `json:"tx"`
	Notice string                     `json:"notice,omitempty"`
}

type txStatus struct {
	Tracking bool                       `json:"tracking"`
	Tx       tracker.PendingTransaction `json:"tx"`
}

type status struct {
	Warning   string         `json:"warning,omitempty"`
	Ledger    string         `json:"ledger,omitempty"`
	Wallet    common.Address `json:"wallet"`
	Connected bool           `json:"connected"`
	CanSubmit bool           `json:"can_submit"`
	Notice    string         `json:"notice,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type withdrawStatus struct {
	Contract      common.Address `json:"contract"`
	Balance       string         `json:"balance"`
	BalanceWei    string         `json:"balance_wei"`
	Beneficiary   common.Address `json:"beneficiary"`
	IsBeneficiary bool           `json:"is_beneficiary"`
	CanWithdraw   bool           `json:"can_withdraw"`
}
