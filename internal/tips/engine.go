// Package tips drives the two-phase tip flow: an on-chain token transfer
// followed by an off-chain record of it. The two backends fail
// independently, so the flow is a saga: once the transfer confirms, the
// only safe remediation for a failed record is re-attempting the record
// step with the same transaction hash, never a second transfer.
package tips

import (
	"context"
	"errors"

	"example.com/contextfeed/internal/apperr"
	"example.com/contextfeed/internal/chain"
	"example.com/contextfeed/internal/inflight"
	"example.com/contextfeed/internal/logger"
)

var logg = logger.New()

// ErrBusy is returned when the tipper already has a tip flow outstanding.
var ErrBusy = errors.New("tip already in flight for this user")

// State names one step of a tip attempt.
type State string

const (
	StateIdle           State = "idle"
	StateChainSubmitted State = "chain_submitted"
	StateChainConfirmed State = "chain_confirmed"
	StateRecording      State = "recording"
	// StateReconciled is terminal success: funds moved and the store
	// holds the matching tip record.
	StateReconciled State = "reconciled"
	// StateChainFailed is terminal: no funds moved, no record written.
	StateChainFailed State = "chain_failed"
	// StateRecordFailed is terminal pending user action: funds moved but
	// the store write failed. RetryRecord is the only way forward.
	StateRecordFailed State = "record_failed"
)

// RecordStore is the slice of the social store the engine writes through.
// RecordTip must be idempotent by transaction hash; that property is what
// makes RetryRecord safe.
type RecordStore interface {
	RecordTip(postID, userID, amount, txHash string) error
}

// Attempt tracks one tip through the state machine.
type Attempt struct {
	PostID    string
	TipperID  string
	Recipient string
	Amount    string
	TxHash    string
	State     State
}

type Engine struct {
	store    RecordStore
	transfer chain.TransferService
	decimals int
	guard    *inflight.Guard
}

func New(store RecordStore, transfer chain.TransferService, tokenDecimals int) *Engine {
	return &Engine{
		store:    store,
		transfer: transfer,
		decimals: tokenDecimals,
		guard:    inflight.NewGuard(),
	}
}

// SendTip runs the full flow for one tip. The returned Attempt always
// reflects the terminal state reached; the error carries the category the
// caller should surface. Invalid input is rejected before any chain call.
func (e *Engine) SendTip(ctx context.Context, tipperID, postID, recipient, amount string) (*Attempt, error) {
	const op = "tips.SendTip"

	a := &Attempt{
		PostID:    postID,
		TipperID:  tipperID,
		Recipient: recipient,
		Amount:    amount,
		State:     StateIdle,
	}

	units, err := chain.ParseAmount(amount, e.decimals)
	if err != nil {
		return a, apperr.Wrap(apperr.InvalidInput, op, err)
	}
	if !chain.ValidAddress(recipient) {
		return a, apperr.New(apperr.InvalidInput, op, "malformed recipient address")
	}

	key := inflight.Key("tip", tipperID)
	if !e.guard.Acquire(key) {
		return a, ErrBusy
	}
	defer e.guard.Release(key)

	a.State = StateChainSubmitted
	txHash, err := e.transfer.SubmitTransfer(ctx, recipient, units)
	if err != nil {
		a.State = StateChainFailed
		logg.Error("tips", "Transfer submission failed, no funds moved", err)
		return a, apperr.Wrap(apperr.ChainFailed, op, err)
	}
	a.TxHash = txHash

	if err := e.transfer.WaitConfirmed(ctx, txHash); err != nil {
		a.State = StateChainFailed
		logg.Error("tips", "Transfer not confirmed tx="+txHash, err)
		return a, apperr.Wrap(apperr.ChainFailed, op, err)
	}
	a.State = StateChainConfirmed

	a.State = StateRecording
	if err := e.store.RecordTip(postID, tipperID, amount, txHash); err != nil {
		// Funds have moved; the ledger has not. Surface distinctly and
		// leave any retry to an explicit user action.
		a.State = StateRecordFailed
		logg.Error("tips", "Tip paid but not recorded tx="+txHash, err)
		return a, apperr.Wrap(apperr.RecordFailed, op, err)
	}

	a.State = StateReconciled
	logg.Info("tips", "Tip reconciled tx="+txHash)
	return a, nil
}

// RetryRecord re-attempts only the record step of an attempt that ended in
// StateRecordFailed, reusing the already-confirmed transaction hash. It
// never touches the chain.
func (e *Engine) RetryRecord(a *Attempt) error {
	const op = "tips.RetryRecord"

	if a.State != StateRecordFailed {
		return apperr.New(apperr.InvalidInput, op, "attempt is not awaiting re-record")
	}
	if a.TxHash == "" {
		return apperr.New(apperr.InvalidInput, op, "attempt has no confirmed transaction")
	}

	a.State = StateRecording
	if err := e.store.RecordTip(a.PostID, a.TipperID, a.Amount, a.TxHash); err != nil {
		a.State = StateRecordFailed
		logg.Error("tips", "Tip re-record failed tx="+a.TxHash, err)
		return apperr.Wrap(apperr.RecordFailed, op, err)
	}

	a.State = StateReconciled
	logg.Info("tips", "Tip reconciled after manual retry tx="+a.TxHash)
	return nil
}
