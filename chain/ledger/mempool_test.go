package ledger

import (
	"testing"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	c, err := OpenChain(t.TempDir(), 100)
	if err != nil {
		t.Fatalf("OpenChain: %v", err)
	}
	t.Cleanup(func() { c.Store.Close() })
	return c
}

func fundAccount(t *testing.T, c *Chain, addr types.Address, balance uint64) {
	t.Helper()
	a, err := c.Store.Account(addr)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	a.Balance = balance
	if err := c.Store.PutAccount(a); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
}

func TestMempoolAdmitRejectsInsufficientBalance(t *testing.T) {
	c := newTestChain(t)
	from := types.BytesToAddress([]byte{1})
	fundAccount(t, c, from, 5)

	tx := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: types.BytesToAddress([]byte{2}), Amount: 100, Fee: 1}}
	if err := c.Mempool.Admit(c.Store, tx, 0); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestMempoolAdmitRejectsDuplicateNonce(t *testing.T) {
	c := newTestChain(t)
	from := types.BytesToAddress([]byte{1})
	fundAccount(t, c, from, 1000)

	tx1 := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: types.BytesToAddress([]byte{2}), Amount: 10, Fee: 1, Nonce: 0}}
	if err := c.Mempool.Admit(c.Store, tx1, 0); err != nil {
		t.Fatalf("Admit tx1: %v", err)
	}
	tx2 := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: types.BytesToAddress([]byte{3}), Amount: 20, Fee: 1, Nonce: 0, Memo: []byte("x")}}
	if err := c.Mempool.Admit(c.Store, tx2, 0); err != ErrTxAlreadyPending {
		t.Fatalf("expected ErrTxAlreadyPending, got %v", err)
	}
}

func TestMempoolDrainOrdersByFeePerByteThenArrival(t *testing.T) {
	c := newTestChain(t)
	from := types.BytesToAddress([]byte{1})
	fundAccount(t, c, from, 10000)

	low := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: types.BytesToAddress([]byte{2}), Amount: 1, Fee: 1, Nonce: 0}}
	high := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: types.BytesToAddress([]byte{3}), Amount: 1, Fee: 100, Nonce: 1}}
	if err := c.Mempool.Admit(c.Store, low, 0); err != nil {
		t.Fatalf("Admit low: %v", err)
	}
	if err := c.Mempool.Admit(c.Store, high, 0); err != nil {
		t.Fatalf("Admit high: %v", err)
	}

	drained := c.Mempool.Drain([]types.Lane{types.LaneConsumer}, 10, 1<<20)
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained, got %d", len(drained))
	}
	if drained[0].Payload.Fee != 100 {
		t.Fatalf("expected higher fee/byte tx first, got fee %d", drained[0].Payload.Fee)
	}
}

func TestChainBuildAndSeal(t *testing.T) {
	c := newTestChain(t)
	from := types.BytesToAddress([]byte{1})
	to := types.BytesToAddress([]byte{2})
	fundAccount(t, c, from, 10000)

	tx := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: to, Amount: 100, Fee: 1, Nonce: 0}}
	if err := c.Mempool.Admit(c.Store, tx, 0); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	block, err := c.BuildBlock([]types.Lane{types.LaneConsumer, types.LaneIndustrial}, 10, 1<<20, 1000)
	if err != nil {
		t.Fatalf("BuildBlock: %v", err)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected 1 transaction in block, got %d", len(block.Transactions))
	}
	if err := c.Seal(block); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !c.Store.Head().Equal(block.Hash) {
		t.Fatalf("expected head to advance to sealed block")
	}

	toAcct, err := c.Store.Account(to)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if toAcct.Balance != 100 {
		t.Fatalf("expected receiver credited 100, got %d", toAcct.Balance)
	}
	fromAcct, err := c.Store.Account(from)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if fromAcct.Balance != 10000-101 {
		t.Fatalf("expected sender debited amount+fee, got balance %d", fromAcct.Balance)
	}
	if fromAcct.Nonce != 1 {
		t.Fatalf("expected nonce advanced to 1, got %d", fromAcct.Nonce)
	}
}

func TestNextBaseFeeAdjustsTowardTarget(t *testing.T) {
	if got := NextBaseFee(100, 0, 1000); got >= 100 {
		t.Fatalf("expected base fee to ease down on empty block, got %d", got)
	}
	if got := NextBaseFee(100, 1000, 1000); got <= 100 {
		t.Fatalf("expected base fee to rise on full block, got %d", got)
	}
	if got := NextBaseFee(100, 500, 1000); got != 100 {
		t.Fatalf("expected base fee unchanged at target usage, got %d", got)
	}
}

func TestMempoolAdmitRejectsNonceGapBeyondLimit(t *testing.T) {
	c := newTestChain(t)
	from := types.BytesToAddress([]byte{1})
	fundAccount(t, c, from, 10000)

	farAhead := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: types.BytesToAddress([]byte{2}), Amount: 1, Fee: 1, Nonce: MaxPendingGap}}
	if err := c.Mempool.Admit(c.Store, farAhead, 0); err != ErrNonceGapTooLarge {
		t.Fatalf("expected ErrNonceGapTooLarge, got %v", err)
	}

	edge := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: types.BytesToAddress([]byte{2}), Amount: 1, Fee: 1, Nonce: MaxPendingGap - 1}}
	if err := c.Mempool.Admit(c.Store, edge, 0); err != nil {
		t.Fatalf("expected nonce just inside the gap to be admitted, got %v", err)
	}
}

func TestMempoolAdmitEnforcesBaseFeeFloor(t *testing.T) {
	c := newTestChain(t)
	from := types.BytesToAddress([]byte{1})
	fundAccount(t, c, from, 10000)

	// Genesis base fee is 1; a 1ct fee over a ~65-byte tx rounds down to
	// 0 fee-per-byte and must be refused through the chain-level path.
	cheap := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: types.BytesToAddress([]byte{2}), Amount: 1, Fee: 1, Nonce: 0}}
	if err := c.AdmitTransaction(cheap); err != ErrFeeBelowBaseFee {
		t.Fatalf("expected ErrFeeBelowBaseFee, got %v", err)
	}

	paying := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: types.BytesToAddress([]byte{2}), Amount: 1, Fee: 130, Nonce: 0}}
	if err := c.AdmitTransaction(paying); err != nil {
		t.Fatalf("expected fee-per-byte at the floor to be admitted, got %v", err)
	}
}
