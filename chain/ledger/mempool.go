// Mempool admission and draining. The nonce-ordered per-address queue and
// single-mutex-guarded map-of-slices shape are adapted from the teacher's
// chain/node/txpool.go (AddTransaction/RemoveTransaction/
// GetPendingTransactions), generalized with a lane dimension: transactions
// route to the consumer or industrial fee lane (types.Lane), ordered within
// a lane by effective fee-per-byte descending and arrival order ascending,
// and drained by round-robin across lanes so neither lane can starve the
// other during block assembly.
package ledger

import (
	"errors"
	"sort"
	"sync"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

var (
	ErrTxAlreadyPending = errors.New("ledger: transaction already pending for this nonce")
	ErrNonceTooLow      = errors.New("ledger: nonce already finalized")
	ErrNonceGapTooLarge = errors.New("ledger: nonce too far ahead of account nonce")
	ErrInsufficientBalance = errors.New("ledger: available balance too low for amount+fee")
	ErrFeeBelowBaseFee  = errors.New("ledger: effective fee per byte below base fee")
	ErrMempoolFull      = errors.New("ledger: mempool full")
)

// MaxPendingGap bounds how far ahead of the account's next expected nonce
// a transaction may be admitted, so out-of-order admission stays bounded.
const MaxPendingGap = 64

type pooledTx struct {
	tx      *types.SignedTransaction
	arrival uint64
}

// Mempool holds admitted, unfinalized transactions awaiting block inclusion.
type Mempool struct {
	mu       sync.RWMutex
	byHash   map[types.Hash]*pooledTx
	byLane   map[types.Lane][]*pooledTx
	bySender map[types.Address][]*pooledTx
	maxSize  int
	nextSeq  uint64
}

// NewMempool creates an empty pool capped at maxSize admitted transactions.
func NewMempool(maxSize int) *Mempool {
	return &Mempool{
		byHash:   make(map[types.Hash]*pooledTx),
		byLane:   make(map[types.Lane][]*pooledTx),
		bySender: make(map[types.Address][]*pooledTx),
		maxSize:  maxSize,
	}
}

// Admit validates tx against the sender's account (anti-replay via
// AdmitPending), the bounded nonce gap, and the current base fee, then
// inserts it into the lane queue. store is consulted and mutated to
// reserve the pending balance: Admit writes the updated account back via
// store.PutAccount itself and returns only an error. baseFee is the head
// block's per-byte floor (Chain.AdmitTransaction threads it through).
func (mp *Mempool) Admit(store *Store, tx *types.SignedTransaction, baseFee uint64) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if len(mp.byHash) >= mp.maxSize {
		return ErrMempoolFull
	}
	hash := tx.Hash()
	if _, exists := mp.byHash[hash]; exists {
		return nil
	}

	acct, err := store.Account(tx.Payload.From)
	if err != nil {
		return err
	}
	if tx.Payload.Nonce < acct.Nonce {
		return ErrNonceTooLow
	}
	if tx.Payload.Nonce-acct.Nonce >= MaxPendingGap {
		return ErrNonceGapTooLarge
	}
	if acct.HasOutstandingPending(tx.Payload.Nonce) {
		return ErrTxAlreadyPending
	}
	committed := tx.Payload.Amount + tx.Payload.Fee + tx.Tip
	if acct.AvailableBalance() < committed {
		return ErrInsufficientBalance
	}
	if tx.EffectiveFeePerByte() < baseFee {
		return ErrFeeBelowBaseFee
	}

	acct.AdmitPending(tx.Payload.Nonce, committed)
	if err := store.PutAccount(acct); err != nil {
		return err
	}

	p := &pooledTx{tx: tx, arrival: mp.nextSeq}
	mp.nextSeq++
	mp.byHash[hash] = p
	mp.byLane[tx.Lane] = append(mp.byLane[tx.Lane], p)
	mp.byLane[tx.Lane] = sortLane(mp.byLane[tx.Lane])
	mp.bySender[tx.Payload.From] = append(mp.bySender[tx.Payload.From], p)
	sort.Slice(mp.bySender[tx.Payload.From], func(i, j int) bool {
		return mp.bySender[tx.Payload.From][i].tx.Payload.Nonce < mp.bySender[tx.Payload.From][j].tx.Payload.Nonce
	})
	return nil
}

func sortLane(xs []*pooledTx) []*pooledTx {
	sort.SliceStable(xs, func(i, j int) bool {
		fi, fj := xs[i].tx.EffectiveFeePerByte(), xs[j].tx.EffectiveFeePerByte()
		if fi != fj {
			return fi > fj
		}
		return xs[i].arrival < xs[j].arrival
	})
	return xs
}

// Remove drops hash from every index, used once a transaction finalizes
// into a sealed block or is evicted.
func (mp *Mempool) Remove(hash types.Hash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	p, ok := mp.byHash[hash]
	if !ok {
		return
	}
	delete(mp.byHash, hash)
	mp.byLane[p.tx.Lane] = removePooled(mp.byLane[p.tx.Lane], hash)
	mp.bySender[p.tx.Payload.From] = removePooled(mp.bySender[p.tx.Payload.From], hash)
}

func removePooled(xs []*pooledTx, hash types.Hash) []*pooledTx {
	for i, p := range xs {
		if p.tx.Hash().Equal(hash) {
			return append(xs[:i], xs[i+1:]...)
		}
	}
	return xs
}

// Size reports the number of admitted transactions.
func (mp *Mempool) Size() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.byHash)
}

// NextNonce returns the next unused nonce for addr, accounting for
// already-admitted pending transactions (mirrors the teacher's
// GetNextNonceForAddress, generalized so the caller supplies the
// on-chain floor since this package has no global account view by itself).
func (mp *Mempool) NextNonce(addr types.Address, chainNonce uint64) uint64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	txs, ok := mp.bySender[addr]
	if !ok || len(txs) == 0 {
		return chainNonce
	}
	highest := txs[len(txs)-1].tx.Payload.Nonce
	if highest+1 > chainNonce {
		return highest + 1
	}
	return chainNonce
}

// Drain selects up to maxCount transactions (bounded additionally by
// maxBytes of total serialized size) for block inclusion, round-robining
// across lanes in the order given by lanes so the block builder controls
// relative lane priority explicitly rather than this package hardcoding it.
func (mp *Mempool) Drain(lanes []types.Lane, maxCount int, maxBytes uint64) []*types.SignedTransaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	cursors := make(map[types.Lane]int, len(lanes))
	var out []*types.SignedTransaction
	var bytesUsed uint64

	for len(out) < maxCount {
		progressed := false
		for _, lane := range lanes {
			if len(out) >= maxCount {
				break
			}
			queue := mp.byLane[lane]
			idx := cursors[lane]
			if idx >= len(queue) {
				continue
			}
			tx := queue[idx].tx
			size := tx.Size()
			if bytesUsed+size > maxBytes {
				cursors[lane] = len(queue)
				continue
			}
			out = append(out, tx)
			bytesUsed += size
			cursors[lane] = idx + 1
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}
