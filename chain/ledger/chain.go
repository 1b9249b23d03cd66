// Chain composes Store and Mempool into the append-only ledger. Its
// BuildBlock -> Seal block path is adapted from the
// teacher's chain/node/blockchain.go Blockchain.AddBlock (validateBlock,
// executeTransactions, storeReceipts, storeBlock, update current head),
// generalized from EVM-style state transitions to this ledger's
// balance/nonce/pending-amount account model.
package ledger

import (
	"errors"
	"fmt"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

var (
	ErrInvalidParentHash = errors.New("ledger: block does not extend current head")
	ErrInvalidIndex      = errors.New("ledger: block index is not head index + 1")
)

// Chain is the node's view of the persisted ledger: a leveldb-backed
// account/block store plus the pending transaction pool feeding it.
type Chain struct {
	Store   *Store
	Mempool *Mempool
}

// OpenChain opens (or creates) a chain rooted at dataDir, ensuring the
// genesis block exists.
func OpenChain(dataDir string, maxMempoolSize int) (*Chain, error) {
	store, err := Open(dataDir)
	if err != nil {
		return nil, err
	}
	if _, err := store.Genesis(); err != nil {
		return nil, err
	}
	return &Chain{Store: store, Mempool: NewMempool(maxMempoolSize)}, nil
}

// BaseFee returns the head block's base fee, the per-byte admission floor
// the next block's transactions must clear.
func (c *Chain) BaseFee() (uint64, error) {
	head, err := c.Store.BlockByHash(c.Store.Head())
	if err != nil {
		return 0, fmt.Errorf("ledger: base fee: load head: %w", err)
	}
	return head.BaseFee, nil
}

// AdmitTransaction admits tx to the mempool against the current head's
// base fee.
func (c *Chain) AdmitTransaction(tx *types.SignedTransaction) error {
	baseFee, err := c.BaseFee()
	if err != nil {
		return err
	}
	return c.Mempool.Admit(c.Store, tx, baseFee)
}

// ApplyTransaction debits the sender (amount + fee + tip) and credits the
// receiver, finalizing the sender's pending nonce. The caller must have
// already verified the signature and lane split; this only moves balances.
func ApplyTransaction(store *Store, tx *types.SignedTransaction) error {
	sender, err := store.Account(tx.Payload.From)
	if err != nil {
		return err
	}
	committed := tx.Payload.Amount + tx.Payload.Fee + tx.Tip
	if sender.Balance < committed {
		return fmt.Errorf("ledger: apply tx: sender %s balance %d below committed %d", tx.Payload.From, sender.Balance, committed)
	}
	sender.Balance -= committed
	sender.FinalizePending(tx.Payload.Nonce, committed)
	if err := store.PutAccount(sender); err != nil {
		return err
	}

	if tx.Payload.To.IsZero() {
		return nil // burn / fee-only transaction
	}
	receiver, err := store.Account(tx.Payload.To)
	if err != nil {
		return err
	}
	receiver.Balance += tx.Payload.Amount
	return store.PutAccount(receiver)
}

// BuildBlock drains up to maxTxs admitted transactions (bounded by
// byteLimit total serialized size), applies them to the account store, and
// assembles the unsealed block body. Coinbase splits, the VDF proof, and
// any L2/read/fee-checksum roots are the caller's responsibility to fill in
// before Seal, since those come from the economics and compute-market
// layers this package does not depend on.
func (c *Chain) BuildBlock(lanes []types.Lane, maxTxs int, byteLimit, timestampMs uint64) (*types.Block, error) {
	head, err := c.Store.BlockByHash(c.Store.Head())
	if err != nil {
		return nil, fmt.Errorf("ledger: build block: load head: %w", err)
	}

	txs := c.Mempool.Drain(lanes, maxTxs, byteLimit)
	for _, tx := range txs {
		if err := ApplyTransaction(c.Store, tx); err != nil {
			return nil, fmt.Errorf("ledger: build block: apply tx %s: %w", tx.Hash(), err)
		}
		c.Mempool.Remove(tx.Hash())
	}

	var bytesUsed uint64
	for _, tx := range txs {
		bytesUsed += tx.Size()
	}

	block := &types.Block{
		Index:        head.Index + 1,
		PreviousHash: head.Hash,
		TimestampMs:  timestampMs,
		Transactions: txs,
		BaseFee:      NextBaseFee(head.BaseFee, bytesUsed, byteLimit),
	}
	return block, nil
}

// Seal finalizes block's content hash and appends it to the store,
// validating that it still extends the current head (guards against
// another block having been sealed onto the head since BuildBlock).
func (c *Chain) Seal(block *types.Block) error {
	if !block.PreviousHash.Equal(c.Store.Head()) {
		return ErrInvalidParentHash
	}
	head, err := c.Store.BlockByHash(c.Store.Head())
	if err != nil {
		return fmt.Errorf("ledger: seal: load head: %w", err)
	}
	if block.Index != head.Index+1 {
		return ErrInvalidIndex
	}
	block.Hash = block.ComputeHash()
	if err := c.Store.StoreBlock(block); err != nil {
		return err
	}
	return c.Store.SetHead(block)
}
