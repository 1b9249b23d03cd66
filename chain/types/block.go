package types

// VDFProof is a verifiable-delay-function proof bundled in the block header.
// VDF evaluation itself is an external collaborator; the core only stores
// and hashes the proof triple.
type VDFProof struct {
	Commit []byte
	Output []byte
	Proof  []byte
}

// CoinbaseSplits is the per-block issuance breakdown that must satisfy the
// block invariant in spec.md §3: the sum of every field equals the block's
// total issued amount.
type CoinbaseSplits struct {
	Block        uint64
	Industrial   uint64
	Storage      uint64
	Read         [5]uint64
	Ad           [6]uint64
	Compute      uint64
	ProofRebate  uint64
}

// Total sums every coinbase split field.
func (c CoinbaseSplits) Total() uint64 {
	total := c.Block + c.Industrial + c.Storage + c.Compute + c.ProofRebate
	for _, v := range c.Read {
		total += v
	}
	for _, v := range c.Ad {
		total += v
	}
	return total
}

// Block is an append-only ledger entry.
type Block struct {
	Index        uint64
	PreviousHash Hash
	TimestampMs  uint64
	Transactions []*SignedTransaction
	Difficulty   uint64
	RetuneHint   int64
	Nonce        uint64
	Hash         Hash
	Coinbase     CoinbaseSplits
	BaseFee      uint64
	VDF          VDFProof
	L2Roots      []Hash
	L2Sizes      []uint64
	ReadRoot     Hash
	FeeChecksum  Hash
	StateRoot    Hash
	Receipts     []BlockReceipt
}

// BlockReceipt is the sum type of receipts embedded in a sealed block.
type BlockReceipt struct {
	Compute       *ComputeReceipt
	ComputeSlash  *ComputeSlashReceipt
	Treasury      *TreasuryEvent
}

// TreasuryEvent records a treasury-facing movement (leftover subsidy bps,
// tariff contribution, etc.) for block-level accounting.
type TreasuryEvent struct {
	Kind   string
	Amount uint64
}

// ComputeHash computes the block's content hash over Index, PreviousHash,
// TimestampMs, each transaction's hash, Difficulty, Nonce, BaseFee and
// StateRoot. The Hash field and every other field are not hashed.
func (b *Block) ComputeHash() Hash {
	data := make([]byte, 0, 256)
	data = append(data, uint64ToBytes(b.Index)...)
	data = append(data, b.PreviousHash.Bytes()...)
	data = append(data, uint64ToBytes(b.TimestampMs)...)
	for _, tx := range b.Transactions {
		data = append(data, tx.Hash().Bytes()...)
	}
	data = append(data, uint64ToBytes(b.Difficulty)...)
	data = append(data, uint64ToBytes(b.Nonce)...)
	data = append(data, uint64ToBytes(b.BaseFee)...)
	data = append(data, b.StateRoot.Bytes()...)
	return Keccak256Hash(data)
}

// TxMerkleRoot computes the Merkle root of the block's transaction hashes.
func (b *Block) TxMerkleRoot() Hash {
	leaves := make([]Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		leaves[i] = tx.Hash()
	}
	return MerkleRoot(leaves)
}

// Genesis builds the zero block.
func Genesis() *Block {
	b := &Block{
		Index:        0,
		PreviousHash: ZeroHash,
		TimestampMs:  0,
		Transactions: nil,
		BaseFee:      1,
	}
	b.Hash = b.ComputeHash()
	return b
}
