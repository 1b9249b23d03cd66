package ledger

import (
	"fmt"

	"github.com/Ian-Reitsma/the-block/chain/codec"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

func hashVecBytes(hs []types.Hash) []byte {
	docs := make([][]byte, len(hs))
	for i, h := range hs {
		docs[i] = h.Bytes()
	}
	return encodeDocVec(docs)
}

func decodeHashVec(blob []byte) ([]types.Hash, error) {
	docs, err := decodeDocVec(blob)
	if err != nil {
		return nil, err
	}
	hs := make([]types.Hash, len(docs))
	for i, d := range docs {
		hs[i] = types.BytesToHash(d)
	}
	return hs, nil
}

func encodeCoinbase(c types.CoinbaseSplits) []byte {
	w := codec.NewWriter()
	w.PutU64("block", c.Block)
	w.PutU64("industrial", c.Industrial)
	w.PutU64("storage", c.Storage)
	w.PutU64Vec("read", c.Read[:])
	w.PutU64Vec("ad", c.Ad[:])
	w.PutU64("compute", c.Compute)
	w.PutU64("proof_rebate", c.ProofRebate)
	return w.Bytes()
}

func coinbaseSchema() codec.Schema {
	return codec.Schema{
		"block":        codec.TU64,
		"industrial":   codec.TU64,
		"storage":      codec.TU64,
		"read":         codec.TBytes,
		"ad":           codec.TBytes,
		"compute":      codec.TU64,
		"proof_rebate": codec.TU64,
	}
}

func decodeCoinbase(buf []byte) (types.CoinbaseSplits, error) {
	var c types.CoinbaseSplits
	r, err := codec.DecodeSchema(buf, coinbaseSchema(), nil)
	if err != nil {
		return c, fmt.Errorf("ledger: decode coinbase: %w", err)
	}
	c.Block, err = r.U64("block")
	if err != nil {
		return c, err
	}
	c.Industrial, err = r.U64("industrial")
	if err != nil {
		return c, err
	}
	c.Storage, err = r.U64("storage")
	if err != nil {
		return c, err
	}
	read, err := r.U64Vec("read")
	if err != nil {
		return c, err
	}
	if len(read) != len(c.Read) {
		return c, fmt.Errorf("ledger: decode coinbase: read split has %d entries, want %d", len(read), len(c.Read))
	}
	copy(c.Read[:], read)
	ad, err := r.U64Vec("ad")
	if err != nil {
		return c, err
	}
	if len(ad) != len(c.Ad) {
		return c, fmt.Errorf("ledger: decode coinbase: ad split has %d entries, want %d", len(ad), len(c.Ad))
	}
	copy(c.Ad[:], ad)
	c.Compute, err = r.U64("compute")
	if err != nil {
		return c, err
	}
	c.ProofRebate, err = r.U64("proof_rebate")
	if err != nil {
		return c, err
	}
	return c, nil
}

func encodeVDF(v types.VDFProof) []byte {
	w := codec.NewWriter()
	w.PutBytes("commit", v.Commit)
	w.PutBytes("output", v.Output)
	w.PutBytes("proof", v.Proof)
	return w.Bytes()
}

func vdfSchema() codec.Schema {
	return codec.Schema{"commit": codec.TBytes, "output": codec.TBytes, "proof": codec.TBytes}
}

func decodeVDF(buf []byte) (types.VDFProof, error) {
	var v types.VDFProof
	r, err := codec.DecodeSchema(buf, vdfSchema(), nil)
	if err != nil {
		return v, fmt.Errorf("ledger: decode vdf: %w", err)
	}
	if v.Commit, err = r.Bytes("commit"); err != nil {
		return v, err
	}
	if v.Output, err = r.Bytes("output"); err != nil {
		return v, err
	}
	if v.Proof, err = r.Bytes("proof"); err != nil {
		return v, err
	}
	return v, nil
}

// Receipt kind tags for the BlockReceipt sum type.
const (
	receiptKindCompute      = 0
	receiptKindComputeSlash = 1
	receiptKindTreasury     = 2
)

func receiptSchema() codec.Schema {
	return codec.Schema{
		"kind":    codec.TU8,
		"payload": codec.TBytes,
	}
}

func encodeReceipt(rc types.BlockReceipt) ([]byte, error) {
	w := codec.NewWriter()
	switch {
	case rc.Compute != nil:
		w.PutU8("kind", receiptKindCompute)
		w.PutBytes("payload", encodeComputeReceipt(rc.Compute))
	case rc.ComputeSlash != nil:
		w.PutU8("kind", receiptKindComputeSlash)
		w.PutBytes("payload", encodeComputeSlashReceipt(rc.ComputeSlash))
	case rc.Treasury != nil:
		w.PutU8("kind", receiptKindTreasury)
		w.PutBytes("payload", encodeTreasuryEvent(rc.Treasury))
	default:
		return nil, fmt.Errorf("ledger: encode receipt: all receipt variants nil")
	}
	return w.Bytes(), nil
}

func decodeReceipt(buf []byte) (types.BlockReceipt, error) {
	var rc types.BlockReceipt
	r, err := codec.DecodeSchema(buf, receiptSchema(), nil)
	if err != nil {
		return rc, fmt.Errorf("ledger: decode receipt: %w", err)
	}
	kind, err := r.U8("kind")
	if err != nil {
		return rc, err
	}
	payload, err := r.Bytes("payload")
	if err != nil {
		return rc, err
	}
	switch kind {
	case receiptKindCompute:
		cr, err := decodeComputeReceipt(payload)
		if err != nil {
			return rc, err
		}
		rc.Compute = cr
	case receiptKindComputeSlash:
		cs, err := decodeComputeSlashReceipt(payload)
		if err != nil {
			return rc, err
		}
		rc.ComputeSlash = cs
	case receiptKindTreasury:
		tv, err := decodeTreasuryEvent(payload)
		if err != nil {
			return rc, err
		}
		rc.Treasury = tv
	default:
		return rc, fmt.Errorf("ledger: decode receipt: unknown kind %d", kind)
	}
	return rc, nil
}

func blocktorchSchema() codec.Schema {
	return codec.Schema{
		"kernel_digest":      codec.TBytes,
		"descriptor_digest":  codec.TBytes,
		"output_digest":      codec.TBytes,
		"has_benchmark":      codec.TBool,
		"benchmark_commit":   codec.TBytes,
		"has_profile_epoch":  codec.TBool,
		"tensor_profile_epoch": codec.TU64,
		"proof_latency_ms":   codec.TU64,
	}
}

func encodeBlocktorch(b *types.BlocktorchMetadata) []byte {
	w := codec.NewWriter()
	w.PutBytes("kernel_digest", b.KernelDigest.Bytes())
	w.PutBytes("descriptor_digest", b.DescriptorDigest.Bytes())
	w.PutBytes("output_digest", b.OutputDigest.Bytes())
	w.PutBool("has_benchmark", b.BenchmarkCommit != nil)
	if b.BenchmarkCommit != nil {
		w.PutBytes("benchmark_commit", b.BenchmarkCommit.Bytes())
	} else {
		w.PutBytes("benchmark_commit", nil)
	}
	w.PutBool("has_profile_epoch", b.TensorProfileEpoch != nil)
	if b.TensorProfileEpoch != nil {
		w.PutU64("tensor_profile_epoch", *b.TensorProfileEpoch)
	} else {
		w.PutU64("tensor_profile_epoch", 0)
	}
	w.PutU64("proof_latency_ms", b.ProofLatencyMs)
	return w.Bytes()
}

func decodeBlocktorch(buf []byte) (*types.BlocktorchMetadata, error) {
	r, err := codec.DecodeSchema(buf, blocktorchSchema(), nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: decode blocktorch metadata: %w", err)
	}
	b := &types.BlocktorchMetadata{}
	kd, err := r.Bytes("kernel_digest")
	if err != nil {
		return nil, err
	}
	b.KernelDigest = types.BytesToHash(kd)
	dd, err := r.Bytes("descriptor_digest")
	if err != nil {
		return nil, err
	}
	b.DescriptorDigest = types.BytesToHash(dd)
	od, err := r.Bytes("output_digest")
	if err != nil {
		return nil, err
	}
	b.OutputDigest = types.BytesToHash(od)
	hasBenchmark, err := r.Bool("has_benchmark")
	if err != nil {
		return nil, err
	}
	if hasBenchmark {
		bc, err := r.Bytes("benchmark_commit")
		if err != nil {
			return nil, err
		}
		h := types.BytesToHash(bc)
		b.BenchmarkCommit = &h
	}
	hasProfile, err := r.Bool("has_profile_epoch")
	if err != nil {
		return nil, err
	}
	if hasProfile {
		epoch, err := r.U64("tensor_profile_epoch")
		if err != nil {
			return nil, err
		}
		b.TensorProfileEpoch = &epoch
	}
	b.ProofLatencyMs, err = r.U64("proof_latency_ms")
	if err != nil {
		return nil, err
	}
	return b, nil
}

func computeReceiptSchema() codec.Schema {
	return codec.Schema{
		"job_id":             codec.TBytes,
		"provider":           codec.TBytes,
		"compute_units":      codec.TU64,
		"payment":            codec.TU64,
		"block_height":       codec.TU64,
		"verified":           codec.TBool,
		"has_blocktorch":     codec.TBool,
		"blocktorch":         codec.TBytes,
		"provider_signature": codec.TBytes,
		"signature_nonce":    codec.TU64,
	}
}

func encodeComputeReceipt(c *types.ComputeReceipt) []byte {
	w := codec.NewWriter()
	w.PutBytes("job_id", []byte(c.JobID))
	w.PutBytes("provider", c.Provider.Bytes())
	w.PutU64("compute_units", c.ComputeUnits)
	w.PutU64("payment", c.Payment)
	w.PutU64("block_height", c.BlockHeight)
	w.PutBool("verified", c.Verified)
	w.PutBool("has_blocktorch", c.Blocktorch != nil)
	if c.Blocktorch != nil {
		w.PutBytes("blocktorch", encodeBlocktorch(c.Blocktorch))
	} else {
		w.PutBytes("blocktorch", nil)
	}
	w.PutBytes("provider_signature", c.ProviderSignature)
	w.PutU64("signature_nonce", c.SignatureNonce)
	return w.Bytes()
}

func decodeComputeReceipt(buf []byte) (*types.ComputeReceipt, error) {
	r, err := codec.DecodeSchema(buf, computeReceiptSchema(), nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: decode compute receipt: %w", err)
	}
	c := &types.ComputeReceipt{}
	jobID, err := r.Bytes("job_id")
	if err != nil {
		return nil, err
	}
	c.JobID = string(jobID)
	provider, err := r.Bytes("provider")
	if err != nil {
		return nil, err
	}
	c.Provider = types.BytesToAddress(provider)
	if c.ComputeUnits, err = r.U64("compute_units"); err != nil {
		return nil, err
	}
	if c.Payment, err = r.U64("payment"); err != nil {
		return nil, err
	}
	if c.BlockHeight, err = r.U64("block_height"); err != nil {
		return nil, err
	}
	if c.Verified, err = r.Bool("verified"); err != nil {
		return nil, err
	}
	hasBlocktorch, err := r.Bool("has_blocktorch")
	if err != nil {
		return nil, err
	}
	if hasBlocktorch {
		payload, err := r.Bytes("blocktorch")
		if err != nil {
			return nil, err
		}
		bt, err := decodeBlocktorch(payload)
		if err != nil {
			return nil, err
		}
		c.Blocktorch = bt
	}
	if c.ProviderSignature, err = r.Bytes("provider_signature"); err != nil {
		return nil, err
	}
	if c.SignatureNonce, err = r.U64("signature_nonce"); err != nil {
		return nil, err
	}
	return c, nil
}

func computeSlashSchema() codec.Schema {
	return codec.Schema{
		"job_id":       codec.TBytes,
		"provider":     codec.TBytes,
		"reason":       codec.TU8,
		"slashed_bond": codec.TU64,
		"block_height": codec.TU64,
	}
}

func encodeComputeSlashReceipt(c *types.ComputeSlashReceipt) []byte {
	w := codec.NewWriter()
	w.PutBytes("job_id", []byte(c.JobID))
	w.PutBytes("provider", c.Provider.Bytes())
	w.PutU8("reason", uint8(c.Reason))
	w.PutU64("slashed_bond", c.SlashedBond)
	w.PutU64("block_height", c.BlockHeight)
	return w.Bytes()
}

func decodeComputeSlashReceipt(buf []byte) (*types.ComputeSlashReceipt, error) {
	r, err := codec.DecodeSchema(buf, computeSlashSchema(), nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: decode compute slash receipt: %w", err)
	}
	c := &types.ComputeSlashReceipt{}
	jobID, err := r.Bytes("job_id")
	if err != nil {
		return nil, err
	}
	c.JobID = string(jobID)
	provider, err := r.Bytes("provider")
	if err != nil {
		return nil, err
	}
	c.Provider = types.BytesToAddress(provider)
	reason, err := r.U8("reason")
	if err != nil {
		return nil, err
	}
	c.Reason = types.SlaOutcome(reason)
	if c.SlashedBond, err = r.U64("slashed_bond"); err != nil {
		return nil, err
	}
	if c.BlockHeight, err = r.U64("block_height"); err != nil {
		return nil, err
	}
	return c, nil
}

func treasuryEventSchema() codec.Schema {
	return codec.Schema{"kind": codec.TBytes, "amount": codec.TU64}
}

func encodeTreasuryEvent(t *types.TreasuryEvent) []byte {
	w := codec.NewWriter()
	w.PutBytes("kind", []byte(t.Kind))
	w.PutU64("amount", t.Amount)
	return w.Bytes()
}

func decodeTreasuryEvent(buf []byte) (*types.TreasuryEvent, error) {
	r, err := codec.DecodeSchema(buf, treasuryEventSchema(), nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: decode treasury event: %w", err)
	}
	kind, err := r.Bytes("kind")
	if err != nil {
		return nil, err
	}
	amount, err := r.U64("amount")
	if err != nil {
		return nil, err
	}
	return &types.TreasuryEvent{Kind: string(kind), Amount: amount}, nil
}

func blockSchema() codec.Schema {
	return codec.Schema{
		"index":         codec.TU64,
		"previous_hash": codec.TBytes,
		"timestamp_ms":  codec.TU64,
		"transactions":  codec.TBytes,
		"difficulty":    codec.TU64,
		"retune_hint":   codec.TI64,
		"nonce":         codec.TU64,
		"hash":          codec.TBytes,
		"coinbase":      codec.TBytes,
		"base_fee":      codec.TU64,
		"vdf":           codec.TBytes,
		"l2_roots":      codec.TBytes,
		"l2_sizes":      codec.TBytes,
		"read_root":     codec.TBytes,
		"fee_checksum":  codec.TBytes,
		"state_root":    codec.TBytes,
		"receipts":      codec.TBytes,
	}
}

// EncodeBlock serializes a sealed block via the fixed-field binary cursor.
func EncodeBlock(b *types.Block) []byte {
	w := codec.NewWriter()
	w.PutU64("index", b.Index)
	w.PutBytes("previous_hash", b.PreviousHash.Bytes())
	w.PutU64("timestamp_ms", b.TimestampMs)

	txDocs := make([][]byte, len(b.Transactions))
	for i, tx := range b.Transactions {
		txDocs[i] = EncodeSignedTransaction(tx)
	}
	w.PutBytes("transactions", encodeDocVec(txDocs))

	w.PutU64("difficulty", b.Difficulty)
	w.PutI64("retune_hint", b.RetuneHint)
	w.PutU64("nonce", b.Nonce)
	w.PutBytes("hash", b.Hash.Bytes())
	w.PutBytes("coinbase", encodeCoinbase(b.Coinbase))
	w.PutU64("base_fee", b.BaseFee)
	w.PutBytes("vdf", encodeVDF(b.VDF))
	w.PutBytes("l2_roots", hashVecBytes(b.L2Roots))
	w.PutU64Vec("l2_sizes", b.L2Sizes)
	w.PutBytes("read_root", b.ReadRoot.Bytes())
	w.PutBytes("fee_checksum", b.FeeChecksum.Bytes())
	w.PutBytes("state_root", b.StateRoot.Bytes())

	receiptDocs := make([][]byte, 0, len(b.Receipts))
	for _, rc := range b.Receipts {
		doc, err := encodeReceipt(rc)
		if err != nil {
			continue
		}
		receiptDocs = append(receiptDocs, doc)
	}
	w.PutBytes("receipts", encodeDocVec(receiptDocs))
	return w.Bytes()
}

// DecodeBlock parses a document produced by EncodeBlock.
func DecodeBlock(buf []byte) (*types.Block, error) {
	r, err := codec.DecodeSchema(buf, blockSchema(), nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: decode block: %w", err)
	}
	b := &types.Block{}
	if b.Index, err = r.U64("index"); err != nil {
		return nil, err
	}
	ph, err := r.Bytes("previous_hash")
	if err != nil {
		return nil, err
	}
	b.PreviousHash = types.BytesToHash(ph)
	if b.TimestampMs, err = r.U64("timestamp_ms"); err != nil {
		return nil, err
	}

	txBlob, err := r.Bytes("transactions")
	if err != nil {
		return nil, err
	}
	txDocs, err := decodeDocVec(txBlob)
	if err != nil {
		return nil, err
	}
	b.Transactions = make([]*types.SignedTransaction, len(txDocs))
	for i, d := range txDocs {
		tx, err := DecodeSignedTransaction(d)
		if err != nil {
			return nil, err
		}
		b.Transactions[i] = tx
	}

	if b.Difficulty, err = r.U64("difficulty"); err != nil {
		return nil, err
	}
	if b.RetuneHint, err = r.I64("retune_hint"); err != nil {
		return nil, err
	}
	if b.Nonce, err = r.U64("nonce"); err != nil {
		return nil, err
	}
	hb, err := r.Bytes("hash")
	if err != nil {
		return nil, err
	}
	b.Hash = types.BytesToHash(hb)

	coinbaseBuf, err := r.Bytes("coinbase")
	if err != nil {
		return nil, err
	}
	if b.Coinbase, err = decodeCoinbase(coinbaseBuf); err != nil {
		return nil, err
	}
	if b.BaseFee, err = r.U64("base_fee"); err != nil {
		return nil, err
	}
	vdfBuf, err := r.Bytes("vdf")
	if err != nil {
		return nil, err
	}
	if b.VDF, err = decodeVDF(vdfBuf); err != nil {
		return nil, err
	}
	l2RootsBuf, err := r.Bytes("l2_roots")
	if err != nil {
		return nil, err
	}
	if b.L2Roots, err = decodeHashVec(l2RootsBuf); err != nil {
		return nil, err
	}
	if b.L2Sizes, err = r.U64Vec("l2_sizes"); err != nil {
		return nil, err
	}
	readRoot, err := r.Bytes("read_root")
	if err != nil {
		return nil, err
	}
	b.ReadRoot = types.BytesToHash(readRoot)
	feeChecksum, err := r.Bytes("fee_checksum")
	if err != nil {
		return nil, err
	}
	b.FeeChecksum = types.BytesToHash(feeChecksum)
	stateRoot, err := r.Bytes("state_root")
	if err != nil {
		return nil, err
	}
	b.StateRoot = types.BytesToHash(stateRoot)

	receiptsBlob, err := r.Bytes("receipts")
	if err != nil {
		return nil, err
	}
	receiptDocs, err := decodeDocVec(receiptsBlob)
	if err != nil {
		return nil, err
	}
	b.Receipts = make([]types.BlockReceipt, len(receiptDocs))
	for i, d := range receiptDocs {
		rc, err := decodeReceipt(d)
		if err != nil {
			return nil, err
		}
		b.Receipts[i] = rc
	}
	return b, nil
}
