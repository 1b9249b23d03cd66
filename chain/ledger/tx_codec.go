package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Ian-Reitsma/the-block/chain/codec"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

// docVec concatenates length-prefixed sub-documents the same way
// PutU64Vec wraps its count+elements encoding: an outer byte-length
// prefix (applied by the caller via PutBytes) around an inner
// count-then-elements body. tx_binary.rs is not present in the filtered
// original-source pack, so the transaction and block wire shapes below
// follow this package's own cursor convention rather than a ported
// field order.
func encodeDocVec(docs [][]byte) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, uint64(len(docs)))
	for _, d := range docs {
		lb := make([]byte, 8)
		binary.BigEndian.PutUint64(lb, uint64(len(d)))
		buf.Write(lb)
		buf.Write(d)
	}
	return buf.Bytes()
}

func decodeDocVec(blob []byte) ([][]byte, error) {
	r := bytes.NewReader(blob)
	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("ledger: decode doc vec count: %w", err)
	}
	docs := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		var n uint64
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("ledger: decode doc vec length: %w", err)
		}
		d := make([]byte, n)
		if _, err := r.Read(d); err != nil {
			return nil, fmt.Errorf("ledger: decode doc vec body: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func txSchema() codec.Schema {
	return codec.Schema{
		"from":            codec.TBytes,
		"to":              codec.TBytes,
		"amount":          codec.TU64,
		"fee":             codec.TU64,
		"pct":             codec.TU8,
		"nonce":           codec.TU64,
		"memo":            codec.TBytes,
		"public_key":      codec.TBytes,
		"signature":       codec.TBytes,
		"tip":             codec.TU64,
		"aggregate_sig":   codec.TBytes,
		"threshold":       codec.TU8,
		"signer_pub_keys": codec.TBytes,
		"lane":            codec.TU8,
		"version":         codec.TU8,
	}
}

// EncodeSignedTransaction serializes a transaction via the fixed-field
// binary cursor. SignerPubKeys (a vector of byte strings) is wrapped the
// same way the governance codec wraps Proposal.Deps.
func EncodeSignedTransaction(tx *types.SignedTransaction) []byte {
	w := codec.NewWriter()
	w.PutBytes("from", tx.Payload.From.Bytes())
	w.PutBytes("to", tx.Payload.To.Bytes())
	w.PutU64("amount", tx.Payload.Amount)
	w.PutU64("fee", tx.Payload.Fee)
	w.PutU8("pct", tx.Payload.Pct)
	w.PutU64("nonce", tx.Payload.Nonce)
	w.PutBytes("memo", tx.Payload.Memo)
	w.PutBytes("public_key", tx.PublicKey)
	w.PutBytes("signature", tx.Signature)
	w.PutU64("tip", tx.Tip)
	w.PutBytes("aggregate_sig", tx.AggregateSig)
	w.PutU8("threshold", tx.Threshold)
	w.PutBytes("signer_pub_keys", encodeDocVec(tx.SignerPubKeys))
	w.PutU8("lane", uint8(tx.Lane))
	w.PutU8("version", tx.Version)
	return w.Bytes()
}

// DecodeSignedTransaction parses a document produced by
// EncodeSignedTransaction.
func DecodeSignedTransaction(buf []byte) (*types.SignedTransaction, error) {
	r, err := codec.DecodeSchema(buf, txSchema(), nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: decode tx: %w", err)
	}
	from, err := r.Bytes("from")
	if err != nil {
		return nil, err
	}
	to, err := r.Bytes("to")
	if err != nil {
		return nil, err
	}
	amount, err := r.U64("amount")
	if err != nil {
		return nil, err
	}
	fee, err := r.U64("fee")
	if err != nil {
		return nil, err
	}
	pct, err := r.U8("pct")
	if err != nil {
		return nil, err
	}
	nonce, err := r.U64("nonce")
	if err != nil {
		return nil, err
	}
	memo, err := r.Bytes("memo")
	if err != nil {
		return nil, err
	}
	pubKey, err := r.Bytes("public_key")
	if err != nil {
		return nil, err
	}
	sig, err := r.Bytes("signature")
	if err != nil {
		return nil, err
	}
	tip, err := r.U64("tip")
	if err != nil {
		return nil, err
	}
	aggSig, err := r.Bytes("aggregate_sig")
	if err != nil {
		return nil, err
	}
	threshold, err := r.U8("threshold")
	if err != nil {
		return nil, err
	}
	signerBlob, err := r.Bytes("signer_pub_keys")
	if err != nil {
		return nil, err
	}
	signerKeys, err := decodeDocVec(signerBlob)
	if err != nil {
		return nil, err
	}
	lane, err := r.U8("lane")
	if err != nil {
		return nil, err
	}
	version, err := r.U8("version")
	if err != nil {
		return nil, err
	}

	return &types.SignedTransaction{
		Payload: types.TxPayload{
			From:   types.BytesToAddress(from),
			To:     types.BytesToAddress(to),
			Amount: amount,
			Fee:    fee,
			Pct:    pct,
			Nonce:  nonce,
			Memo:   memo,
		},
		PublicKey:     pubKey,
		Signature:     sig,
		Tip:           tip,
		AggregateSig:  aggSig,
		Threshold:     threshold,
		SignerPubKeys: signerKeys,
		Lane:          types.Lane(lane),
		Version:       version,
	}, nil
}
