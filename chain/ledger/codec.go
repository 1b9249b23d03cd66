// Binary-cursor serialization for Account and SignedTransaction, the two
// wire shapes the ledger persists directly. Field order and the legacy
// pending_amount fallback are taken from ledger_binary.rs's write_account /
// read_account (which itself folds a legacy two-lane pending_consumer /
// pending_industrial pair into a single amount on decode).
package ledger

import (
	"fmt"
	"sort"

	"github.com/Ian-Reitsma/the-block/chain/codec"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

func accountSchema() codec.Schema {
	return codec.Schema{
		"address":             codec.TBytes,
		"balance":             codec.TU64,
		"nonce":               codec.TU64,
		"pending_amount":      codec.TU64,
		"pending_nonce":       codec.TU64,
		"pending_nonces":      codec.TBytes,
		"session_kinds":       codec.TBytes,
		"session_expiries":    codec.TBytes,
	}
}

// EncodeAccount serializes an account for persistence. Sessions are stored
// as parallel kind/expiry vectors rather than a nested vector-of-structs,
// since chain/codec has no sub-document-per-element vector primitive.
func EncodeAccount(a *types.Account) []byte {
	w := codec.NewWriter()
	w.PutBytes("address", a.Address.Bytes())
	w.PutU64("balance", a.Balance)
	w.PutU64("nonce", a.Nonce)
	w.PutU64("pending_amount", a.PendingAmount)
	w.PutU64("pending_nonce", a.PendingNonce)

	nonces := make([]uint64, 0, len(a.PendingNonces))
	for n := range a.PendingNonces {
		nonces = append(nonces, n)
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	w.PutU64Vec("pending_nonces", nonces)

	kinds := make([]string, len(a.Sessions))
	expiries := make([]uint64, len(a.Sessions))
	for i, s := range a.Sessions {
		kinds[i] = s.Kind
		expiries[i] = s.Expiry
	}
	w.PutStringVec("session_kinds", kinds)
	w.PutU64Vec("session_expiries", expiries)
	return w.Bytes()
}

// DecodeAccount parses a document produced by EncodeAccount.
func DecodeAccount(buf []byte) (*types.Account, error) {
	r, err := codec.DecodeSchema(buf, accountSchema(), map[string]bool{"pending_consumer": true, "pending_industrial": true})
	if err != nil {
		return nil, fmt.Errorf("ledger: decode account: %w", err)
	}
	addrBytes, err := r.Bytes("address")
	if err != nil {
		return nil, err
	}
	balance, err := r.U64("balance")
	if err != nil {
		return nil, err
	}
	nonce, err := r.U64("nonce")
	if err != nil {
		return nil, err
	}
	pendingAmount, err := r.U64("pending_amount")
	if err != nil {
		if !r.Has("pending_consumer") && !r.Has("pending_industrial") {
			return nil, err
		}
		consumer, _ := r.U64("pending_consumer")
		industrial, _ := r.U64("pending_industrial")
		pendingAmount = consumer + industrial
	}
	pendingNonce, err := r.U64("pending_nonce")
	if err != nil {
		return nil, err
	}
	nonces, err := r.U64Vec("pending_nonces")
	if err != nil {
		return nil, err
	}
	kinds, err := r.StringVec("session_kinds")
	if err != nil {
		return nil, err
	}
	expiries, err := r.U64Vec("session_expiries")
	if err != nil {
		return nil, err
	}
	if len(kinds) != len(expiries) {
		return nil, fmt.Errorf("ledger: decode account: session_kinds/session_expiries length mismatch")
	}

	a := &types.Account{
		Address:       types.BytesToAddress(addrBytes),
		Balance:       balance,
		Nonce:         nonce,
		PendingAmount: pendingAmount,
		PendingNonce:  pendingNonce,
		PendingNonces: make(map[uint64]struct{}, len(nonces)),
	}
	for _, n := range nonces {
		a.PendingNonces[n] = struct{}{}
	}
	if len(kinds) > 0 {
		a.Sessions = make([]types.SessionPolicy, len(kinds))
		for i := range kinds {
			a.Sessions[i] = types.SessionPolicy{Kind: kinds[i], Expiry: expiries[i]}
		}
	}
	return a, nil
}
