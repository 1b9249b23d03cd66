package types

// Account is the ledger's single fungible-balance account record.
//
// A legacy pending_consumer/pending_industrial pair decodes into the single
// PendingAmount (see chain/ledger DecodeAccount). Legacy two-token balance
// fields are not recognised; decoding a record that carries them fails
// with an unknown-field error.
type Account struct {
	Address       Address
	Balance       uint64
	Nonce         uint64 // next expected sequence number
	PendingAmount uint64 // sum of amount+fee for admitted-but-unfinalized txs
	PendingNonce  uint64 // highest pending nonce observed (informational)
	PendingNonces map[uint64]struct{}
	Sessions      []SessionPolicy
}

// SessionPolicy is an account-scoped compute/gossip session policy. Field
// shape is intentionally open — the core only needs to round-trip it.
type SessionPolicy struct {
	Kind   string
	Expiry uint64
}

// NewAccount creates a zeroed account for addr.
func NewAccount(addr Address) *Account {
	return &Account{
		Address:       addr,
		PendingNonces: make(map[uint64]struct{}),
	}
}

// HasOutstandingPending reports whether nonce is already admitted.
func (a *Account) HasOutstandingPending(nonce uint64) bool {
	_, ok := a.PendingNonces[nonce]
	return ok
}

// AdmitPending records nonce and amount+fee as pending, enforcing the
// invariant balance >= pending_amount.
func (a *Account) AdmitPending(nonce uint64, amountPlusFee uint64) {
	if a.PendingNonces == nil {
		a.PendingNonces = make(map[uint64]struct{})
	}
	a.PendingNonces[nonce] = struct{}{}
	a.PendingAmount += amountPlusFee
	if nonce > a.PendingNonce {
		a.PendingNonce = nonce
	}
}

// FinalizePending clears a finalized nonce from the pending set, advances
// the account's nonce, and releases the reserved amount.
func (a *Account) FinalizePending(nonce uint64, amountPlusFee uint64) {
	delete(a.PendingNonces, nonce)
	if amountPlusFee <= a.PendingAmount {
		a.PendingAmount -= amountPlusFee
	} else {
		a.PendingAmount = 0
	}
	if nonce+1 > a.Nonce {
		a.Nonce = nonce + 1
	}
}

// AvailableBalance is the balance not already committed to pending debits.
func (a *Account) AvailableBalance() uint64 {
	if a.PendingAmount > a.Balance {
		return 0
	}
	return a.Balance - a.PendingAmount
}

// Lane is the fee-routing destination for a transaction.
type Lane uint8

const (
	LaneConsumer Lane = iota
	LaneIndustrial
)

func (l Lane) String() string {
	if l == LaneIndustrial {
		return "industrial"
	}
	return "consumer"
}

// TxPayload is the signed portion of a transaction.
type TxPayload struct {
	From   Address
	To     Address
	Amount uint64
	Fee    uint64
	Pct    uint8 // lane split 0..100: percent of Fee routed to consumer lane
	Nonce  uint64
	Memo   []byte
}

// SignedTransaction is a fully signed, lane-tagged transaction.
type SignedTransaction struct {
	Payload          TxPayload
	PublicKey        []byte
	Signature        []byte
	Tip              uint64
	AggregateSig     []byte
	Threshold        uint8
	SignerPubKeys    [][]byte
	Lane             Lane
	Version          uint8
}

// ConsumerFee returns the portion of Fee routed to the consumer lane.
func (tx *SignedTransaction) ConsumerFee() uint64 {
	return splitPct(tx.Payload.Fee, tx.Payload.Pct)
}

// IndustrialFee returns the portion of Fee routed to the industrial lane.
func (tx *SignedTransaction) IndustrialFee() uint64 {
	return tx.Payload.Fee - tx.ConsumerFee()
}

func splitPct(total uint64, pct uint8) uint64 {
	if pct >= 100 {
		return total
	}
	if pct == 0 {
		return 0
	}
	return total * uint64(pct) / 100
}

// SigningHash hashes the payload fields that are covered by the signature.
func (tx *SignedTransaction) SigningHash() Hash {
	data := make([]byte, 0, 64)
	data = append(data, tx.Payload.From.Bytes()...)
	data = append(data, tx.Payload.To.Bytes()...)
	data = append(data, uint64ToBytes(tx.Payload.Amount)...)
	data = append(data, uint64ToBytes(tx.Payload.Fee)...)
	data = append(data, tx.Payload.Pct)
	data = append(data, uint64ToBytes(tx.Payload.Nonce)...)
	data = append(data, tx.Payload.Memo...)
	data = append(data, byte(tx.Lane))
	data = append(data, tx.Version)
	return Keccak256Hash(data)
}

// Hash returns the transaction hash, including signature bytes.
func (tx *SignedTransaction) Hash() Hash {
	return Keccak256Hash(tx.SigningHash().Bytes(), tx.Signature)
}

// Size estimates the serialized size of the transaction in bytes, used for
// fee-per-byte ordering and the base-fee floor check.
func (tx *SignedTransaction) Size() uint64 {
	size := uint64(20+20+8+8+1+8) + uint64(len(tx.Payload.Memo))
	size += uint64(len(tx.PublicKey) + len(tx.Signature) + len(tx.AggregateSig))
	for _, k := range tx.SignerPubKeys {
		size += uint64(len(k))
	}
	size += 2 // lane + version
	return size
}

// EffectiveFeePerByte is the ordering key used by the mempool.
func (tx *SignedTransaction) EffectiveFeePerByte() uint64 {
	sz := tx.Size()
	if sz == 0 {
		return 0
	}
	return (tx.Payload.Fee + tx.Tip) / sz
}
