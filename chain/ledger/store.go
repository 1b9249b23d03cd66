package ledger

import (
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// Key-prefix conventions mirror the teacher's balance-/nonce-/block-/height-
// scheme, collapsed to one account- prefix since Account already carries
// balance, nonce, and pending state as a single unit.
const (
	prefixAccount     = "account-"
	prefixBlock       = "block-"
	prefixHeight      = "height-"
	keyCurrentHead    = "current-head"
	keyGenesis        = "genesis"
)

// Store is the leveldb-backed persistence layer for accounts and sealed
// blocks. An in-memory account cache sits in front of leveldb, matching the
// teacher's StateDB (map cache populated lazily from disk, written through
// on every mutation).
type Store struct {
	db *leveldb.DB

	mu       sync.RWMutex
	accounts map[types.Address]*types.Account

	head    types.Hash
	genesis types.Hash
}

// Open creates or loads a Store backed by a leveldb database at dataDir.
func Open(dataDir string) (*Store, error) {
	db, err := leveldb.OpenFile(dataDir, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("ledger: open store: %w", err)
	}
	s := &Store{db: db, accounts: make(map[types.Address]*types.Account)}

	if raw, err := db.Get([]byte(keyGenesis), nil); err == nil {
		s.genesis = types.BytesToHash(raw)
	}
	if raw, err := db.Get([]byte(keyCurrentHead), nil); err == nil {
		s.head = types.BytesToHash(raw)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Account returns a copy of addr's account, or a fresh zero account if it
// has never been touched (the ledger treats every address as implicitly
// existing with a zero balance).
func (s *Store) Account(addr types.Address) (*types.Account, error) {
	s.mu.RLock()
	if a, ok := s.accounts[addr]; ok {
		s.mu.RUnlock()
		return cloneAccount(a), nil
	}
	s.mu.RUnlock()

	raw, err := s.db.Get(accountKey(addr), nil)
	if err == leveldb.ErrNotFound {
		a := types.NewAccount(addr)
		s.mu.Lock()
		s.accounts[addr] = a
		s.mu.Unlock()
		return cloneAccount(a), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read account %s: %w", addr, err)
	}
	a, err := DecodeAccount(raw)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.accounts[addr] = a
	s.mu.Unlock()
	return cloneAccount(a), nil
}

// PutAccount writes a through both the cache and leveldb.
func (s *Store) PutAccount(a *types.Account) error {
	if err := s.db.Put(accountKey(a.Address), EncodeAccount(a), nil); err != nil {
		return fmt.Errorf("ledger: write account %s: %w", a.Address, err)
	}
	s.mu.Lock()
	s.accounts[a.Address] = cloneAccount(a)
	s.mu.Unlock()
	return nil
}

// Head returns the current chain head hash.
func (s *Store) Head() types.Hash { return s.head }

// Genesis returns the genesis block, loading and persisting the
// deterministic genesis block the first time it is called.
func (s *Store) Genesis() (*types.Block, error) {
	if !s.genesis.IsZero() {
		return s.BlockByHash(s.genesis)
	}
	genesis := types.Genesis()
	if err := s.StoreBlock(genesis); err != nil {
		return nil, err
	}
	s.genesis = genesis.Hash
	s.head = genesis.Hash
	if err := s.db.Put([]byte(keyGenesis), genesis.Hash.Bytes(), nil); err != nil {
		return nil, fmt.Errorf("ledger: mark genesis: %w", err)
	}
	if err := s.db.Put([]byte(keyCurrentHead), genesis.Hash.Bytes(), nil); err != nil {
		return nil, fmt.Errorf("ledger: mark current head: %w", err)
	}
	return genesis, nil
}

// StoreBlock persists block, keyed by both hash and height.
func (s *Store) StoreBlock(block *types.Block) error {
	buf := EncodeBlock(block)
	if err := s.db.Put(append([]byte(prefixBlock), block.Hash.Bytes()...), buf, nil); err != nil {
		return fmt.Errorf("ledger: store block: %w", err)
	}
	if err := s.db.Put(heightKey(block.Index), block.Hash.Bytes(), nil); err != nil {
		return fmt.Errorf("ledger: store block height index: %w", err)
	}
	return nil
}

// SetHead advances the persisted head pointer to block's hash.
func (s *Store) SetHead(block *types.Block) error {
	s.head = block.Hash
	return s.db.Put([]byte(keyCurrentHead), block.Hash.Bytes(), nil)
}

// BlockByHash loads and decodes a previously stored block.
func (s *Store) BlockByHash(hash types.Hash) (*types.Block, error) {
	raw, err := s.db.Get(append([]byte(prefixBlock), hash.Bytes()...), nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: read block %s: %w", hash, err)
	}
	return DecodeBlock(raw)
}

// BlockByHeight loads a block by its index, following the height- index.
func (s *Store) BlockByHeight(height uint64) (*types.Block, error) {
	raw, err := s.db.Get(heightKey(height), nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: read height index %d: %w", height, err)
	}
	return s.BlockByHash(types.BytesToHash(raw))
}

func accountKey(addr types.Address) []byte {
	return append([]byte(prefixAccount), addr.Bytes()...)
}

func heightKey(height uint64) []byte {
	k := make([]byte, 0, len(prefixHeight)+8)
	k = append(k, prefixHeight...)
	for i := 7; i >= 0; i-- {
		k = append(k, byte(height>>(uint(i)*8)))
	}
	return k
}

func cloneAccount(a *types.Account) *types.Account {
	c := *a
	c.PendingNonces = make(map[uint64]struct{}, len(a.PendingNonces))
	for n := range a.PendingNonces {
		c.PendingNonces[n] = struct{}{}
	}
	c.Sessions = append([]types.SessionPolicy(nil), a.Sessions...)
	return &c
}
