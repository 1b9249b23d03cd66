package node

import (
	"testing"

	"github.com/Ian-Reitsma/the-block/chain/economics"
	"github.com/Ian-Reitsma/the-block/chain/governance"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	n, err := New(cfg, economics.DefaultParams(), 1_000_000_000, governance.NewRegistry(), []byte("test-node-key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func TestNewNodeWiresEverySubsystem(t *testing.T) {
	n := newTestNode(t)
	if n.Chain == nil || n.Market == nil || n.Economics == nil || n.Governance == nil || n.Overlay == nil || n.CertStore == nil {
		t.Fatalf("expected every subsystem wired, got %+v", n)
	}
}

func TestProduceBlockRunsFullPipeline(t *testing.T) {
	n := newTestNode(t)

	from := types.BytesToAddress([]byte{1})
	to := types.BytesToAddress([]byte{2})
	acct, err := n.Chain.Store.Account(from)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	acct.Balance = 10_000
	if err := n.Chain.Store.PutAccount(acct); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}

	tx := &types.SignedTransaction{Payload: types.TxPayload{From: from, To: to, Amount: 100, Fee: 130, Nonce: 0}}
	if err := n.Chain.AdmitTransaction(tx); err != nil {
		t.Fatalf("AdmitTransaction: %v", err)
	}

	inputs := map[economics.Market]economics.MarketInput{
		economics.MarketStorage: {Utilization: 0.5, AverageCostBlock: 1.0, ProviderMargin: 0.1},
		economics.MarketCompute: {Utilization: 0.5, AverageCostBlock: 1.0, ProviderMargin: 0.1},
		economics.MarketEnergy:  {Utilization: 0.5, AverageCostBlock: 1.0, ProviderMargin: 0.1},
		economics.MarketAd:     {Utilization: 0.5, AverageCostBlock: 1.0, ProviderMargin: 0.1},
	}

	block, err := n.ProduceBlock(inputs, 1000, 0, 1)
	if err != nil {
		t.Fatalf("ProduceBlock: %v", err)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected 1 transaction sealed into block, got %d", len(block.Transactions))
	}
	if !n.Chain.Store.Head().Equal(block.Hash) {
		t.Fatalf("expected head to advance past produced block")
	}
}

func TestPeerReputationCreatesOnDemand(t *testing.T) {
	n := newTestNode(t)
	rep := n.PeerReputation("peer-1", 0, 1000, 1, 5)
	rep.RecordMatch()
	if rep.Score() != 1 {
		t.Fatalf("expected score 1 after one match, got %d", rep.Score())
	}
	again := n.PeerReputation("peer-1", 0, 1000, 1, 5)
	if again != rep {
		t.Fatalf("expected same reputation tracker returned on repeat lookup")
	}
}
