package node

import (
	"fmt"
	"log"

	"github.com/Ian-Reitsma/the-block/chain/economics"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

// ProduceBlock runs the full per-block pipeline: drain the mempool and
// apply transactions, drain compute-market receipts and fold them into
// the block body, run the economics engine over the block's market
// inputs, apply any governance proposals whose timelock has just elapsed,
// and finally seal the assembled block. This is the composition step the
// teacher's chain/node/blockchain.go AddBlock performs inline against its
// own package-global state; here it is an explicit method on Node driving
// each subsystem by reference, per the REDESIGN note against singleton
// globals.
func (n *Node) ProduceBlock(inputs map[economics.Market]economics.MarketInput, nonKYCVolumeBlock uint64, nowEpoch, timestampMs uint64) (*types.Block, error) {
	block, err := n.Chain.BuildBlock(n.Config.Lanes, n.Config.MaxTxsPerBlock, n.Config.ByteLimit, timestampMs)
	if err != nil {
		return nil, fmt.Errorf("node: produce block: build: %w", err)
	}

	n.Market.SetCurrentBlock(block.Index)
	receipts := n.drainComputeReceipts()

	snapshot := n.Economics.UpdateBlock(inputs, nonKYCVolumeBlock)
	reward := snapshot.BlockRewardPerBlock
	block.Coinbase = types.CoinbaseSplits{
		Block:      reward,
		Storage:    reward * uint64(snapshot.Subsidy.StorageShareBps) / 10_000,
		Compute:    reward * uint64(snapshot.Subsidy.ComputeShareBps) / 10_000,
		Industrial: reward * uint64(snapshot.Subsidy.EnergyShareBps) / 10_000,
	}
	tariffCollected := nonKYCVolumeBlock * uint64(snapshot.Tariff.TariffBps) / 10_000
	if tariffCollected > 0 {
		receipts = append(receipts, types.BlockReceipt{Treasury: &types.TreasuryEvent{
			Kind:   "tariff",
			Amount: tariffCollected,
		}})
	}
	block.Receipts = receipts

	n.applyDueProposals(nowEpoch)
	n.syncEconomicsFromGovernance()

	if err := n.Chain.Seal(block); err != nil {
		return nil, fmt.Errorf("node: produce block: seal: %w", err)
	}

	n.persistEconomicsHistory(snapshot, nowEpoch)
	return block, nil
}

// persistEconomicsHistory writes the retune state and this epoch's
// inflation snapshot to the governance history directory. Filesystem
// errors here are logged and swallowed: a failed history write must never
// abort block production.
func (n *Node) persistEconomicsHistory(snap economics.Snapshot, nowEpoch uint64) {
	if n.History == nil {
		return
	}
	if err := n.History.SaveKalman(n.Economics); err != nil {
		log.Printf("⚠️ node: persist kalman state: %v", err)
	}
	if err := n.History.SaveUtilHistory(n.Economics); err != nil {
		log.Printf("⚠️ node: persist util history: %v", err)
	}
	if nowEpoch != n.lastHistoryEpoch {
		n.lastHistoryEpoch = nowEpoch
		if err := n.History.WriteInflationEpoch(nowEpoch, snap); err != nil {
			log.Printf("⚠️ node: persist inflation epoch %d: %v", nowEpoch, err)
		}
	}
}

// drainComputeReceipts pulls every settled compute receipt and slash
// receipt off the market and wraps them in the block-level sum type.
func (n *Node) drainComputeReceipts() []types.BlockReceipt {
	computeReceipts := n.Market.DrainReceipts()
	slashReceipts := n.Market.DrainComputeSlashReceipts()

	out := make([]types.BlockReceipt, 0, len(computeReceipts)+len(slashReceipts))
	for i := range computeReceipts {
		out = append(out, types.BlockReceipt{Compute: &computeReceipts[i]})
	}
	for i := range slashReceipts {
		out = append(out, types.BlockReceipt{ComputeSlash: &slashReceipts[i]})
	}
	return out
}

// applyDueProposals activates any governance proposal whose timelock has
// elapsed as of nowEpoch. Proposals still in their voting window are left
// untouched; callers drive Tally separately once a proposal's voting
// deadline passes.
func (n *Node) applyDueProposals(nowEpoch uint64) {
	for id := uint64(1); ; id++ {
		if _, ok := n.Governance.ProposalByID(id); !ok {
			return
		}
		_, _ = n.Governance.Activate(id, nowEpoch)
	}
}
