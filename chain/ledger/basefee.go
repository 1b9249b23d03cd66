package ledger

// Base-fee adjustment follows EIP-1559's constant-target congestion
// controller: a block under half capacity eases it down, a block over half
// capacity tightens it, at a capped 1/8th step per block. Bytes used stands
// in for EIP-1559's gas used, since this ledger's fee unit is fee-per-byte
// rather than fee-per-gas.
const (
	BaseFeeMaxChangeDenominator = 8
	MinBaseFee                  = 1
)

// NextBaseFee computes the following block's base fee given the current
// block's byte usage and limit (gas_target = limit/2, matching EIP-1559).
func NextBaseFee(currentBaseFee, bytesUsed, byteLimit uint64) uint64 {
	if byteLimit == 0 {
		return currentBaseFee
	}
	target := byteLimit / 2
	if bytesUsed == target {
		return currentBaseFee
	}
	if bytesUsed > target {
		delta := bytesUsed - target
		change := currentBaseFee * delta / target / BaseFeeMaxChangeDenominator
		if change == 0 {
			change = 1
		}
		return currentBaseFee + change
	}
	delta := target - bytesUsed
	change := currentBaseFee * delta / target / BaseFeeMaxChangeDenominator
	if currentBaseFee <= change+MinBaseFee {
		return MinBaseFee
	}
	return currentBaseFee - change
}
