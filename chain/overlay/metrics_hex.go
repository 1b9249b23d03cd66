package overlay

import (
	"github.com/holiman/uint256"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// MetricsHex renders a peer's counters as 0x-prefixed hex strings, the
// same wire convention transaction.go's JSON marshaling uses via
// holiman/uint256 for every numeric field it exposes over RPC.
type MetricsHex struct {
	Requests        string
	BytesSent       string
	ReputationScore string
	ThrottledUntil  string
}

// HexEncodeMetrics converts the plain-integer counters on m into their hex
// wire form.
func HexEncodeMetrics(m *types.PeerMetrics) MetricsHex {
	return MetricsHex{
		Requests:        uint256.NewInt(m.Requests).Hex(),
		BytesSent:       uint256.NewInt(m.BytesSent).Hex(),
		ReputationScore: signedHex(m.ReputationScore),
		ThrottledUntil:  signedHex(m.ThrottledUntil),
	}
}

// signedHex renders a possibly-negative int64 as hex, since uint256.Int
// only accepts non-negative magnitudes.
func signedHex(v int64) string {
	if v < 0 {
		return "-" + uint256.NewInt(uint64(-v)).Hex()
	}
	return uint256.NewInt(uint64(v)).Hex()
}
