package governance

import (
	"fmt"
	"strings"
)

// Policy option tables: each governs which runtime backends/transports/
// storage engines a node is permitted to select, encoded as a bitmask over
// this slice's index order. Order is part of the wire format — append-only.
var (
	RuntimeBackendOptions    = []string{"inhouse", "stub"}
	TransportProviderOptions = []string{"quinn", "s2n-quic"}
	StorageEngineOptions     = []string{"memory", "rocksdb", "rocksdb-compat", "inhouse"}
)

var (
	RuntimeBackendMaskAll    = maskAll(len(RuntimeBackendOptions))
	TransportProviderMaskAll = maskAll(len(TransportProviderOptions))
	StorageEngineMaskAll     = maskAll(len(StorageEngineOptions))
)

func maskAll(n int) int64 { return (int64(1) << uint(n)) - 1 }

const (
	// DefaultRuntimeBackendPolicy selects "inhouse" only.
	DefaultRuntimeBackendPolicy int64 = 1
	// DefaultTransportProviderPolicy selects "quinn" only.
	DefaultTransportProviderPolicy int64 = 1
	// DefaultStorageEnginePolicy selects "rocksdb-compat" and "inhouse".
	DefaultStorageEnginePolicy int64 = (1 << 2) | (1 << 3)
)

// EncodePolicy turns a list of option names into a bitmask over options,
// matching on name case-insensitively and rejecting unknown names or an
// empty resulting mask.
func EncodePolicy(names []string, options []string) (int64, error) {
	var mask int64
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		idx := indexOfFold(options, trimmed)
		if idx < 0 {
			return 0, fmt.Errorf("governance: unknown option: %s", trimmed)
		}
		mask |= 1 << uint(idx)
	}
	if mask == 0 {
		return 0, fmt.Errorf("governance: no options supplied")
	}
	return mask, nil
}

// DecodePolicy returns the option names selected by mask, in options order.
// A non-positive mask decodes to an empty (not nil) slice.
func DecodePolicy(mask int64, options []string) []string {
	allowed := []string{}
	if mask <= 0 {
		return allowed
	}
	for idx, name := range options {
		if mask&(1<<uint(idx)) != 0 {
			allowed = append(allowed, name)
		}
	}
	return allowed
}

// ValidatePolicy reports whether mask selects at least one option and sets
// no bit beyond options' length.
func ValidatePolicy(mask int64, options []string) bool {
	return mask > 0 && mask&^maskAll(len(options)) == 0
}

func indexOfFold(options []string, name string) int {
	for i, opt := range options {
		if strings.EqualFold(opt, name) {
			return i
		}
	}
	return -1
}

func EncodeRuntimeBackendPolicy(names []string) (int64, error) {
	return EncodePolicy(names, RuntimeBackendOptions)
}
func EncodeTransportProviderPolicy(names []string) (int64, error) {
	return EncodePolicy(names, TransportProviderOptions)
}
func EncodeStorageEnginePolicy(names []string) (int64, error) {
	return EncodePolicy(names, StorageEngineOptions)
}

func DecodeRuntimeBackendPolicy(mask int64) []string {
	return DecodePolicy(mask, RuntimeBackendOptions)
}
func DecodeTransportProviderPolicy(mask int64) []string {
	return DecodePolicy(mask, TransportProviderOptions)
}
func DecodeStorageEnginePolicy(mask int64) []string {
	return DecodePolicy(mask, StorageEngineOptions)
}

func ValidateRuntimeBackendPolicy(mask int64) bool {
	return ValidatePolicy(mask, RuntimeBackendOptions)
}
func ValidateTransportProviderPolicy(mask int64) bool {
	return ValidatePolicy(mask, TransportProviderOptions)
}
func ValidateStorageEnginePolicy(mask int64) bool {
	return ValidatePolicy(mask, StorageEngineOptions)
}
