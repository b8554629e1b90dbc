package tracker_test

import "math/big"

// wei returns the value as a big integer.
func wei(v int64) *big.Int {
	return new(big.Int).SetInt64(v)
}
