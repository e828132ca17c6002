package localof

import (
	"sync/atomic"
	"unsafe"
)

// hashIncrement is the difference between successively allocated hash
// codes. It is the closest odd integer to 2^32/phi, which spreads
// sequentially allocated codes near-uniformly over any power-of-two
// table size.
const hashIncrement = 0x61c88647

// hashSeq is the process-wide hash code allocator, shared by every
// LocalOf ever constructed. The counter is cache-line padded so the hot
// Add does not false-share with neighboring globals.
var hashSeq struct {
	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(atomic.Uint32{})%CacheLineSize) % CacheLineSize]byte

	n atomic.Uint32
}

// nextLocalHash advances the shared counter by hashIncrement and
// returns the new code. Lock-free, never fails.
func nextLocalHash() uint32 {
	return hashSeq.n.Add(hashIncrement)
}
