package ext2fs

import "github.com/bits-and-blooms/bitset"

// bitmapFromBytes decodes an on-disk bitmap region into a bitset.BitSet,
// preserving ext2's "bit k of byte j is index 8j+k" convention (spec
// §3). bitset.BitSet already indexes bit i as (word i/64, bit i%64,
// LSB-first), which is the same little-endian-within-unit convention
// ext2 uses at the byte level, so a straight bit-by-bit copy is exact.
func bitmapFromBytes(b []byte, bits int64) *bitset.BitSet {
	bs := bitset.New(uint(bits))
	for byteIdx, by := range b {
		if int64(byteIdx)*8 >= bits {
			break
		}
		for k := 0; k < 8; k++ {
			idx := int64(byteIdx)*8 + int64(k)
			if idx >= bits {
				break
			}
			if by&(1<<uint(k)) != 0 {
				bs.Set(uint(idx))
			}
		}
	}
	return bs
}

// bitmapToBytes serializes a bitset.BitSet back into the on-disk
// byte-bitmap format, sized to ceil(bits/8) bytes.
func bitmapToBytes(bs *bitset.BitSet, bits int64) []byte {
	out := make([]byte, ceilDivBytes(bits))
	for i := int64(0); i < bits; i++ {
		if bs.Test(uint(i)) {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
