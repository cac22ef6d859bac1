package datastructure

import "math/bits"

const BITSET_NONE Index = NONE

// Bitset is a fixed capacity set of indices backed by 64 bit words.
type Bitset struct {
	capacity Index
	words    []uint64
}

func NewBitset(capacity Index) *Bitset {
	return &Bitset{
		capacity: capacity,
		words:    make([]uint64, (capacity+63)/64),
	}
}

func (b *Bitset) Set(i Index) {
	b.words[i>>6] |= 1 << (i & 63)
}

func (b *Bitset) Unset(i Index) {
	b.words[i>>6] &^= 1 << (i & 63)
}

func (b *Bitset) Get(i Index) bool {
	return b.words[i>>6]&(1<<(i&63)) != 0
}

func (b *Bitset) Clear() {
	clear(b.words)
}

func (b *Bitset) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// NextSetBit returns the smallest set index >= from, or BITSET_NONE.
func (b *Bitset) NextSetBit(from Index) Index {
	if from >= b.capacity {
		return BITSET_NONE
	}
	wi := from >> 6
	w := b.words[wi] & (^uint64(0) << (from & 63))
	for {
		if w != 0 {
			i := wi<<6 + Index(bits.TrailingZeros64(w))
			if i >= b.capacity {
				return BITSET_NONE
			}
			return i
		}
		wi++
		if int(wi) >= len(b.words) {
			return BITSET_NONE
		}
		w = b.words[wi]
	}
}

// ForEach calls fn for every set index in increasing order. fn may unset the current index.
func (b *Bitset) ForEach(fn func(i Index)) {
	for i := b.NextSetBit(0); i != BITSET_NONE; i = b.NextSetBit(i + 1) {
		fn(i)
	}
}
