package engine

// bitset packs one flag per neuron.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) get(i int) bool {
	return b[i>>6]>>(uint(i)&63)&1 == 1
}

func (b bitset) set(i int) {
	b[i>>6] |= 1 << (uint(i) & 63)
}

func (b bitset) reset() {
	clear(b)
}

