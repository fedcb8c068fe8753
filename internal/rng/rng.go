// Package rng implements the kernel's pseudo-random source: a standard
// Mersenne Twister (MT19937), used to back /dev/random and /dev/urandom
// since the kernel core has no hardware entropy source to draw on.
//
// Grounded on original_source/src/rand.rs (RandomGenerator trait: seed,
// random_uint32, and the default range_uint32/gen_bytes implementations).
// The source's UMASK/LMASK were flagged in spec.md §9 as a possible bug;
// reading rand.rs directly shows this revision already carries the
// standard, mathematically correct constants (UMASK=0x80000000,
// LMASK=0x7fffffff for W=32, R=31), so no workaround is implemented here —
// see DESIGN.md.
package rng

const (
	n = 624
	m = 397
	r = 31

	matrixA = 0x9908b0df
	umask   = 0x80000000
	lmask   = 0x7fffffff

	u = 11
	s = 7
	b = 0x9d2c5680
	t = 15
	c = 0xefc60000
	l = 18

	f = 1812433253
)

// MT19937 is a Mersenne Twister generator. The zero value is not seeded;
// call Seed before drawing output.
type MT19937 struct {
	state [n]uint32
	index int
}

// Seed initializes the generator's state array from a single 32-bit seed,
// using the standard MT19937 state-initialization recurrence.
func (g *MT19937) Seed(seed uint32) {
	g.state[0] = seed
	for i := 1; i < n; i++ {
		prev := g.state[i-1]
		g.state[i] = f*(prev^(prev>>30)) + uint32(i)
	}
	g.index = n
}

// twist regenerates the entire state array, called whenever the index
// runs past the end of the current state.
func (g *MT19937) twist() {
	for i := 0; i < n; i++ {
		x := (g.state[i] & umask) | (g.state[(i+1)%n] & lmask)
		xA := x >> 1
		if x&1 != 0 {
			xA ^= matrixA
		}
		g.state[i] = g.state[(i+m)%n] ^ xA
	}
	g.index = 0
}

// RandomUint32 returns the next tempered 32-bit output of the generator.
func (g *MT19937) RandomUint32() uint32 {
	if g.index >= n {
		g.twist()
	}

	y := g.state[g.index]
	y ^= y >> u
	y ^= (y << s) & b
	y ^= (y << t) & c
	y ^= y >> l

	g.index++
	return y
}

// RangeUint32 returns a value in [lo, hi), mirroring range_uint32's default
// implementation (lo + rand % (hi - lo)). The modulo makes it slightly
// biased toward low values unless hi - lo divides 2^32.
func (g *MT19937) RangeUint32(lo, hi uint32) uint32 {
	if hi <= lo {
		return lo
	}
	return lo + g.RandomUint32()%(hi-lo)
}

// GenBytes fills buf with random bytes, drawn four at a time in big-endian
// order from RandomUint32, mirroring gen_bytes's chunking (including a
// partial final chunk taking only as many leading bytes as needed).
func (g *MT19937) GenBytes(buf []byte) {
	i := 0
	for i+4 <= len(buf) {
		word := g.RandomUint32()
		buf[i] = byte(word >> 24)
		buf[i+1] = byte(word >> 16)
		buf[i+2] = byte(word >> 8)
		buf[i+3] = byte(word)
		i += 4
	}
	if remaining := len(buf) - i; remaining > 0 {
		word := g.RandomUint32()
		var tmp [4]byte
		tmp[0] = byte(word >> 24)
		tmp[1] = byte(word >> 16)
		tmp[2] = byte(word >> 8)
		tmp[3] = byte(word)
		copy(buf[i:], tmp[:remaining])
	}
}
