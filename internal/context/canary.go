package context

import "math/rand"

// newCanary generates the four-byte stack-protector fingerprint: three
// random nonzero bytes plus one zero byte at a random position (spec
// §4.5, §8 "Canary" invariant), grounded on the original AllocContext's
// exact algorithm; 1+getrand(255) for each byte, then one position
// forced to zero.
func newCanary() [4]byte {
	var c [4]byte
	for i := range c {
		c[i] = byte(1 + rand.Intn(255))
	}
	c[rand.Intn(4)] = 0
	return c
}
