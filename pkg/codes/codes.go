// Package codes generates default codes for vouchers and promotions.
package codes

import (
	"crypto/rand"
	"math/big"
)

const (
	alphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomLength = 6
)

// Generate returns a code of the form PREFIX-XXXXXX where X is a random
// character from [0-9A-Z].
func Generate(prefix string) string {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, randomLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return prefix + "-" + string(buf)
}
