// Package accesstoken generates the opaque tokens embedded in recipient signing links.
package accesstoken

import (
	"crypto/rand"
	"fmt"
)

// Alphabet omits characters that are easy to confuse when read aloud or retyped (0/O/o, 1/I/l).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

// DefaultLength is the token length used for signing links.
const DefaultLength = 32

// acceptBelow is the largest multiple of len(Alphabet) that fits in a byte.
// Bytes at or above it are rejected so every symbol is equally likely.
const acceptBelow = 256 - 256%len(Alphabet)

// Generate returns a token of exactly length characters drawn uniformly from Alphabet.
// It panics if the system random source fails.
func Generate(length int) string {
	if length < 1 {
		return ""
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4+8)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("accesstoken: random source failed: %v", err))
		}
		for _, b := range buf {
			if int(b) >= acceptBelow {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out)
}
