package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SeedBytes is the fixed seed length. A seed commits a round's entire price
// path, so it must be unpredictable before the round and disclosed after.
const SeedBytes = 32

// GenerateServerSeed returns a fresh hex-encoded 32-byte seed and its sha256
// commitment hash. The hash is published before the round starts; the seed is
// disclosed after settlement.
func GenerateServerSeed() (seed string, hash string, err error) {
	buf := make([]byte, SeedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to read random seed: %w", err)
	}

	seed = hex.EncodeToString(buf)
	return seed, HashSeed(seed), nil
}

// HashSeed computes the sha256 commitment for a seed.
func HashSeed(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// VerifySeed checks a disclosed seed against its published commitment.
func VerifySeed(seed, hash string) bool {
	if len(seed) != SeedBytes*2 {
		return false
	}
	if _, err := hex.DecodeString(seed); err != nil {
		return false
	}
	return HashSeed(seed) == hash
}
