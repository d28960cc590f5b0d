package crypto

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestGenerateServerSeed(t *testing.T) {
	seed, hash, err := GenerateServerSeed()
	if err != nil {
		t.Fatalf("GenerateServerSeed failed: %v", err)
	}

	t.Run("SeedIsHexOfFixedLength", func(t *testing.T) {
		if len(seed) != SeedBytes*2 {
			t.Errorf("seed length %d, want %d", len(seed), SeedBytes*2)
		}
		if _, err := hex.DecodeString(seed); err != nil {
			t.Errorf("seed is not valid hex: %v", err)
		}
	})

	t.Run("HashMatchesCommitment", func(t *testing.T) {
		if hash != HashSeed(seed) {
			t.Errorf("returned hash %s does not match HashSeed output", hash)
		}
		if !VerifySeed(seed, hash) {
			t.Error("freshly generated seed failed verification against its own hash")
		}
	})

	t.Run("SeedsAreUnique", func(t *testing.T) {
		other, _, err := GenerateServerSeed()
		if err != nil {
			t.Fatal(err)
		}
		if other == seed {
			t.Error("two generated seeds are identical")
		}
	})
}

func TestHashSeedStable(t *testing.T) {
	a := HashSeed("fixed-input")
	b := HashSeed("fixed-input")
	if a != b {
		t.Errorf("hash not stable: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("hash length %d, want 64 hex chars", len(a))
	}
}

func TestVerifySeedRejections(t *testing.T) {
	seed, hash, err := GenerateServerSeed()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("WrongHash", func(t *testing.T) {
		if VerifySeed(seed, HashSeed("something else")) {
			t.Error("accepted a hash for a different seed")
		}
	})

	t.Run("TamperedSeed", func(t *testing.T) {
		flipped := "0" + seed[1:]
		if flipped == seed {
			flipped = "1" + seed[1:]
		}
		if VerifySeed(flipped, hash) {
			t.Error("accepted a tampered seed")
		}
	})

	t.Run("WrongLength", func(t *testing.T) {
		short := seed[:10]
		if VerifySeed(short, HashSeed(short)) {
			t.Error("accepted a truncated seed")
		}
	})

	t.Run("NonHexSeed", func(t *testing.T) {
		bad := strings.Repeat("zz", SeedBytes)
		if VerifySeed(bad, HashSeed(bad)) {
			t.Error("accepted a non-hex seed")
		}
	})
}
