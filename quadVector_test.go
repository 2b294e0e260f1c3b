package qwt

import (
	"math/rand"
	"testing"
)

func TestQuadVectorSetGet(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	n := uint64(1000)
	qv := NewQuadVector(n)
	ref := make([]uint8, n)
	for i := uint64(0); i < n; i++ {
		s := uint8(rng.Intn(4))
		qv.Set(i, s)
		ref[i] = s
	}
	for i := uint64(0); i < n; i++ {
		got, ok := qv.Get(i)
		if !ok || got != ref[i] {
			t.Fatalf("symbol %d: got (%d, %v), want (%d, true)", i, got, ok, ref[i])
		}
	}
	if _, ok := qv.Get(n); ok {
		t.Fatalf("Get(%d) on length-%d vector should report absence", n, n)
	}
}

func lanesOf(word uint64) [lanesPerWord]uint8 {
	var lanes [lanesPerWord]uint8
	for i := range lanes {
		lanes[i] = uint8(word>>(2*i)) & 3
	}
	return lanes
}

func TestPop2(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for k := 0; k < 2000; k++ {
		word := rng.Uint64()
		lanes := lanesOf(word)
		total := uint64(0)
		for s := uint8(0); s < 4; s++ {
			want := uint64(0)
			for _, l := range lanes {
				if l == s {
					want++
				}
			}
			if got := pop2(word, s); got != want {
				t.Fatalf("pop2(%#x, %d): got %d, want %d", word, s, got, want)
			}
			total += want
		}
		if total != lanesPerWord {
			t.Fatalf("lane counts of %#x sum to %d", word, total)
		}
	}
}

func TestPop2Prefix(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	for k := 0; k < 500; k++ {
		word := rng.Uint64()
		lanes := lanesOf(word)
		for r := uint64(0); r <= lanesPerWord; r++ {
			for s := uint8(0); s < 4; s++ {
				want := uint64(0)
				for _, l := range lanes[:r] {
					if l == s {
						want++
					}
				}
				if got := pop2Prefix(word, s, r); got != want {
					t.Fatalf("pop2Prefix(%#x, %d, %d): got %d, want %d", word, s, r, got, want)
				}
			}
		}
	}
}

func TestSelect2InWord(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for k := 0; k < 500; k++ {
		word := rng.Uint64()
		lanes := lanesOf(word)
		for s := uint8(0); s < 4; s++ {
			j := uint64(0)
			for lane, l := range lanes {
				if l != s {
					continue
				}
				j++
				if got := select2InWord(word, s, j); got != uint64(lane) {
					t.Fatalf("select2InWord(%#x, %d, %d): got %d, want %d", word, s, j, got, lane)
				}
			}
		}
	}
}
