package qwt

import (
	"math/rand"
	"testing"
)

func TestBitVectorSetGet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n := uint64(1000)
	bv := NewBitVector(n)
	ref := make([]bool, n)
	for k := 0; k < 5000; k++ {
		i := uint64(rng.Intn(int(n)))
		v := rng.Intn(2) == 1
		bv.Set(i, v)
		ref[i] = v
	}
	for i := uint64(0); i < n; i++ {
		if bv.Get(i) != ref[i] {
			t.Fatalf("bit %d: got %v, want %v", i, bv.Get(i), ref[i])
		}
	}
}

func TestBitVectorBitsWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	n := uint64(513)
	bv := NewBitVector(n)
	ref := make([]bool, n)

	for k := 0; k < 2000; k++ {
		w := uint(1 + rng.Intn(64))
		if uint64(w) > n {
			w = uint(n)
		}
		i := uint64(rng.Intn(int(n - uint64(w) + 1)))
		v := rng.Uint64()
		bv.SetBits(i, w, v)
		for b := uint(0); b < w; b++ {
			ref[i+uint64(b)] = v>>b&1 == 1
		}

		got := bv.GetBits(i, w)
		want := uint64(0)
		for b := uint(0); b < w; b++ {
			if ref[i+uint64(b)] {
				want |= 1 << b
			}
		}
		if got != want {
			t.Fatalf("window [%d, %d+%d): got %#x, want %#x", i, i, w, got, want)
		}
	}

	// Windows straddling every word boundary.
	for i := uint64(32); i+64 <= n; i += 64 {
		got := bv.GetBits(i, 64)
		want := uint64(0)
		for b := uint64(0); b < 64; b++ {
			if ref[i+b] {
				want |= 1 << b
			}
		}
		if got != want {
			t.Fatalf("straddling window at %d: got %#x, want %#x", i, got, want)
		}
	}
}

func TestBitVectorPopcountRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := uint64(700)
	bv := NewBitVector(n)
	ref := make([]bool, n)
	for i := uint64(0); i < n; i++ {
		if rng.Intn(2) == 1 {
			bv.Set(i, true)
			ref[i] = true
		}
	}
	for k := 0; k < 1000; k++ {
		lo := uint64(rng.Intn(int(n + 1)))
		hi := lo + uint64(rng.Intn(int(n-lo+1)))
		want := uint64(0)
		for i := lo; i < hi; i++ {
			if ref[i] {
				want++
			}
		}
		if got := bv.PopcountRange(lo, hi); got != want {
			t.Fatalf("popcount [%d, %d): got %d, want %d", lo, hi, got, want)
		}
	}
}

func TestBitVectorOutOfRangePanics(t *testing.T) {
	bv := NewBitVector(10)
	for name, f := range map[string]func(){
		"get":      func() { bv.Get(10) },
		"set":      func() { bv.Set(10, true) },
		"getbits":  func() { bv.GetBits(5, 6) },
		"popcount": func() { bv.PopcountRange(0, 11) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: expected panic", name)
				}
			}()
			f()
		}()
	}
}
