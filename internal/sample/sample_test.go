package sample

import (
	"fmt"
	"testing"

	"github.com/hyperifyio/goreply/internal/corpus"
)

type mapSource map[string][]corpus.ExemplarPair

func (m mapSource) Pairs(userID string) []corpus.ExemplarPair { return m[userID] }

func fivePairs() mapSource {
	pairs := make([]corpus.ExemplarPair, 0, 5)
	for i := 0; i < 5; i++ {
		pairs = append(pairs, corpus.ExemplarPair{Text: fmt.Sprintf("c%d", i), Reply: fmt.Sprintf("r%d", i)})
	}
	return mapSource{"u123": pairs}
}

func TestSample_LengthAndDistinct(t *testing.T) {
	src := fivePairs()
	s := NewWithSeed(1)
	for k := 0; k <= 7; k++ {
		for run := 0; run < 20; run++ {
			got := s.Sample(src, "u123", k)
			want := k
			if want > 5 {
				want = 5
			}
			if len(got) != want {
				t.Fatalf("k=%d: got %d items, want %d", k, len(got), want)
			}
			seen := map[string]bool{}
			for _, p := range got {
				if seen[p.Text] {
					t.Fatalf("k=%d: duplicate %q", k, p.Text)
				}
				seen[p.Text] = true
				if p.Reply != "r"+p.Text[1:] {
					t.Fatalf("item %+v not from the user's history", p)
				}
			}
		}
	}
}

func TestSample_MissingUserAndNonPositive(t *testing.T) {
	s := NewWithSeed(1)
	if got := s.Sample(fivePairs(), "nobody", 3); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
	if got := s.Sample(fivePairs(), "u123", -1); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestSample_IndependentDraws(t *testing.T) {
	src := fivePairs()
	s := NewWithSeed(42)
	first := fmt.Sprint(s.Sample(src, "u123", 3))
	for i := 0; i < 50; i++ {
		if fmt.Sprint(s.Sample(src, "u123", 3)) != first {
			return
		}
	}
	t.Fatal("50 consecutive draws were identical")
}
