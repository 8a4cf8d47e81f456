package ingest

import (
	"errors"
	"strings"
	"testing"
)

func TestChunkParamValidation(t *testing.T) {
	if _, err := Chunk("abc", 0, 0); !errors.Is(err, ErrInvalidChunkSize) {
		t.Fatalf("Chunk(size=0) = %v, want ErrInvalidChunkSize", err)
	}
	if _, err := Chunk("abc", 10, -1); !errors.Is(err, ErrInvalidOverlap) {
		t.Fatalf("Chunk(overlap=-1) = %v, want ErrInvalidOverlap", err)
	}
	if _, err := Chunk("abc", 10, 10); !errors.Is(err, ErrInvalidOverlap) {
		t.Fatalf("Chunk(overlap=size) = %v, want ErrInvalidOverlap", err)
	}
}

func TestChunkEmptyInput(t *testing.T) {
	got, err := Chunk("", 100, 10)
	if err != nil {
		t.Fatalf("Chunk(\"\") error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Chunk(\"\") = %d segments, want 0", len(got))
	}
}

func TestChunkShorterThanSize(t *testing.T) {
	got, err := Chunk("short text", 100, 10)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(got) != 1 || got[0].Text != "short text" {
		t.Fatalf("Chunk() = %+v, want single full segment", got)
	}
}

func TestChunkCountFormula(t *testing.T) {
	// For text longer than one chunk, the segment count must equal
	// ceil((n - overlap) / (size - overlap)).
	tests := []struct {
		n, size, overlap int
	}{
		{100, 50, 10},
		{1000, 100, 0},
		{1000, 100, 50},
		{999, 100, 25},
		{101, 100, 50},
		{5000, 1000, 50},
	}
	for _, tt := range tests {
		text := strings.Repeat("a", tt.n)
		got, err := Chunk(text, tt.size, tt.overlap)
		if err != nil {
			t.Fatalf("Chunk(n=%d,size=%d,overlap=%d) error: %v", tt.n, tt.size, tt.overlap, err)
		}
		step := tt.size - tt.overlap
		want := (tt.n - tt.overlap + step - 1) / step
		if len(got) != want {
			t.Errorf("Chunk(n=%d,size=%d,overlap=%d) = %d segments, want %d",
				tt.n, tt.size, tt.overlap, len(got), want)
		}
	}
}

func TestChunkOverlapContinuity(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	got, err := Chunk(text, 10, 3)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	// Each segment starts size-overlap runes after the previous start, so
	// the last overlap runes of one segment open the next.
	for i := 1; i < len(got); i++ {
		prev := []rune(got[i-1].Text)
		cur := []rune(got[i].Text)
		tail := string(prev[len(prev)-3:])
		head := string(cur[:3])
		if tail != head {
			t.Errorf("segment %d: overlap mismatch, tail %q head %q", i, tail, head)
		}
	}
	// Concatenating with overlaps removed reconstructs the input.
	var rebuilt strings.Builder
	for i, seg := range got {
		runes := []rune(seg.Text)
		if i == 0 {
			rebuilt.WriteString(seg.Text)
		} else {
			rebuilt.WriteString(string(runes[3:]))
		}
	}
	if rebuilt.String() != text {
		t.Errorf("reconstructed %q, want %q", rebuilt.String(), text)
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("deterministic input ", 100)
	a, _ := Chunk(text, 120, 30)
	b, _ := Chunk(text, 120, 30)
	if len(a) != len(b) {
		t.Fatalf("runs disagree on count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("segment %d differs between runs", i)
		}
	}
}

func TestChunkMultibyteBoundary(t *testing.T) {
	text := strings.Repeat("測試中文內容", 50)
	got, err := Chunk(text, 100, 10)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	for i, seg := range got {
		if !strings.ContainsRune("測試中文內容", []rune(seg.Text)[0]) {
			t.Fatalf("segment %d starts mid-character: %q", i, seg.Text[:4])
		}
	}
}
