package indexer

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 106, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []IndexRange{
		{From: 100, To: 102},
		{From: 102, To: 104},
		{From: 104, To: 106},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeRemainder(t *testing.T) {
	got, err := SplitRange(0, 5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []IndexRange{{From: 0, To: 2}, {From: 2, To: 4}, {From: 4, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
	if got[2].Len() != 1 {
		t.Fatalf("last range length = %d, want 1", got[2].Len())
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 6, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []IndexRange{{From: 5, To: 6}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeEmpty(t *testing.T) {
	got, err := SplitRange(7, 7, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no ranges, got %+v", got)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
