package xsmvm

import (
	"errors"
	"testing"
)

func TestVirtualPageToPhysical(t *testing.T) {
	table := []PageTableEntry{
		{Phy: "5", Aux: "0"},
		{Phy: "-1", Aux: "0"},
		{Phy: "garbage", Aux: "0"},
		{Phy: "-2", Aux: "0"},
	}

	t.Run("mapped page resolves", func(t *testing.T) {
		phy, err := virtualPageToPhysical(table, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if phy != 5 {
			t.Errorf("phy = %d, want 5", phy)
		}
	})

	t.Run("not paged", func(t *testing.T) {
		_, err := virtualPageToPhysical(table, 1)
		var terr *TranslationError
		if !errors.As(err, &terr) || terr.Kind != VirtualMemoryNotPaged {
			t.Fatalf("got %v, want VirtualMemoryNotPaged", err)
		}
	})

	t.Run("unparsable entry is invalid", func(t *testing.T) {
		_, err := virtualPageToPhysical(table, 2)
		var terr *TranslationError
		if !errors.As(err, &terr) || terr.Kind != InvalidPageTableEntry {
			t.Fatalf("got %v, want InvalidPageTableEntry", err)
		}
	})

	t.Run("negative below -1 is invalid", func(t *testing.T) {
		_, err := virtualPageToPhysical(table, 3)
		var terr *TranslationError
		if !errors.As(err, &terr) || terr.Kind != InvalidPageTableEntry {
			t.Fatalf("got %v, want InvalidPageTableEntry", err)
		}
	})

	t.Run("out of bounds", func(t *testing.T) {
		_, err := virtualPageToPhysical(table, 99)
		var terr *TranslationError
		if !errors.As(err, &terr) || terr.Kind != VirtualMemoryOutOfBounds {
			t.Fatalf("got %v, want VirtualMemoryOutOfBounds", err)
		}
	})
}

func TestGetValidMemRange(t *testing.T) {
	const pageSize = 512

	mapped := func(n string) PageTableEntry { return PageTableEntry{Phy: n} }
	unmapped := PageTableEntry{Phy: "-1"}

	t.Run("unmapped page fails", func(t *testing.T) {
		table := []PageTableEntry{unmapped, unmapped}
		_, _, ok := getValidMemRange(table, 100, pageSize)
		if ok {
			t.Fatal("expected failure for unmapped page")
		}
	})

	t.Run("out of bounds addr fails", func(t *testing.T) {
		table := []PageTableEntry{mapped("0")}
		_, _, ok := getValidMemRange(table, pageSize*5, pageSize)
		if ok {
			t.Fatal("expected failure for out-of-bounds address")
		}
	})

	t.Run("walks contiguous mapped run in both directions", func(t *testing.T) {
		table := []PageTableEntry{
			unmapped,
			mapped("10"), // page 1
			mapped("11"), // page 2
			mapped("12"), // page 3 (addr's page)
			mapped("13"), // page 4
			unmapped,
		}
		lo, hi, ok := getValidMemRange(table, 3*pageSize+50, pageSize)
		if !ok {
			t.Fatal("expected success")
		}
		if lo != 1*pageSize {
			t.Errorf("lo = %d, want %d", lo, 1*pageSize)
		}
		if hi != 5*pageSize {
			t.Errorf("hi = %d, want %d (end of last mapped page, half-open)", hi, 5*pageSize)
		}
	})

	t.Run("single mapped page returns its own half-open span", func(t *testing.T) {
		table := []PageTableEntry{mapped("0")}
		lo, hi, ok := getValidMemRange(table, 10, pageSize)
		if !ok {
			t.Fatal("expected success")
		}
		if lo != 0 || hi != pageSize {
			t.Errorf("got [%d, %d), want [0, %d)", lo, hi, pageSize)
		}
	})
}
