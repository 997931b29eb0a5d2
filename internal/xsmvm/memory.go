package xsmvm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// memIO bundles what the memory reader needs to send a command and
// read its side-channel dump: the child's stdin, its line reader, the
// working directory the `mem` file lands in (the same directory the
// child was spawned with as its cwd), and the configured page size /
// ack-line count.
type memIO struct {
	writeLine func(string) error
	lr        *lineReader
	workDir   string
	cfg       Config

	// readPageFn, when set, replaces the real mem-file round trip —
	// tests use it to script page contents without a live child
	// process or filesystem dump file.
	readPageFn func(page int) ([]string, error)
}

// readMemPage sends `mem <page>`, consumes the configured number of
// acknowledgement lines, then reads and parses the side-channel dump
// file into its content tokens.
func (m *memIO) readMemPage(page int) ([]string, error) {
	if m.readPageFn != nil {
		return m.readPageFn(page)
	}

	if err := m.writeLine(fmt.Sprintf("mem %d", page)); err != nil {
		return nil, fmt.Errorf("send mem command: %w", err)
	}
	if _, err := m.lr.take(m.cfg.MemAckLines); err != nil {
		return nil, fmt.Errorf("read mem ack: %w", err)
	}

	path := filepath.Join(m.workDir, "mem")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mem dump file %s: %w", path, err)
	}

	content := make([]string, 0, m.cfg.PageSize)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) != 2 {
			continue
		}
		content = append(content, parts[1])
	}
	return content, nil
}

// pageify splits a half-open byte range [start, end) into page
// coordinates: the page holding start, the page holding the last
// addressed byte, and the skip/take counts within those pages.
// Grounded on original_source/src/xsm.rs:_pageify, adapted to a
// half-open range (the original treats end as inclusive).
func pageify(start, end, pageSize int) (startPage, endPage, startSkip, endTake int) {
	startPage = start / pageSize
	startSkip = start - startPage*pageSize
	if end == start {
		return startPage, startPage, startSkip, 0
	}
	lastByte := end - 1
	endPage = lastByte / pageSize
	endTake = lastByte - endPage*pageSize + 1
	return startPage, endPage, startSkip, endTake
}

// readMemRange composes physical page reads into a single byte-range
// read over the half-open interval [start, end).
func (m *memIO) readMemRange(start, end int) ([]string, error) {
	if end <= start {
		return nil, nil
	}
	startPage, endPage, startSkip, endTake := pageify(start, end, m.cfg.PageSize)

	if startPage == endPage {
		page, err := m.readMemPage(startPage)
		if err != nil {
			return nil, err
		}
		return sliceTokens(page, startSkip, endTake), nil
	}

	var out []string
	first, err := m.readMemPage(startPage)
	if err != nil {
		return nil, err
	}
	out = append(out, sliceTokens(first, startSkip, len(first))...)

	for p := startPage + 1; p < endPage; p++ {
		mid, err := m.readMemPage(p)
		if err != nil {
			return nil, err
		}
		out = append(out, mid...)
	}

	last, err := m.readMemPage(endPage)
	if err != nil {
		return nil, err
	}
	out = append(out, sliceTokens(last, 0, endTake)...)
	return out, nil
}

// readMemRangeVir is the virtual variant of readMemRange: each virtual
// page index is resolved through the page table before the physical
// page is read. Any translation failure short-circuits the read and
// returns an empty sequence.
func (m *memIO) readMemRangeVir(pageTable []PageTableEntry, start, end int) ([]string, error) {
	if end <= start {
		return nil, nil
	}
	startPageVir, endPageVir, startSkip, endTake := pageify(start, end, m.cfg.PageSize)

	startPagePhy, err := virtualPageToPhysical(pageTable, startPageVir)
	if err != nil {
		return nil, err
	}

	if startPageVir == endPageVir {
		page, err := m.readMemPage(startPagePhy)
		if err != nil {
			return nil, err
		}
		return sliceTokens(page, startSkip, endTake), nil
	}

	var out []string
	first, err := m.readMemPage(startPagePhy)
	if err != nil {
		return nil, err
	}
	out = append(out, sliceTokens(first, startSkip, len(first))...)

	for pv := startPageVir + 1; pv < endPageVir; pv++ {
		phy, err := virtualPageToPhysical(pageTable, pv)
		if err != nil {
			return nil, err
		}
		mid, err := m.readMemPage(phy)
		if err != nil {
			return nil, err
		}
		out = append(out, mid...)
	}

	endPhy, err := virtualPageToPhysical(pageTable, endPageVir)
	if err != nil {
		return nil, err
	}
	last, err := m.readMemPage(endPhy)
	if err != nil {
		return nil, err
	}
	out = append(out, sliceTokens(last, 0, endTake)...)
	return out, nil
}

// sliceTokens returns tokens[lo:hi] (half-open), clamped to bounds.
func sliceTokens(tokens []string, lo, hi int) []string {
	if lo < 0 {
		lo = 0
	}
	if lo > len(tokens) {
		lo = len(tokens)
	}
	if hi > len(tokens) {
		hi = len(tokens)
	}
	if hi < lo {
		hi = lo
	}
	return tokens[lo:hi]
}
