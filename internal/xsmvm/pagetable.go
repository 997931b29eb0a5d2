package xsmvm

import "strconv"

// virtualPageToPhysical translates a virtual page number to a
// physical page number through the current page table.
func virtualPageToPhysical(pageTable []PageTableEntry, vpage int) (int, error) {
	if vpage < 0 || vpage >= len(pageTable) {
		return 0, &TranslationError{
			Kind:         VirtualMemoryOutOfBounds,
			Page:         vpage,
			PageTableLen: len(pageTable),
		}
	}
	entry := pageTable[vpage]
	phy, err := strconv.Atoi(entry.Phy)
	if err != nil {
		return 0, &TranslationError{Kind: InvalidPageTableEntry, Page: vpage, Entry: entry}
	}
	switch {
	case phy == -1:
		return 0, &TranslationError{Kind: VirtualMemoryNotPaged, Page: vpage, Entry: entry}
	case phy < -1:
		return 0, &TranslationError{Kind: InvalidPageTableEntry, Page: vpage, Entry: entry}
	default:
		return phy, nil
	}
}

// getValidMemRange locates addr's page and, if it is mapped, walks
// backward and forward across contiguously-mapped pages (those whose
// phy token parses as a non-negative integer), returning the half-open
// byte range [lo, hi) spanned by that contiguous run.
//
// The resolver relies solely on phy parseability, per DESIGN.md's Open
// Question decision; the aux token is not consulted here.
func getValidMemRange(pageTable []PageTableEntry, addr, pageSize int) (lo, hi int, ok bool) {
	page := addr / pageSize
	if page < 0 || page >= len(pageTable) {
		return 0, 0, false
	}
	if !isMappedPage(pageTable[page]) {
		return 0, 0, false
	}

	preceding := page
	for preceding > 0 && isMappedPage(pageTable[preceding-1]) {
		preceding--
	}
	succeeding := page
	for succeeding < len(pageTable)-1 && isMappedPage(pageTable[succeeding+1]) {
		succeeding++
	}

	return preceding * pageSize, (succeeding + 1) * pageSize, true
}

func isMappedPage(entry PageTableEntry) bool {
	v, err := strconv.Atoi(entry.Phy)
	return err == nil && v >= 0
}
