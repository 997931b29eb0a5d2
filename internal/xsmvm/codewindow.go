package xsmvm

import "strconv"

// getCode returns a window of at most maxLines decoded instructions
// surrounding the current IP. Each XSM instruction occupies two
// consecutive words, so the window spans 2*maxLines addresses. On any
// failure it records a diagnostic and returns the previous window
// unchanged rather than an empty or partial one.
func (f *Facade) getCode(maxLines int) CodeWindow {
	snap := f.snap

	ip, err := strconv.Atoi(snap.Regs.IP())
	if err != nil {
		snap.recordError("get_code: IP is not an integer: %q", snap.Regs.IP())
		return snap.LastCode
	}

	span := 2 * maxLines
	half := span / 2

	var start, end int
	if snap.Mode == ModeUser {
		lo, hi, ok := getValidMemRange(snap.PageTable, ip, f.cfg.PageSize)
		if !ok {
			snap.recordError("get_code: IP %d not found in a mapped page", ip)
			return snap.LastCode
		}
		start = max(ip-half, lo)
		end = min(ip+span-half, hi)
	} else {
		start = max(ip-half, 0)
		end = min(ip+span-half, f.cfg.KernelMemorySentinel)
	}

	start = roundUpEven(start)
	end = roundDownEven(end)
	if end < start {
		end = start
	}

	var words []string
	if snap.Mode == ModeUser {
		words, err = f.mem.readMemRangeVir(snap.PageTable, start, end)
	} else {
		words, err = f.mem.readMemRange(start, end)
	}
	if err != nil {
		snap.recordError("get_code: %v", err)
		return snap.LastCode
	}

	lines := pairWords(words)
	win := CodeWindow{BaseAddr: start, IP: ip, Lines: lines}
	snap.LastCode = win
	return win
}

// pairWords groups words into pairs, concatenating each pair into one
// textual instruction. A trailing unpaired word is dropped —
// instruction boundaries are always even, so a real range never
// produces one.
func pairWords(words []string) []string {
	out := make([]string, 0, len(words)/2)
	for i := 0; i+1 < len(words); i += 2 {
		out = append(out, words[i]+words[i+1])
	}
	return out
}

func roundUpEven(v int) int {
	if v%2 != 0 {
		return v + 1
	}
	return v
}

func roundDownEven(v int) int {
	if v%2 != 0 {
		return v - 1
	}
	return v
}
