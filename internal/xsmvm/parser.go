package xsmvm

import (
	"strconv"
	"strings"
)

// stripPromptResidue removes a leading "debug> " prompt fragment from
// the first line of a drained buffer — the child echoes its own prompt
// back onto the same line as the next bit of output.
func stripPromptResidue(line string) string {
	return strings.TrimPrefix(line, "debug> ")
}

// parseStatusBlock consumes a drained buffer and updates snap in
// place: any lines preceding the final three are program output; the
// final three are, in order, the "Previous instruction" line, the
// "Mode: ..." line, and the "Next instruction" line.
//
// If the buffer holds fewer than three lines, the status is not
// refreshed and a diagnostic is recorded, but the snapshot is not
// otherwise invalidated.
func parseStatusBlock(snap *Snapshot, lines []string) {
	if len(lines) == 0 {
		snap.recordError("status drain produced no lines")
		return
	}
	lines = append([]string(nil), lines...)
	lines[0] = stripPromptResidue(lines[0])

	if len(lines) < 3 {
		snap.recordError("status drain produced only %d line(s), expected at least 3", len(lines))
		return
	}

	tail := lines[len(lines)-3:]
	outputLines := lines[:len(lines)-3]
	snap.Output = append(snap.Output, outputLines...)

	snap.Status[0] = tail[0]
	snap.Status[1] = tail[1]
	snap.Status[2] = tail[2]

	parseModeLine(snap, tail[1])
	parseNextInstructionLine(snap, tail[2])
}

// parseModeLine extracts mode from character position 6 of the "Mode:
// KERNEL ..." / "Mode: USER ..." line. Any other character produces an
// error entry and leaves mode at its prior value rather than guessing.
func parseModeLine(snap *Snapshot, line string) {
	runes := []rune(line)
	if len(runes) <= 6 {
		snap.recordError("mode line too short to contain a mode character: %q", line)
		return
	}
	switch runes[6] {
	case 'K':
		snap.Mode = ModeKernel
	case 'U':
		snap.Mode = ModeUser
	default:
		snap.recordError("unexpected mode character %q in line %q", string(runes[6]), line)
	}
}

// parseNextInstructionLine derives is_next_halt and is_exception_edge
// from the "Next instruction at IP = N, : OPCODE ..." line.
func parseNextInstructionLine(snap *Snapshot, line string) {
	snap.IsNextHalt = false
	snap.IsExceptionEdge = false

	if idx := strings.LastIndex(line, ": "); idx >= 0 {
		opcode := strings.TrimSpace(line[idx+2:])
		snap.IsNextHalt = strings.HasPrefix(opcode, "HALT")
	} else {
		snap.recordError("next-instruction line has no opcode separator: %q", line)
	}

	const marker = "IP = "
	start := strings.Index(line, marker)
	if start < 0 {
		snap.recordError("next-instruction line has no IP marker: %q", line)
		return
	}
	start += len(marker)
	end := strings.IndexByte(line[start:], ',')
	if end < 0 {
		snap.recordError("next-instruction line has no IP terminator: %q", line)
		return
	}
	ipStr := strings.TrimSpace(line[start : start+end])
	ip, err := strconv.Atoi(ipStr)
	if err != nil {
		snap.recordError("next-instruction IP is not an integer: %q", ipStr)
		return
	}
	snap.IsExceptionEdge = ip == exceptionHandlerIP
}

// exceptionHandlerIP is the fixed address of XSM's exception handler
// entry.
const exceptionHandlerIP = 1024

// isHaltLine reports whether the first line of a post-step drain
// (after stripping debug> residue) signals that the machine has
// halted.
func isHaltLine(line string) bool {
	return strings.HasPrefix(stripPromptResidue(line), "Machine is halting.")
}

// regLineFieldSep is the field separator within a single reg response
// line: tab-separated "NAME: VALUE" tokens, blanks skipped.
const regLineFieldSep = "\t"

// parseRegLines assigns the fixed-order 33-slot register vector from
// exactly seven tab-separated reg-response lines. Parsing never fails
// at this layer: malformed tokens are stored verbatim.
func parseRegLines(snap *Snapshot, lines []string) {
	i := 0
	for _, line := range lines {
		for _, word := range strings.Split(line, regLineFieldSep) {
			word = strings.TrimRight(word, "\r\n")
			if word == "" {
				continue
			}
			parts := strings.SplitN(word, ": ", 2)
			if len(parts) != 2 {
				continue
			}
			if i >= regSlotCount {
				snap.recordError("reg response carried more than %d fields, discarding %q", regSlotCount, word)
				continue
			}
			snap.Regs.slots[i] = parts[1]
			i++
		}
	}
	if i < regSlotCount {
		snap.recordError("reg response carried only %d of %d expected fields", i, regSlotCount)
	}
}
