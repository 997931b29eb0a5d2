package xsmvm

import (
	"strconv"
	"testing"
)

func TestParseStatusBlock(t *testing.T) {
	t.Run("well formed block with leading output", func(t *testing.T) {
		snap := &Snapshot{}
		lines := []string{
			"debug> some program output",
			"another output line",
			"Previous instruction at IP = 100, : MOV R0, R1",
			"Mode: USER",
			"Next instruction at IP = 102, : ADD R0, R1",
		}
		parseStatusBlock(snap, lines)

		if len(snap.Errors) != 0 {
			t.Fatalf("unexpected errors: %v", snap.Errors)
		}
		if len(snap.Output) != 2 {
			t.Fatalf("output = %v, want 2 lines", snap.Output)
		}
		if snap.Output[0] != "some program output" {
			t.Errorf("output[0] = %q, want prompt residue stripped", snap.Output[0])
		}
		if snap.Mode != ModeUser {
			t.Errorf("mode = %v, want ModeUser", snap.Mode)
		}
		if snap.IsNextHalt {
			t.Error("IsNextHalt = true, want false")
		}
		if snap.IsExceptionEdge {
			t.Error("IsExceptionEdge = true, want false")
		}
	})

	t.Run("too few lines records error without invalidating snapshot", func(t *testing.T) {
		snap := &Snapshot{Mode: ModeUser}
		parseStatusBlock(snap, []string{"Mode: KERNEL"})

		if len(snap.Errors) != 1 {
			t.Fatalf("errors = %v, want exactly 1", snap.Errors)
		}
		if snap.Mode != ModeUser {
			t.Errorf("mode = %v, want unchanged ModeUser", snap.Mode)
		}
	})

	t.Run("empty drain records error", func(t *testing.T) {
		snap := &Snapshot{}
		parseStatusBlock(snap, nil)
		if len(snap.Errors) != 1 {
			t.Fatalf("errors = %v, want exactly 1", snap.Errors)
		}
	})
}

func TestParseModeLine(t *testing.T) {
	tests := []struct {
		line    string
		want    Mode
		wantErr bool
	}{
		{"Mode: KERNEL", ModeKernel, false},
		{"Mode: USER", ModeUser, false},
		{"Mode: ?????", ModeKernel, true},
		{"short", ModeKernel, true},
	}
	for _, tt := range tests {
		snap := &Snapshot{Mode: ModeKernel}
		parseModeLine(snap, tt.line)
		if snap.Mode != tt.want {
			t.Errorf("parseModeLine(%q) mode = %v, want %v", tt.line, snap.Mode, tt.want)
		}
		gotErr := len(snap.Errors) > 0
		if gotErr != tt.wantErr {
			t.Errorf("parseModeLine(%q) error = %v, want %v", tt.line, gotErr, tt.wantErr)
		}
	}
}

func TestParseNextInstructionLine(t *testing.T) {
	t.Run("halt opcode", func(t *testing.T) {
		snap := &Snapshot{}
		parseNextInstructionLine(snap, "Next instruction at IP = 50, : HALT")
		if !snap.IsNextHalt {
			t.Error("IsNextHalt = false, want true")
		}
	})

	t.Run("exception edge at handler IP", func(t *testing.T) {
		snap := &Snapshot{}
		parseNextInstructionLine(snap, "Next instruction at IP = 1024, : MOV R0, R1")
		if !snap.IsExceptionEdge {
			t.Error("IsExceptionEdge = false, want true")
		}
	})

	t.Run("ordinary instruction", func(t *testing.T) {
		snap := &Snapshot{}
		parseNextInstructionLine(snap, "Next instruction at IP = 10, : ADD R0, R1")
		if snap.IsNextHalt || snap.IsExceptionEdge {
			t.Errorf("got halt=%v edge=%v, want both false", snap.IsNextHalt, snap.IsExceptionEdge)
		}
	})

	t.Run("malformed line records errors", func(t *testing.T) {
		snap := &Snapshot{}
		parseNextInstructionLine(snap, "garbage")
		if len(snap.Errors) == 0 {
			t.Error("expected at least one recorded error")
		}
	})
}

func TestIsHaltLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Machine is halting.", true},
		{"debug> Machine is halting.", true},
		{"Previous instruction at IP = 1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isHaltLine(tt.line); got != tt.want {
			t.Errorf("isHaltLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestParseRegLines(t *testing.T) {
	t.Run("full round trip", func(t *testing.T) {
		snap := &Snapshot{}
		var vals [regSlotCount]string
		for i := range vals {
			vals[i] = "0"
		}
		vals[slotIP] = "42"
		vals[slotPTBR] = "100"
		vals[slotPTLR] = "4"

		lines := buildRegLines(vals)
		parseRegLines(snap, lines)

		if len(snap.Errors) != 0 {
			t.Fatalf("unexpected errors: %v", snap.Errors)
		}
		if snap.Regs.IP() != "42" {
			t.Errorf("IP = %q, want 42", snap.Regs.IP())
		}
		if snap.Regs.PTBR() != "100" {
			t.Errorf("PTBR = %q, want 100", snap.Regs.PTBR())
		}
		if snap.Regs.R(0) != "0" {
			t.Errorf("R0 = %q, want 0", snap.Regs.R(0))
		}
	})

	t.Run("short response records error", func(t *testing.T) {
		snap := &Snapshot{}
		parseRegLines(snap, []string{"R0: 1\tR1: 2"})
		if len(snap.Errors) == 0 {
			t.Error("expected error for truncated reg response")
		}
	})
}

// buildRegLines renders a full 33-slot register vector into the
// tab-separated 7-line shape parseRegLines expects.
func buildRegLines(vals [regSlotCount]string) []string {
	names := make([]string, 0, regSlotCount)
	for i := 0; i < 20; i++ {
		names = append(names, "R"+strconv.Itoa(i))
	}
	for i := 0; i < 4; i++ {
		names = append(names, "P"+strconv.Itoa(i))
	}
	names = append(names, "BP", "SP", "IP", "PTBR", "PTLR", "EIP", "EC", "EPN", "EMA")

	const perLine = 5
	var lines []string
	for i := 0; i < len(names); i += perLine {
		end := i + perLine
		if end > len(names) {
			end = len(names)
		}
		var line string
		for j := i; j < end; j++ {
			if j > i {
				line += regLineFieldSep
			}
			line += names[j] + ": " + vals[j]
		}
		lines = append(lines, line)
	}
	return lines
}
