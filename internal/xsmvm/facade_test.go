package xsmvm

import (
	"io"
	"strconv"
	"strings"
	"testing"
	"time"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// writeLines writes each line terminated by "\n" to w, one at a time.
// Each call to io.WriteString blocks (on an unbuffered io.Pipe) until
// the lineReader's scanner has consumed it, so lines arrive at the
// reader in the exact order written.
func writeLines(w io.Writer, lines []string) {
	for _, l := range lines {
		io.WriteString(w, l+"\n")
	}
}

// newFakeFacade wires a Facade against an io.Pipe standing in for a
// real XSM child's stdout, with writes to stdin discarded (the fake
// child never reads its own commands back). readPageFn stubs the
// page-table read so refreshPageTable never touches the filesystem.
func newFakeFacade(t *testing.T, cfg Config, readPageFn func(int) ([]string, error)) (*Facade, io.Writer) {
	t.Helper()
	stdoutR, stdoutW := io.Pipe()
	lr := newLineReader(stdoutR, 100, cfg.IdleQuantum, cfg.LineTimeout)
	proc := &process{
		stdin: nopWriteCloser{io.Discard},
		done:  make(chan struct{}),
	}
	f := &Facade{proc: proc, lr: lr, cfg: cfg, snap: &Snapshot{}}
	f.mem = &memIO{writeLine: f.writeLine, lr: lr, cfg: cfg, readPageFn: readPageFn}
	return f, stdoutW
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IdleQuantum = 5 * time.Millisecond
	cfg.LineTimeout = 300 * time.Millisecond
	return cfg
}

// regLinesFor renders a register vector with IP/PTBR/PTLR set, and
// every other slot "0", into the 7-line reg response shape.
func regLinesFor(ip, ptbr, ptlr int) []string {
	var vals [regSlotCount]string
	for i := range vals {
		vals[i] = "0"
	}
	vals[slotIP] = strconv.Itoa(ip)
	vals[slotPTBR] = strconv.Itoa(ptbr)
	vals[slotPTLR] = strconv.Itoa(ptlr)
	return buildRegLines(vals)
}

func TestFacadeStepRefreshesFullSnapshot(t *testing.T) {
	cfg := testConfig()
	pageCalls := 0
	f, stdoutW := newFakeFacade(t, cfg, func(page int) ([]string, error) {
		pageCalls++
		words := make([]string, cfg.PageSize)
		for i := range words {
			words[i] = "0"
		}
		// page table: one mapped entry (phy=7, aux=0).
		words[0], words[1] = "7", "0"
		return words, nil
	})

	statusLines := []string{
		"debug> some program output",
		"Previous instruction at IP = 100, : MOV R0, R1",
		"Mode: USER",
		"Next instruction at IP = 102, : ADD R0, R1",
	}
	regLines := regLinesFor(102, 0, 1)

	go func() {
		writeLines(stdoutW, statusLines)
		time.Sleep(5 * cfg.IdleQuantum)
		writeLines(stdoutW, regLines)
	}()

	f.Step(1)

	if f.IsHalted() {
		t.Fatal("IsHalted() = true, want false")
	}
	if f.Mode() != ModeUser {
		t.Errorf("Mode() = %v, want ModeUser", f.Mode())
	}
	if got := f.GetOutput(); len(got) != 1 || got[0] != "some program output" {
		t.Errorf("GetOutput() = %v, want [\"some program output\"]", got)
	}
	regs := f.GetRegs()
	if regs.IP() != "102" {
		t.Errorf("IP() = %q, want 102", regs.IP())
	}
	pt := f.GetPageTable()
	if len(pt) != 1 || pt[0].Phy != "7" {
		t.Fatalf("GetPageTable() = %+v, want one entry with Phy=7", pt)
	}
	if pageCalls == 0 {
		t.Error("expected the page table to be read via readPageFn")
	}
	if errs := f.GetErrors(); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestFacadeStepDetectsHalt(t *testing.T) {
	cfg := testConfig()
	f, stdoutW := newFakeFacade(t, cfg, func(int) ([]string, error) { return nil, nil })

	go func() {
		writeLines(stdoutW, []string{"debug> Machine is halting."})
	}()

	f.Step(1)

	if !f.IsHalted() {
		t.Fatal("IsHalted() = false, want true")
	}
	if got := f.GetStatus(); !strings.Contains(got, "Machine is halting.") {
		t.Errorf("GetStatus() = %q, want it to contain the halt line", got)
	}

	// A second Step on an already-halted facade must be a no-op.
	f.Step(1)
	if !f.IsHalted() {
		t.Fatal("IsHalted() = false after second Step, want true")
	}
}

func TestFacadeStepTooFewStatusLinesRecordsErrorButSurvives(t *testing.T) {
	cfg := testConfig()
	cfg.LineTimeout = 20 * time.Millisecond // no reg lines will follow; fail fast
	f, stdoutW := newFakeFacade(t, cfg, func(int) ([]string, error) { return nil, nil })
	f.snap.Mode = ModeKernel

	go writeLines(stdoutW, []string{"Mode: KERNEL"})

	f.Step(1)

	if f.IsHalted() {
		t.Fatal("IsHalted() = true, want false")
	}
	if f.Mode() != ModeKernel {
		t.Errorf("Mode() = %v, want unchanged ModeKernel", f.Mode())
	}
	if errs := f.GetErrors(); len(errs) == 0 {
		t.Error("expected a recorded error for the truncated status block")
	}
}

func TestFacadeReadMemRangeSurfacesErrorsInsteadOfPanicking(t *testing.T) {
	cfg := testConfig()
	f, _ := newFakeFacade(t, cfg, func(int) ([]string, error) { return nil, errTestReadFailure })

	words := f.ReadMemRange(0, 10)
	if words != nil {
		t.Errorf("ReadMemRange() = %v, want nil on failure", words)
	}
	if errs := f.GetErrors(); len(errs) == 0 {
		t.Error("expected a recorded error for the failed memory read")
	}
}

var errTestReadFailure = &registerInvalidError{Name: "TEST", Value: "boom"}
