package xsmvm

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Facade is the only surface the presentation layer sees. Operations
// are synchronous from the caller's perspective: at most one command
// is ever in flight on the child's stdin.
type Facade struct {
	proc    *process
	lr      *lineReader
	mem     *memIO
	cfg     Config
	workDir string
	ownsDir bool

	snap *Snapshot
}

// SpawnNew launches the XSM binary with the given argv under a
// line-buffered wrapper, waits for it to reach its first debug prompt,
// and returns a ready Facade. The child is started with its cwd set to
// a fresh session working directory, so the `mem` command's
// side-channel dump file lands somewhere memIO can find it even when
// multiple sessions run concurrently on the same machine.
func SpawnNew(argv []string, cfg Config) (*Facade, error) {
	workDir, err := newSessionDir("")
	if err != nil {
		return nil, fmt.Errorf("create session working directory: %w", err)
	}

	proc, stdout, err := spawnProcess(argv, workDir)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	lr := newLineReader(stdout, cfg.ChannelCapacity, cfg.IdleQuantum, cfg.LineTimeout)

	lines, alive := waitDebugPromptReady(proc, lr, cfg.SpawnGrace)
	if !alive || !looksLikeDebugPrompt(lines) {
		proc.kill()
		os.RemoveAll(workDir)
		return nil, &SpawnError{Reason: "failed to enter debug mode", Lines: lines}
	}

	f := &Facade{
		proc:    proc,
		lr:      lr,
		cfg:     cfg,
		workDir: workDir,
		ownsDir: true,
		snap:    &Snapshot{},
	}
	f.mem = &memIO{writeLine: f.writeLine, lr: lr, workDir: workDir, cfg: cfg}

	f.loadState(lines)
	return f, nil
}

// writeLine sends a single command line to the child's stdin.
func (f *Facade) writeLine(cmd string) error {
	_, err := fmt.Fprintf(f.proc.stdin, "%s\n", cmd)
	return err
}

// Step sends `step n` and drives a full state refresh. If the child
// has already exited before the command is sent, it only marks the
// snapshot halted; if the child exits right after the command, it
// marks the snapshot halted and refreshes status once from whatever
// output is buffered.
func (f *Facade) Step(n int) {
	if f.snap.Halted {
		return
	}
	if n <= 0 {
		n = 1
	}

	if f.proc.tryExited() {
		f.snap.Halted = true
		return
	}

	if err := f.writeLine(fmt.Sprintf("step %d", n)); err != nil {
		f.snap.recordError("send step command: %v", err)
		return
	}

	if f.proc.tryExited() {
		f.snap.Halted = true
		lines := drainNonBlocking(f.lr)
		f.refreshStatus(lines)
		return
	}

	f.loadState(nil)
}

// loadState refreshes status, then (if not halted) registers, then the
// page table, in that order since the page table read depends on the
// freshly-read PTBR/PTLR registers. Any subcomponent may record errors
// without aborting the refresh. If initial is non-nil, it is used as
// the first status drain instead of draining again (used right after
// the spawn handshake).
func (f *Facade) loadState(initial []string) {
	f.snap.Errors = nil

	lines := initial
	if lines == nil {
		lines = f.lr.drain()
	}
	f.refreshStatus(lines)

	if f.snap.Halted {
		return
	}

	f.refreshRegs()
	f.refreshPageTable()
}

func (f *Facade) refreshStatus(lines []string) {
	if len(lines) > 0 && isHaltLine(lines[0]) {
		f.snap.Halted = true
		f.snap.Status[0] = stripPromptResidue(lines[0])
		return
	}
	parseStatusBlock(f.snap, lines)
}

func (f *Facade) refreshRegs() {
	if err := f.writeLine("reg"); err != nil {
		f.snap.recordError("send reg command: %v", err)
		return
	}
	lines, err := f.lr.take(7)
	if err != nil {
		f.snap.recordError("read reg response: %v", err)
	}
	parseRegLines(f.snap, lines)
}

func (f *Facade) refreshPageTable() {
	snap := f.snap
	snap.PageTable = nil

	ptbr, err := strconv.Atoi(snap.Regs.PTBR())
	if err != nil {
		snap.recordError("%s", (&registerInvalidError{Name: "PTBR", Value: snap.Regs.PTBR()}).Error())
		return
	}
	ptlr, err := strconv.Atoi(snap.Regs.PTLR())
	if err != nil {
		snap.recordError("%s", (&registerInvalidError{Name: "PTLR", Value: snap.Regs.PTLR()}).Error())
		return
	}
	if ptbr < 0 || ptlr < 0 {
		snap.recordError("PTBR/PTLR must be non-negative: ptbr=%d ptlr=%d", ptbr, ptlr)
		return
	}

	words, err := f.mem.readMemRange(ptbr, ptbr+ptlr*2)
	if err != nil {
		snap.recordError("read page table: %v", err)
		return
	}
	table := make([]PageTableEntry, 0, ptlr)
	for i := 0; i+1 < len(words); i += 2 {
		table = append(table, PageTableEntry{Phy: words[i], Aux: words[i+1]})
	}
	snap.PageTable = table
}

// GetRegs returns the current register snapshot.
func (f *Facade) GetRegs() RegSnapshot { return f.snap.Regs }

// GetPageTable returns the current page table.
func (f *Facade) GetPageTable() []PageTableEntry {
	out := make([]PageTableEntry, len(f.snap.PageTable))
	copy(out, f.snap.PageTable)
	return out
}

// GetOutput returns accumulated program output lines.
func (f *Facade) GetOutput() []string {
	out := make([]string, len(f.snap.Output))
	copy(out, f.snap.Output)
	return out
}

// GetErrors returns the current diagnostic log.
func (f *Facade) GetErrors() []string {
	out := make([]string, len(f.snap.Errors))
	copy(out, f.snap.Errors)
	return out
}

// GetStatus returns the last three status lines, joined with newlines.
func (f *Facade) GetStatus() string {
	return f.snap.Status[0] + "\n" + f.snap.Status[1] + "\n" + f.snap.Status[2]
}

func (f *Facade) IsHalted() bool        { return f.snap.Halted }
func (f *Facade) IsNextHalt() bool      { return f.snap.IsNextHalt }
func (f *Facade) IsExceptionEdge() bool { return f.snap.IsExceptionEdge }
func (f *Facade) Mode() Mode            { return f.snap.Mode }

// ReadMemRange performs a physical byte-range read.
func (f *Facade) ReadMemRange(start, end int) []string {
	words, err := f.mem.readMemRange(start, end)
	if err != nil {
		f.snap.recordError("read_mem_range: %v", err)
		return nil
	}
	return words
}

// ReadMemRangeVir performs a virtual byte-range read, translating each
// page through the current page table; any translation failure
// short-circuits the read and returns an empty sequence.
func (f *Facade) ReadMemRangeVir(start, end int) []string {
	words, err := f.mem.readMemRangeVir(f.snap.PageTable, start, end)
	if err != nil {
		f.snap.recordError("read_mem_range_vir: %v", err)
		return nil
	}
	return words
}

// GetCode returns a window of at most maxLines decoded instructions
// surrounding the current IP.
func (f *Facade) GetCode(maxLines int) CodeWindow {
	return f.getCode(maxLines)
}

// Close terminates the child process and removes the session's
// working directory.
func (f *Facade) Close() error {
	err := f.proc.kill()
	if f.ownsDir {
		if rmErr := os.RemoveAll(f.workDir); rmErr != nil {
			slog.Warn("xsmvm: failed to remove session working directory", "dir", f.workDir, "err", rmErr)
		}
	}
	return err
}
