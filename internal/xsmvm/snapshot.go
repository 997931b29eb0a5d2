// Package xsmvm implements the XSM control adapter: it spawns the XSM
// teaching VM's debug REPL as a child process, serializes commands
// across its stdin/stdout, parses its irregular textual responses into
// typed state, resolves virtual addresses through the guest page
// table, and exposes a pull-style query facade to a presentation layer.
package xsmvm

import "fmt"

// Mode is the guest's current privilege mode.
type Mode int

const (
	ModeKernel Mode = iota
	ModeUser
)

func (m Mode) String() string {
	if m == ModeUser {
		return "USER"
	}
	return "KERNEL"
}

// regSlotCount is the number of logical register slots: R0..R19 (20),
// P0..P3 (4), then BP, SP, IP, PTBR, PTLR, EIP, EC, EPN, EMA (9).
const regSlotCount = 20 + 4 + 9

// Register slot indices into RegSnapshot.slots, fixed by
// original_source/src/xsm.rs:ref_table and carried verbatim.
const (
	slotR0 = 0 // R0..R19 occupy 0..19
	slotP0 = 20 // P0..P3 occupy 20..23
	slotBP = 24
	slotSP = 25
	slotIP = 26
	slotPTBR = 27
	slotPTLR = 28
	slotEIP = 29
	slotEC = 30
	slotEPN = 31
	slotEMA = 32
)

// RegSnapshot holds the 33 register slots as raw textual tokens.
// Parsing to integers is deferred to consumers, because some fields
// (PTBR/PTLR when paging is off, EIP/EC/EPN/EMA outside an exception)
// can legally hold non-numeric placeholders.
type RegSnapshot struct {
	slots [regSlotCount]string
}

// R returns general register Ri (0..19) verbatim.
func (r RegSnapshot) R(i int) string {
	if i < 0 || i > 19 {
		return ""
	}
	return r.slots[slotR0+i]
}

// P returns port register Pi (0..3) verbatim.
func (r RegSnapshot) P(i int) string {
	if i < 0 || i > 3 {
		return ""
	}
	return r.slots[slotP0+i]
}

func (r RegSnapshot) BP() string   { return r.slots[slotBP] }
func (r RegSnapshot) SP() string   { return r.slots[slotSP] }
func (r RegSnapshot) IP() string   { return r.slots[slotIP] }
func (r RegSnapshot) PTBR() string { return r.slots[slotPTBR] }
func (r RegSnapshot) PTLR() string { return r.slots[slotPTLR] }
func (r RegSnapshot) EIP() string  { return r.slots[slotEIP] }
func (r RegSnapshot) EC() string   { return r.slots[slotEC] }
func (r RegSnapshot) EPN() string  { return r.slots[slotEPN] }
func (r RegSnapshot) EMA() string  { return r.slots[slotEMA] }

// Named returns (name, value) for every slot in fixed positional
// order, for display purposes (console/watch table rendering).
func (r RegSnapshot) Named() []NamedReg {
	out := make([]NamedReg, 0, regSlotCount)
	for i := 0; i < 20; i++ {
		out = append(out, NamedReg{Name: fmt.Sprintf("R%d", i), Value: r.slots[slotR0+i]})
	}
	for i := 0; i < 4; i++ {
		out = append(out, NamedReg{Name: fmt.Sprintf("P%d", i), Value: r.slots[slotP0+i]})
	}
	names := []string{"BP", "SP", "IP", "PTBR", "PTLR", "EIP", "EC", "EPN", "EMA"}
	for i, name := range names {
		out = append(out, NamedReg{Name: name, Value: r.slots[slotBP+i]})
	}
	return out
}

// NamedReg is one register slot paired with its display name.
type NamedReg struct {
	Name  string
	Value string
}

// PageTableEntry is one row of the guest page table: entry = (phy:
// token, aux: token).
type PageTableEntry struct {
	Phy string
	Aux string
}

// CodeWindow is the (base_addr, ip, lines) tuple get_code returns and
// last_code caches across calls.
type CodeWindow struct {
	BaseAddr int
	IP       int
	Lines    []string
}

// Snapshot is the in-memory reflection of the guest's state. It is
// rebuilt — in place, field by field — after each step.
type Snapshot struct {
	Mode       Mode
	Regs       RegSnapshot
	PageTable  []PageTableEntry
	Output     []string
	Errors     []string
	Status     [3]string // last three status lines verbatim
	LastCode   CodeWindow

	Halted          bool
	IsNextHalt      bool
	IsExceptionEdge bool
}

// recordError appends a non-fatal diagnostic to the unified error sink:
// a single ordered log lets any subcomponent fail without aborting the
// rest of a refresh, and without the caller needing its own error
// handling for each field.
func (s *Snapshot) recordError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}
