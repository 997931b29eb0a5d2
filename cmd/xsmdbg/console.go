package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"github.com/expr-lang/expr"
	"github.com/mattn/go-runewidth"
	"github.com/ormasoftchile/xsmdbg/internal/xsmvm"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console [command...]",
	Short: "Open an interactive console driving a spawned XSM session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConsole,
}

// console wraps a facade with the REPL state: a readline instance and
// the output writer commands print to.
type console struct {
	facade *xsmvm.Facade
	rl     *readline.Instance
	out    io.Writer
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := xsmvm.SpawnNew(args, cfg)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	defer f.Close()

	completer := readline.NewPrefixCompleter(
		readline.PcItem("step"),
		readline.PcItem("regs"),
		readline.PcItem("page"),
		readline.PcItem("mem"),
		readline.PcItem("memvir"),
		readline.PcItem("code"),
		readline.PcItem("status"),
		readline.PcItem("output"),
		readline.PcItem("errors"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "xsmdbg> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	c := &console{facade: f, rl: rl, out: rl.Stdout()}

	fmt.Fprintf(c.out, "xsmdbg console — %s\n", strings.Join(args, " "))
	fmt.Fprintf(c.out, "Type 'help' for available commands, 'step' to single-step.\n\n")

	for {
		rl.SetPrompt(c.prompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "step", "s":
			c.handleStep(parts)
		case "regs", "r":
			c.handleRegs()
		case "page":
			c.handlePage()
		case "mem", "m":
			c.handleMem(parts, false)
		case "memvir", "mv":
			c.handleMem(parts, true)
		case "code", "c":
			c.handleCode(parts)
		case "status":
			fmt.Fprintln(c.out, c.facade.GetStatus())
		case "output", "o":
			for _, l := range c.facade.GetOutput() {
				fmt.Fprintln(c.out, l)
			}
		case "errors", "e":
			for _, l := range c.facade.GetErrors() {
				fmt.Fprintln(c.out, l)
			}
		case "help", "?":
			c.handleHelp()
		case "quit", "q":
			fmt.Fprintln(c.out, "Exiting console.")
			return nil
		default:
			fmt.Fprintf(c.out, "Unknown command: %q. Type 'help' for available commands.\n", parts[0])
		}
	}
}

func (c *console) prompt() string {
	if c.facade.IsHalted() {
		return "xsmdbg[halted]> "
	}
	return fmt.Sprintf("xsmdbg[%s]> ", c.facade.Mode())
}

func (c *console) handleStep(parts []string) {
	n := 1
	if len(parts) > 1 {
		if v, err := strconv.Atoi(parts[1]); err == nil {
			n = v
		}
	}
	c.facade.Step(n)
	fmt.Fprintln(c.out, c.facade.GetStatus())
}

// handleRegs prints named registers in two fixed-width columns,
// aligned with go-runewidth so register values of varying byte length
// don't stagger the columns.
func (c *console) handleRegs() {
	named := c.facade.GetRegs().Named()
	const col = 18
	for i := 0; i < len(named); i += 2 {
		left := fmt.Sprintf("%s = %s", named[i].Name, named[i].Value)
		line := left + strings.Repeat(" ", max(col-runewidth.StringWidth(left), 1))
		if i+1 < len(named) {
			line += fmt.Sprintf("%s = %s", named[i+1].Name, named[i+1].Value)
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *console) handlePage() {
	for i, e := range c.facade.GetPageTable() {
		fmt.Fprintf(c.out, "page %4d  phy=%s aux=%s\n", i, e.Phy, e.Aux)
	}
}

// handleMem evaluates its start/end arguments as expr-lang expressions
// so the operator can reference the current IP, e.g. `mem ip ip+64`.
func (c *console) handleMem(parts []string, virtual bool) {
	if len(parts) != 3 {
		fmt.Fprintln(c.out, "usage: mem <start> <end>  (or memvir <start> <end>)")
		return
	}
	start, err := c.evalAddr(parts[1])
	if err != nil {
		fmt.Fprintf(c.out, "start: %v\n", err)
		return
	}
	end, err := c.evalAddr(parts[2])
	if err != nil {
		fmt.Fprintf(c.out, "end: %v\n", err)
		return
	}

	var words []string
	if virtual {
		words = c.facade.ReadMemRangeVir(start, end)
	} else {
		words = c.facade.ReadMemRange(start, end)
	}
	fmt.Fprintln(c.out, strings.Join(words, " "))
}

func (c *console) handleCode(parts []string) {
	n := 10
	if len(parts) > 1 {
		if v, err := strconv.Atoi(parts[1]); err == nil {
			n = v
		}
	}
	win := c.facade.GetCode(n)
	for i, line := range win.Lines {
		addr := win.BaseAddr + 2*i
		marker := "  "
		if addr == win.IP {
			marker = "=>"
		}
		fmt.Fprintf(c.out, "%s %6d  %s\n", marker, addr, line)
	}
}

// evalAddr compiles addr as an expr-lang expression with the current
// register set bound into its environment, so expressions like
// "ip+4" or "ptbr" resolve against live state.
func (c *console) evalAddr(addr string) (int, error) {
	if v, err := strconv.Atoi(addr); err == nil {
		return v, nil
	}

	env := c.regEnv()
	program, err := expr.Compile(addr, expr.Env(env))
	if err != nil {
		return 0, fmt.Errorf("invalid address expression %q: %w", addr, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", addr, err)
	}
	switch v := out.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expression %q did not evaluate to a number", addr)
	}
}

// regEnv exposes the current registers as integers for expr-lang
// address expressions, falling back to 0 for any register that isn't
// currently a valid integer (e.g. immediately after spawn).
func (c *console) regEnv() map[string]any {
	toInt := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}
	regs := c.facade.GetRegs()
	return map[string]any{
		"bp":   toInt(regs.BP()),
		"sp":   toInt(regs.SP()),
		"ip":   toInt(regs.IP()),
		"ptbr": toInt(regs.PTBR()),
		"ptlr": toInt(regs.PTLR()),
	}
}

const helpText = `# xsmdbg console

| command             | description                                  |
|---------------------|-----------------------------------------------|
| ` + "`step [n]`" + `       | single-step n times (default 1)              |
| ` + "`regs`" + `            | print named registers                        |
| ` + "`page`" + `            | print the current page table                 |
| ` + "`mem a b`" + `         | print physical words in [a, b)               |
| ` + "`memvir a b`" + `      | print virtual words in [a, b), page-translated |
| ` + "`code [n]`" + `        | print n instructions around the current IP   |
| ` + "`status`" + `          | print the last status block                  |
| ` + "`output`" + `          | print accumulated program output             |
| ` + "`errors`" + `          | print the diagnostic log                     |
| ` + "`quit`" + `            | exit the console                             |

Addresses accepted by ` + "`mem`/`memvir`" + ` may be expressions over
the current registers, e.g. ` + "`mem ip ip+64`" + `.
`

func (c *console) handleHelp() {
	rendered, err := glamour.Render(helpText, "dark")
	if err != nil {
		fmt.Fprintln(c.out, helpText)
		return
	}
	fmt.Fprint(c.out, rendered)
}
