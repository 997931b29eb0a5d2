package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ormasoftchile/xsmdbg/internal/xsmvm"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP tool server exposing a debug session over stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s := newMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "xsmdbg mcp: %v\n", err)
		os.Exit(1)
	}
	return nil
}

// session holds the single live facade an MCP client drives; tool
// calls are serialized behind mu since the facade itself assumes one
// command in flight at a time.
type session struct {
	mu  sync.Mutex
	cfg xsmvm.Config
	f   *xsmvm.Facade
}

func newMCPServer(cfg xsmvm.Config) *server.MCPServer {
	sess := &session{cfg: cfg}

	s := server.NewMCPServer("xsmdbg", version, server.WithToolCapabilities(true))

	s.AddTool(
		mcp.NewTool("xsm/spawn",
			mcp.WithDescription("Spawn an XSM binary and start a debug session"),
			mcp.WithString("command", mcp.Required(), mcp.Description("Space-separated argv of the XSM binary to launch")),
		),
		sess.handleSpawn,
	)
	s.AddTool(
		mcp.NewTool("xsm/step",
			mcp.WithDescription("Single-step the active session"),
			mcp.WithNumber("count", mcp.Description("Number of steps (default 1)")),
		),
		sess.handleStep,
	)
	s.AddTool(
		mcp.NewTool("xsm/state",
			mcp.WithDescription("Return the active session's registers, status, output and errors"),
		),
		sess.handleState,
	)
	s.AddTool(
		mcp.NewTool("xsm/code",
			mcp.WithDescription("Return a window of decoded instructions around the current IP"),
			mcp.WithNumber("lines", mcp.Description("Number of instructions (default 10)")),
		),
		sess.handleCode,
	)
	s.AddTool(
		mcp.NewTool("xsm/mem",
			mcp.WithDescription("Read a physical or virtual byte range [start, end)"),
			mcp.WithNumber("start", mcp.Required()),
			mcp.WithNumber("end", mcp.Required()),
			mcp.WithBoolean("virtual", mcp.Description("Translate through the page table (default false)")),
		),
		sess.handleMem,
	)

	return s
}

func (sess *session) handleSpawn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	args := req.GetArguments()
	command, _ := args["command"].(string)
	if command == "" {
		return errResult("command argument is required"), nil
	}
	argv := strings.Fields(command)

	if sess.f != nil {
		sess.f.Close()
		sess.f = nil
	}

	f, err := xsmvm.SpawnNew(argv, sess.cfg)
	if err != nil {
		return errResult(err.Error()), nil
	}
	sess.f = f
	return textResult(fmt.Sprintf("spawned %q\n%s", command, f.GetStatus())), nil
}

func (sess *session) handleStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.f == nil {
		return errResult("no active session — call xsm/spawn first"), nil
	}
	n := 1
	if v, ok := req.GetArguments()["count"].(float64); ok && v > 0 {
		n = int(v)
	}
	sess.f.Step(n)
	return textResult(sess.f.GetStatus()), nil
}

func (sess *session) handleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.f == nil {
		return errResult("no active session — call xsm/spawn first"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s\nhalted: %v\n", sess.f.Mode(), sess.f.IsHalted())
	fmt.Fprintf(&b, "status:\n%s\n", sess.f.GetStatus())
	for _, reg := range sess.f.GetRegs().Named() {
		fmt.Fprintf(&b, "%s = %s\n", reg.Name, reg.Value)
	}
	if out := sess.f.GetOutput(); len(out) > 0 {
		fmt.Fprintf(&b, "output:\n%s\n", strings.Join(out, "\n"))
	}
	if errs := sess.f.GetErrors(); len(errs) > 0 {
		fmt.Fprintf(&b, "errors:\n%s\n", strings.Join(errs, "\n"))
	}
	return textResult(b.String()), nil
}

func (sess *session) handleCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.f == nil {
		return errResult("no active session — call xsm/spawn first"), nil
	}
	lines := 10
	if v, ok := req.GetArguments()["lines"].(float64); ok && v > 0 {
		lines = int(v)
	}
	win := sess.f.GetCode(lines)
	var b strings.Builder
	for i, l := range win.Lines {
		fmt.Fprintf(&b, "%6d  %s\n", win.BaseAddr+2*i, l)
	}
	return textResult(b.String()), nil
}

func (sess *session) handleMem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.f == nil {
		return errResult("no active session — call xsm/spawn first"), nil
	}
	args := req.GetArguments()
	start, _ := args["start"].(float64)
	end, _ := args["end"].(float64)
	virtual, _ := args["virtual"].(bool)

	var words []string
	if virtual {
		words = sess.f.ReadMemRangeVir(int(start), int(end))
	} else {
		words = sess.f.ReadMemRange(int(start), int(end))
	}
	return textResult(strings.Join(words, " ")), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(msg)}, IsError: true}
}
