package xsmvm

import (
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// process is the child-process side of the supervisor: captured
// stdin/stdout streams plus a way to observe termination without
// blocking. Spawning is factored out of the rest of the adapter so
// tests can substitute a scripted stand-in wired through io.Pipe
// without execing a real XSM binary — the same dependency-injection
// shape pkg/tools/jsonrpc.go uses for its jsonrpcProcess (stdin
// io.WriteCloser + buffered stdout reader, independent of how the
// process was started).
type process struct {
	stdin io.WriteCloser
	done  chan struct{} // closed when the child has exited
	kill  func() error
	wait  func() error
}

// tryExited reports whether the child has already exited, without
// blocking, so a step can detect a dead child instead of hanging on
// a command it will never answer.
func (p *process) tryExited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// spawnProcess launches the XSM binary under a line-buffering wrapper
// — without it, the child's stdout sits in a full kernel pipe buffer
// indefinitely instead of flushing per line, stalling every read. It
// tries `stdbuf --output=L <argv>` first, the same wrapper
// original_source/src/xsm.rs uses, and falls back to the raw argv
// (with a logged warning) if stdbuf isn't on PATH — it's a
// Linux/coreutils tool and may not exist on every target.
//
// workDir becomes the child's cwd, so its `mem` side-channel dump file
// lands where memIO expects to find it rather than in xsmdbg's own
// working directory.
func spawnProcess(argv []string, workDir string) (*process, io.Reader, error) {
	if len(argv) == 0 {
		return nil, nil, &SpawnError{Reason: "empty command"}
	}

	var cmd *exec.Cmd
	if stdbufPath, err := exec.LookPath("stdbuf"); err == nil {
		args := append([]string{"--output=L"}, argv...)
		cmd = exec.Command(stdbufPath, args...)
	} else {
		slog.Warn("xsmvm: stdbuf not found, spawning without line-buffering wrapper", "command", argv[0])
		cmd = exec.Command(argv[0], argv[1:]...)
	}
	cmd.Dir = workDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, &SpawnError{Reason: "create stdin pipe: " + err.Error()}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, &SpawnError{Reason: "create stdout pipe: " + err.Error()}
	}

	if err := cmd.Start(); err != nil {
		if isNotFoundErr(err) {
			return nil, nil, &CommandNotFoundError{Command: argv[0], Err: err}
		}
		return nil, nil, &SpawnError{Reason: "start: " + err.Error()}
	}

	done := make(chan struct{})
	waitErrCh := make(chan error, 1)
	go func() {
		waitErrCh <- cmd.Wait()
		close(done)
	}()

	p := &process{
		stdin: stdin,
		done:  done,
		kill: func() error {
			if cmd.Process == nil {
				return nil
			}
			return cmd.Process.Kill()
		},
		wait: func() error {
			<-done
			return <-waitErrCh
		},
	}
	return p, stdout, nil
}

func isNotFoundErr(err error) bool {
	if err == exec.ErrNotFound {
		return true
	}
	var execErr *exec.Error
	return asExecError(err, &execErr)
}

func asExecError(err error, target **exec.Error) bool {
	for err != nil {
		if e, ok := err.(*exec.Error); ok {
			*target = e
			return true
		}
		unwrap, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrap.Unwrap()
	}
	return false
}

// waitDebugPromptReady blocks for up to grace, giving the child a
// chance to crash immediately instead of looking alive forever, and
// reports whatever lines it produced and whether it's still running
// once the deadline passes.
func waitDebugPromptReady(p *process, lr *lineReader, grace time.Duration) (lines []string, alive bool) {
	deadline := time.After(grace)
	var collected []string
	for {
		select {
		case <-deadline:
			return collected, !p.tryExited()
		case <-p.done:
			// Drain whatever made it through before exit.
			collected = append(collected, drainNonBlocking(lr)...)
			return collected, false
		case line := <-lr.lines:
			collected = append(collected, line)
		}
	}
}

func drainNonBlocking(lr *lineReader) []string {
	var out []string
	for {
		select {
		case line, ok := <-lr.lines:
			if !ok {
				return out
			}
			out = append(out, line)
		default:
			return out
		}
	}
}

// looksLikeDebugPrompt reports whether lines contain evidence that XSM
// reached its first debug prompt: either the literal prompt glyph or
// the start of a status block.
func looksLikeDebugPrompt(lines []string) bool {
	for _, l := range lines {
		if strings.Contains(l, "debug>") || strings.HasPrefix(l, "Previous instruction at IP =") {
			return true
		}
	}
	return false
}
