package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/pairpad/backend/internal/buffer"
)

// maxCapturedOutput caps how much program output is retained per stream.
const maxCapturedOutput = 64 * 1024

// ExecRunner runs code by spawning an interpreter process and feeding the
// code on stdin. Stdout lines become log events, stderr lines error events.
// Output beyond maxCapturedOutput per stream is discarded oldest-first.
type ExecRunner struct {
	// Argv is the interpreter command line, e.g. ["node", "-"].
	Argv []string
}

// NewExecRunner creates an ExecRunner for the given interpreter command line.
func NewExecRunner(argv ...string) *ExecRunner {
	return &ExecRunner{Argv: argv}
}

// Run spawns the interpreter, streams its output as events and waits for it
// to exit. A non-zero exit is reported as an error event, not a Go error;
// only spawn failures and ctx expiry surface as errors.
func (r *ExecRunner) Run(ctx context.Context, code string, emit func(OutputEvent)) error {
	if len(r.Argv) == 0 {
		return fmt.Errorf("exec runner has no command")
	}

	cmd := exec.CommandContext(ctx, r.Argv[0], r.Argv[1:]...)
	cmd.Stdin = bytes.NewReader([]byte(code))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.Argv[0], err)
	}

	var emitMu sync.Mutex
	locked := func(event OutputEvent) {
		emitMu.Lock()
		emit(event)
		emitMu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(stdout, OutputLog, locked)
	}()
	go func() {
		defer wg.Done()
		streamLines(stderr, OutputError, locked)
	}()
	wg.Wait()

	err = cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			locked(OutputEvent{Kind: OutputError, Text: fmt.Sprintf("process exited with code %d", exitErr.ExitCode())})
			return nil
		}
		return fmt.Errorf("failed to run %s: %w", r.Argv[0], err)
	}
	return nil
}

// streamLines buffers a stream through a capped ring buffer and emits its
// surviving contents line by line once the stream ends. Buffering first
// keeps a flooding program from generating unbounded events.
func streamLines(stream io.Reader, kind OutputKind, emit func(OutputEvent)) {
	capped := buffer.NewRingBuffer(maxCapturedOutput)
	io.Copy(capped, stream)

	scanner := bufio.NewScanner(bytes.NewReader(capped.Bytes()))
	scanner.Buffer(make([]byte, 64*1024), maxCapturedOutput)
	for scanner.Scan() {
		if text := scanner.Text(); text != "" {
			emit(OutputEvent{Kind: kind, Text: text})
		}
	}
}
