package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when CLI output contains no JSON payload.
var ErrNoJSON = errors.New("no JSON in command output")

// Runner executes a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs real processes. The context deadline kills the process.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
	}
	return out, nil
}

// CLI invokes the platform command-line tool.
type CLI struct {
	bin    string
	runner Runner
}

// NewCLI creates a CLI for bin. A nil runner uses ExecRunner.
func NewCLI(bin string, runner Runner) *CLI {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &CLI{bin: bin, runner: runner}
}

// JSON runs the CLI and decodes the JSON payload of its output into out.
func (c *CLI) JSON(ctx context.Context, out any, args ...string) error {
	raw, err := c.runner.Run(ctx, c.bin, args...)
	if err != nil {
		return err
	}
	payload, err := ExtractJSON(raw)
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.bin, strings.Join(args, " "), err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", c.bin, strings.Join(args, " "), err)
	}
	return nil
}

// Lines runs the CLI and returns each output line that carries a JSON
// object, ANSI-stripped and cut at its first '{'. Other lines are dropped.
func (c *CLI) Lines(ctx context.Context, args ...string) ([][]byte, error) {
	raw, err := c.runner.Run(ctx, c.bin, args...)
	if err != nil {
		return nil, err
	}
	var lines [][]byte
	for _, line := range bytes.Split(StripANSI(raw), []byte("\n")) {
		i := bytes.IndexByte(line, '{')
		if i < 0 {
			continue
		}
		lines = append(lines, bytes.TrimSpace(line[i:]))
	}
	return lines, nil
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07]*\x07`)

// StripANSI removes terminal escape sequences.
func StripANSI(b []byte) []byte {
	return ansiPattern.ReplaceAll(b, nil)
}

// ExtractJSON strips ANSI sequences, skips everything before the first '{'
// or '[', and returns exactly one JSON value, ignoring trailing output.
func ExtractJSON(out []byte) ([]byte, error) {
	clean := StripANSI(out)
	start := bytes.IndexAny(clean, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}

	var raw json.RawMessage
	if err := json.NewDecoder(bytes.NewReader(clean[start:])).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return raw, nil
}
