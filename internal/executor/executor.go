package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNotFound is returned when the executable is not on the search path.
var ErrNotFound = errors.New("executable not found")

// DefaultTimeout bounds commands run without an explicit deadline.
const DefaultTimeout = 15 * time.Second

type Result struct {
	Command   string
	Output    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// Succeeded is true when the command exited with status zero.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Run executes name with args and captures stdout followed by stderr.
// A non-zero exit status is reported in Result.ExitCode, not as an error;
// errors mean the command could not be started or did not finish.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	command := strings.TrimSpace(name + " " + strings.Join(args, " "))

	path, err := exec.LookPath(name)
	if err != nil {
		return Result{Command: command, Timestamp: start}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" && !strings.HasSuffix(output, "\n") {
			output += "\n"
		}
		output += stderr.String()
	}
	output = strings.TrimSuffix(output, "\n")

	result := Result{
		Command:   command,
		Output:    output,
		Duration:  time.Since(start),
		Timestamp: start,
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("%s: %w", command, ctxErr)
	}

	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			result.ExitCode = exitError.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("%s: %w", command, err)
	}

	return result, nil
}
