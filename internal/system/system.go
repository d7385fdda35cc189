// Package system is the narrow view of the host that the troubleshooter
// reads: environment, filesystem, process table, kernel identity and
// external tools. Checks only ever see the System interface, so tests
// substitute a fake host.
package system

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"

	"razer-doctor/internal/executor"
)

type System interface {
	// GOOS names the running operating system, as runtime.GOOS does.
	GOOS() string
	Getenv(key string) string
	Getuid() int
	HomeDir() (string, error)

	// Uname returns the kernel release and machine architecture.
	Uname(ctx context.Context) (release, machine string, err error)

	LookPath(name string) (string, error)
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	Glob(pattern string) ([]string, error)

	// ProcessAlive reports whether pid is present in the process table.
	ProcessAlive(ctx context.Context, pid int) (bool, error)

	// Run executes an external tool synchronously. A missing executable
	// yields an error wrapping executor.ErrNotFound.
	Run(ctx context.Context, name string, args ...string) (executor.Result, error)
}

type hostSystem struct {
	commandTimeout time.Duration
}

// Host returns the System backed by the real machine. Each external tool
// invocation is bounded by commandTimeout.
func Host(commandTimeout time.Duration) System {
	return &hostSystem{commandTimeout: commandTimeout}
}

func (h *hostSystem) GOOS() string {
	return runtime.GOOS
}

func (h *hostSystem) Getenv(key string) string {
	return os.Getenv(key)
}

func (h *hostSystem) Getuid() int {
	return os.Getuid()
}

func (h *hostSystem) HomeDir() (string, error) {
	return os.UserHomeDir()
}

func (h *hostSystem) Uname(ctx context.Context) (string, string, error) {
	release, err := host.KernelVersionWithContext(ctx)
	if err != nil {
		return "", "", err
	}
	machine, err := host.KernelArch()
	if err != nil {
		return "", "", err
	}
	return release, machine, nil
}

func (h *hostSystem) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (h *hostSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (h *hostSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (h *hostSystem) Glob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

func (h *hostSystem) ProcessAlive(ctx context.Context, pid int) (bool, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return false, nil
	}
	return process.PidExistsWithContext(ctx, int32(pid))
}

func (h *hostSystem) Run(ctx context.Context, name string, args ...string) (executor.Result, error) {
	return executor.Run(ctx, h.commandTimeout, name, args...)
}
