package troubleshoot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"

	"razer-doctor/internal/capability"
	"razer-doctor/internal/config"
	"razer-doctor/internal/executor"
	"razer-doctor/internal/release"
)

type toolResponse struct {
	result executor.Result
	err    error
}

// fakeSystem is an in-memory host. Paths present in dirs or files exist;
// tools without a response are reported as not installed.
type fakeSystem struct {
	goos     string
	env      map[string]string
	uid      int
	home     string
	homeErr  error
	release  string
	machine  string
	unameErr error
	binaries map[string]bool
	dirs     map[string]bool
	files    map[string]string
	globs    map[string][]string
	alive    map[int]bool
	tools    map[string]toolResponse
	panicOn  string

	calls []string
}

func (f *fakeSystem) record(call string) {
	f.calls = append(f.calls, call)
	if f.panicOn != "" && call == f.panicOn {
		panic("injected failure in " + call)
	}
}

func (f *fakeSystem) GOOS() string { return f.goos }

func (f *fakeSystem) Getenv(key string) string {
	f.record("getenv:" + key)
	return f.env[key]
}

func (f *fakeSystem) Getuid() int {
	f.record("getuid")
	return f.uid
}

func (f *fakeSystem) HomeDir() (string, error) {
	f.record("home")
	return f.home, f.homeErr
}

func (f *fakeSystem) Uname(ctx context.Context) (string, string, error) {
	f.record("uname")
	return f.release, f.machine, f.unameErr
}

func (f *fakeSystem) LookPath(name string) (string, error) {
	f.record("lookpath:" + name)
	if f.binaries[name] {
		return filepath.Join("/usr/bin", name), nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (f *fakeSystem) Exists(path string) bool {
	f.record("exists:" + path)
	if f.dirs[path] {
		return true
	}
	_, ok := f.files[path]
	return ok
}

func (f *fakeSystem) ReadFile(path string) ([]byte, error) {
	f.record("read:" + path)
	content, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	return []byte(content), nil
}

func (f *fakeSystem) Glob(pattern string) ([]string, error) {
	f.record("glob:" + pattern)
	return f.globs[pattern], nil
}

func (f *fakeSystem) ProcessAlive(ctx context.Context, pid int) (bool, error) {
	f.record(fmt.Sprintf("alive:%d", pid))
	return f.alive[pid], nil
}

func (f *fakeSystem) Run(ctx context.Context, name string, args ...string) (executor.Result, error) {
	f.record("run:" + name)
	response, ok := f.tools[name]
	if !ok {
		return executor.Result{}, fmt.Errorf("%s: %w", name, executor.ErrNotFound)
	}
	return response.result, response.err
}

func (f *fakeSystem) ran(name string) bool {
	for _, call := range f.calls {
		if call == "run:"+name {
			return true
		}
	}
	return false
}

type fakeVersions struct {
	latest release.Triple
	err    error
}

func (f fakeVersions) Latest(ctx context.Context) (release.Triple, error) {
	return f.latest, f.err
}

const (
	secureBootVar = "/sys/firmware/efi/efivars/SecureBoot-8be4df61-93ca-11d2-aa0d-00e098032b8c"
	logPath       = "/home/alice/.local/share/openrazer/logs/razer.log"
	pidPath       = "/run/user/1000/openrazer-daemon.pid"
)

const lsusbOutput = `Bus 001 Device 004: ID 1532:0203 Razer USA, Ltd BlackWidow
Bus 001 Device 003: ID 046D:C52B Logitech, Inc. Unifying Receiver
`

// healthyHost returns a host on which every check passes.
func healthyHost() *fakeSystem {
	return &fakeSystem{
		goos:     "linux",
		env:      map[string]string{"XDG_RUNTIME_DIR": "/run/user/1000"},
		uid:      1000,
		home:     "/home/alice",
		release:  "6.8.0-45-generic",
		machine:  "x86_64",
		binaries: map[string]bool{"openrazer-daemon": true},
		dirs: map[string]bool{
			"/var/lib/dkms/openrazer-driver/3.8.0":                           true,
			"/var/lib/dkms/openrazer-driver/kernel-6.8.0-45-generic-x86_64": true,
			"/sys/firmware/efi":                                              true,
		},
		files: map[string]string{
			pidPath: "4242\n",
			logPath: "2024-05-01 INFO daemon started\n",
		},
		globs: map[string][]string{
			"/sys/firmware/efi/efivars/SecureBoot*": {secureBootVar},
		},
		alive: map[int]bool{4242: true},
		tools: map[string]toolResponse{
			"modprobe": {result: executor.Result{}},
			"lsmod":    {result: executor.Result{Output: "Module Size Used by\nrazerkbd 73728 0\nhid 167936 1 razerkbd"}},
			"od":       {result: executor.Result{Output: "   6   0   0   0   0"}},
			"groups":   {result: executor.Result{Output: "alice wheel plugdev"}},
			"lsusb":    {result: executor.Result{Output: lsusbOutput}},
		},
	}
}

func healthyCaps() capability.Capabilities {
	vid, pid := 0x1532, 0x0203
	return capability.Capabilities{
		ClientAvailable: true,
		DriverVersion:   "3.8.0",
		Devices:         []capability.KnownDevice{{Name: "Razer BlackWidow", VendorID: &vid, ProductID: &pid}},
	}
}

func testOptions(versions VersionSource) Options {
	return Options{
		Config:   config.Default(),
		Versions: versions,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func currentVersions() fakeVersions {
	return fakeVersions{latest: release.Triple{Major: 3, Minor: 8, Patch: 0}}
}

var errNetwork = errors.New("dial tcp: lookup openrazer.github.io: no such host")
