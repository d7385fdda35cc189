package troubleshoot

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"razer-doctor/internal/capability"
	"razer-doctor/internal/executor"
	"razer-doctor/internal/release"
	"razer-doctor/internal/report"
)

func run(t *testing.T, sys *fakeSystem, caps capability.Capabilities, versions VersionSource) report.Diagnosis {
	t.Helper()
	return Run(context.Background(), sys, caps, testOptions(versions))
}

func completed(t *testing.T, d report.Diagnosis) report.Report {
	t.Helper()
	if d.Kind != report.KindCompleted {
		t.Fatalf("Kind = %v, want completed (message: %s)", d.Kind, d.Message)
	}
	return *d.Report
}

func outcomeOf(t *testing.T, r report.Report, id string) report.Outcome {
	t.Helper()
	check, ok := r.Find(id)
	if !ok {
		t.Fatalf("check %s missing from report", id)
	}
	return check.Outcome
}

func ids(r report.Report) []string {
	out := make([]string, len(r.Checks))
	for i, check := range r.Checks {
		out[i] = check.ID
	}
	return out
}

func TestRun_NotApplicable(t *testing.T) {
	sys := healthyHost()
	sys.goos = "darwin"

	d := run(t, sys, healthyCaps(), currentVersions())

	if d.Kind != report.KindNotApplicable {
		t.Fatalf("Kind = %v, want not_applicable", d.Kind)
	}
	if d.Report != nil {
		t.Error("not applicable diagnosis should carry no report")
	}
	if len(sys.calls) != 0 {
		t.Errorf("no check should touch the host, got calls %v", sys.calls)
	}
}

func TestRun_HealthyHost(t *testing.T) {
	r := completed(t, run(t, healthyHost(), healthyCaps(), currentVersions()))

	want := []string{
		CheckDaemonInstalled,
		CheckDaemonRunning,
		CheckClientLibrary,
		CheckDKMSSources,
		CheckDKMSBuilt,
		CheckModuleProbe,
		CheckModuleLoaded,
		CheckSecureBoot,
		CheckGroupMembership,
		CheckLogPermissions,
		CheckUnsupportedHardware,
		CheckLatestVersion,
	}
	if got := ids(r); !reflect.DeepEqual(got, want) {
		t.Fatalf("check order = %v, want %v", got, want)
	}
	for _, check := range r.Checks {
		if check.Outcome != report.Passed {
			t.Errorf("%s = %v, want passed", check.ID, check.Outcome)
		}
		if len(check.Suggestions) == 0 {
			t.Errorf("%s has no suggestions", check.ID)
		}
	}

	names := make(map[string]bool)
	for _, check := range r.Checks {
		if names[check.Name] {
			t.Errorf("duplicate check name %q", check.Name)
		}
		names[check.Name] = true
	}
}

func TestRun_Idempotent(t *testing.T) {
	first := run(t, healthyHost(), healthyCaps(), currentVersions())
	second := run(t, healthyHost(), healthyCaps(), currentVersions())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("runs on unchanged state differ:\n%+v\n%+v", first.Report, second.Report)
	}
}

func TestRun_ClientUnavailable(t *testing.T) {
	r := completed(t, run(t, healthyHost(), capability.Capabilities{}, currentVersions()))

	if outcomeOf(t, r, CheckClientLibrary) != report.Failed {
		t.Error("client-library should fail")
	}
	for _, id := range []string{CheckDKMSSources, CheckDKMSBuilt, CheckUnsupportedHardware, CheckLatestVersion} {
		if _, ok := r.Find(id); ok {
			t.Errorf("%s should be omitted without the client library", id)
		}
	}
	if outcomeOf(t, r, CheckModuleProbe) != report.Passed {
		t.Error("independent checks should still run")
	}
}

func TestRun_DaemonRunning(t *testing.T) {
	t.Run("no pid file", func(t *testing.T) {
		sys := healthyHost()
		delete(sys.files, pidPath)
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckDaemonRunning) != report.Failed {
			t.Error("missing pid file should fail")
		}
	})

	t.Run("stale pid", func(t *testing.T) {
		sys := healthyHost()
		sys.alive = nil
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckDaemonRunning) != report.Failed {
			t.Error("dead pid should fail")
		}
	})

	t.Run("falls back to uid runtime dir", func(t *testing.T) {
		sys := healthyHost()
		sys.env = nil
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckDaemonRunning) != report.Passed {
			t.Error("pid file under /run/user/<uid> should be found")
		}
	})

	t.Run("relative runtime dir", func(t *testing.T) {
		sys := healthyHost()
		sys.env = map[string]string{"XDG_RUNTIME_DIR": "run/user"}
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckDaemonRunning) != report.Indeterminate {
			t.Error("malformed XDG_RUNTIME_DIR should be indeterminate")
		}
	})

	t.Run("malformed pid file is fatal", func(t *testing.T) {
		sys := healthyHost()
		sys.files[pidPath] = "not-a-pid\n"
		d := run(t, sys, healthyCaps(), currentVersions())
		if d.Kind != report.KindFatal {
			t.Fatalf("Kind = %v, want fatal", d.Kind)
		}
		if d.Report != nil {
			t.Error("fatal diagnosis must not carry a partial report")
		}
		if !strings.Contains(d.Message, CheckDaemonRunning) {
			t.Errorf("message should name the check: %s", d.Message)
		}
		if sys.ran("modprobe") {
			t.Error("no check should run after a fault")
		}
	})
}

func TestRun_ModuleTools(t *testing.T) {
	t.Run("probe fails", func(t *testing.T) {
		sys := healthyHost()
		sys.tools["modprobe"] = toolResponse{result: executor.Result{ExitCode: 1, Output: "modprobe: FATAL: Module razerkbd not found"}}
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckModuleProbe) != report.Failed {
			t.Error("non-zero modprobe exit should fail")
		}
	})

	t.Run("module not loaded", func(t *testing.T) {
		sys := healthyHost()
		sys.tools["lsmod"] = toolResponse{result: executor.Result{Output: "Module Size Used by\nhid 167936 0"}}
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckModuleLoaded) != report.Failed {
			t.Error("module missing from lsmod should fail")
		}
	})

	t.Run("tools missing", func(t *testing.T) {
		sys := healthyHost()
		delete(sys.tools, "modprobe")
		delete(sys.tools, "groups")
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckModuleProbe) != report.Indeterminate {
			t.Error("missing modprobe should be indeterminate")
		}
		if outcomeOf(t, r, CheckGroupMembership) != report.Indeterminate {
			t.Error("missing groups should be indeterminate")
		}
	})

	t.Run("not in group", func(t *testing.T) {
		sys := healthyHost()
		sys.tools["groups"] = toolResponse{result: executor.Result{Output: "alice wheel"}}
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		check, _ := r.Find(CheckGroupMembership)
		if check.Outcome != report.Failed {
			t.Error("missing group should fail")
		}
		if !strings.Contains(strings.Join(check.Suggestions, "\n"), "$ sudo gpasswd -a $USER plugdev") {
			t.Errorf("suggestions should include the gpasswd command: %v", check.Suggestions)
		}
	})
}

func TestRun_DKMSBuilt(t *testing.T) {
	t.Run("build missing", func(t *testing.T) {
		sys := healthyHost()
		delete(sys.dirs, "/var/lib/dkms/openrazer-driver/kernel-6.8.0-45-generic-x86_64")

		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))

		check, _ := r.Find(CheckDKMSBuilt)
		if check.Outcome != report.Failed {
			t.Error("missing build dir should fail")
		}
		if check.Suggestions[2] != "$ sudo dkms install -m openrazer-driver/3.8.0" {
			t.Errorf("dkms suggestion = %q", check.Suggestions[2])
		}
		if _, ok := r.Find(CheckUnsupportedHardware); ok {
			t.Error("unsupported-hardware requires a built driver")
		}
	})

	t.Run("uname fails", func(t *testing.T) {
		sys := healthyHost()
		sys.unameErr = errors.New("uname: exec format error")

		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))

		if outcomeOf(t, r, CheckDKMSBuilt) != report.Indeterminate {
			t.Error("unknown kernel release should be indeterminate")
		}
		if _, ok := r.Find(CheckUnsupportedHardware); ok {
			t.Error("unsupported-hardware requires a confirmed build")
		}
		if _, ok := r.Find(CheckLatestVersion); !ok {
			t.Error("later checks should still run")
		}
	})
}

func TestRun_SecureBoot(t *testing.T) {
	t.Run("no efi", func(t *testing.T) {
		sys := healthyHost()
		delete(sys.dirs, "/sys/firmware/efi")
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if _, ok := r.Find(CheckSecureBoot); ok {
			t.Error("secure-boot should be omitted without EFI")
		}
	})

	t.Run("variable missing", func(t *testing.T) {
		sys := healthyHost()
		sys.globs = nil
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckSecureBoot) != report.Indeterminate {
			t.Error("missing variable should be indeterminate")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		r := completed(t, run(t, healthyHost(), healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckSecureBoot) != report.Passed {
			t.Error("last byte 0 should pass")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		sys := healthyHost()
		sys.tools["od"] = toolResponse{result: executor.Result{Output: "   6   0   0   0   1"}}
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckSecureBoot) != report.Failed {
			t.Error("last byte 1 should fail")
		}
	})

	t.Run("od missing", func(t *testing.T) {
		sys := healthyHost()
		delete(sys.tools, "od")
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckSecureBoot) != report.Indeterminate {
			t.Error("missing od should be indeterminate")
		}
	})

	t.Run("unreadable od output is fatal", func(t *testing.T) {
		sys := healthyHost()
		sys.tools["od"] = toolResponse{result: executor.Result{Output: "6 0 0 0 x"}}
		d := run(t, sys, healthyCaps(), currentVersions())
		if d.Kind != report.KindFatal {
			t.Errorf("Kind = %v, want fatal", d.Kind)
		}
	})
}

func TestRun_LogPermissions(t *testing.T) {
	t.Run("marker present", func(t *testing.T) {
		sys := healthyHost()
		sys.files[logPath] = "ERROR Could not access /sys/bus/hid/devices/0003:1532:0203.0001/matrix_effect_wave\n"
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckLogPermissions) != report.Failed {
			t.Error("marker in log should fail")
		}
	})

	t.Run("marker absent", func(t *testing.T) {
		r := completed(t, run(t, healthyHost(), healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckLogPermissions) != report.Passed {
			t.Error("clean log should pass")
		}
	})

	t.Run("log absent", func(t *testing.T) {
		sys := healthyHost()
		delete(sys.files, logPath)
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if _, ok := r.Find(CheckLogPermissions); ok {
			t.Error("check should be omitted when the log does not exist")
		}
	})

	t.Run("home unresolvable", func(t *testing.T) {
		sys := healthyHost()
		sys.homeErr = errors.New("$HOME is not defined")
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if _, ok := r.Find(CheckLogPermissions); ok {
			t.Error("check should be omitted without a home directory")
		}
		if len(r.Checks) != 11 {
			t.Errorf("got %d checks, want the other 11", len(r.Checks))
		}
	})
}

func TestRun_UnsupportedHardware(t *testing.T) {
	t.Run("known device and foreign vendor", func(t *testing.T) {
		r := completed(t, run(t, healthyHost(), healthyCaps(), currentVersions()))
		if outcomeOf(t, r, CheckUnsupportedHardware) != report.Passed {
			t.Error("expected pass")
		}
	})

	t.Run("nothing registered", func(t *testing.T) {
		caps := healthyCaps()
		caps.Devices = nil
		r := completed(t, run(t, healthyHost(), caps, currentVersions()))
		check, _ := r.Find(CheckUnsupportedHardware)
		if check.Outcome != report.Failed {
			t.Fatal("expected failure")
		}
		last := check.Suggestions[len(check.Suggestions)-1]
		if last != "Unrecognized devices: 1532:0203" {
			t.Errorf("last suggestion = %q", last)
		}
	})

	t.Run("unreadable device ids are skipped", func(t *testing.T) {
		caps := healthyCaps()
		caps.Devices = append(caps.Devices, capability.KnownDevice{Name: "Broken"})
		r := completed(t, run(t, healthyHost(), caps, currentVersions()))
		if outcomeOf(t, r, CheckUnsupportedHardware) != report.Passed {
			t.Error("a device without ids should not fail the run")
		}
	})

	t.Run("lsusb missing", func(t *testing.T) {
		sys := healthyHost()
		delete(sys.tools, "lsusb")
		r := completed(t, run(t, sys, healthyCaps(), currentVersions()))
		if _, ok := r.Find(CheckUnsupportedHardware); ok {
			t.Error("check should be skipped without lsusb")
		}
	})

	t.Run("daemon did not list devices", func(t *testing.T) {
		caps := healthyCaps()
		caps.DevicesError = "org.freedesktop.DBus.Error.ServiceUnknown"
		r := completed(t, run(t, healthyHost(), caps, currentVersions()))
		if outcomeOf(t, r, CheckUnsupportedHardware) != report.Indeterminate {
			t.Error("expected indeterminate")
		}
	})
}

func TestRun_LatestVersion(t *testing.T) {
	t.Run("newer available", func(t *testing.T) {
		versions := fakeVersions{latest: release.Triple{Major: 3, Minor: 9, Patch: 0}}
		r := completed(t, run(t, healthyHost(), healthyCaps(), versions))
		check, _ := r.Find(CheckLatestVersion)
		if check.Outcome != report.Failed {
			t.Error("older local version should fail")
		}
		if check.Suggestions[3] != "Latest version: 3.9.0" {
			t.Errorf("suggestion = %q", check.Suggestions[3])
		}
	})

	t.Run("network failure", func(t *testing.T) {
		r := completed(t, run(t, healthyHost(), healthyCaps(), fakeVersions{err: errNetwork}))
		if outcomeOf(t, r, CheckLatestVersion) != report.Indeterminate {
			t.Error("fetch failure should be indeterminate, never fatal")
		}
	})

	t.Run("decimal comparison by default", func(t *testing.T) {
		caps := healthyCaps()
		caps.DriverVersion = "3.8.9"
		versions := fakeVersions{latest: release.Triple{Major: 3, Minor: 8, Patch: 10}}
		r := completed(t, run(t, healthyHost(), caps, versions))
		if outcomeOf(t, r, CheckLatestVersion) != report.Passed {
			t.Error("8.10 reads as 8.1, so 3.8.10 is not considered newer")
		}
	})

	t.Run("strict comparison", func(t *testing.T) {
		caps := healthyCaps()
		caps.DriverVersion = "3.8.9"
		versions := fakeVersions{latest: release.Triple{Major: 3, Minor: 8, Patch: 10}}
		opts := testOptions(versions)
		opts.Config = opts.Config.WithStrictVersionCompare(true)
		r := completed(t, Run(context.Background(), healthyHost(), caps, opts))
		if outcomeOf(t, r, CheckLatestVersion) != report.Failed {
			t.Error("strict comparison should see 3.8.10 as newer")
		}
	})

	t.Run("malformed local version is fatal", func(t *testing.T) {
		caps := healthyCaps()
		caps.DriverVersion = "3.8"
		d := run(t, healthyHost(), caps, currentVersions())
		if d.Kind != report.KindFatal {
			t.Errorf("Kind = %v, want fatal", d.Kind)
		}
	})
}

func TestRun_PanicBecomesFatal(t *testing.T) {
	sys := healthyHost()
	sys.panicOn = "run:lsmod"

	d := run(t, sys, healthyCaps(), currentVersions())

	if d.Kind != report.KindFatal {
		t.Fatalf("Kind = %v, want fatal", d.Kind)
	}
	if !strings.Contains(d.Message, "injected failure") || !strings.Contains(d.Message, CheckModuleLoaded) {
		t.Errorf("message should describe the panic and the check: %s", d.Message)
	}
	if sys.ran("od") {
		t.Error("no check should run after a panic")
	}
}
