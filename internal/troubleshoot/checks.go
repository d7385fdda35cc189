package troubleshoot

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"razer-doctor/internal/config"
	"razer-doctor/internal/executor"
	"razer-doctor/internal/release"
	"razer-doctor/internal/report"
	"razer-doctor/internal/usb"
)

// Check ids, in execution order.
const (
	CheckDaemonInstalled     = "daemon-installed"
	CheckDaemonRunning       = "daemon-running"
	CheckClientLibrary       = "client-library"
	CheckDKMSSources         = "dkms-sources"
	CheckDKMSBuilt           = "dkms-built"
	CheckModuleProbe         = "module-probe"
	CheckModuleLoaded        = "module-loaded"
	CheckSecureBoot          = "secure-boot"
	CheckGroupMembership     = "plugdev-group"
	CheckLogPermissions      = "log-permissions"
	CheckUnsupportedHardware = "unsupported-hardware"
	CheckLatestVersion       = "latest-version"
)

// checks is the registry. Order is diagnostic priority: daemon and module
// first, then permissions and hardware, then freshness.
func checks(cfg config.Config) []check {
	return []check{
		{id: CheckDaemonInstalled, name: "Daemon is installed", run: checkDaemonInstalled},
		{id: CheckDaemonRunning, name: "Daemon is running", run: checkDaemonRunning},
		{id: CheckClientLibrary, name: "Python library is installed", run: checkClientLibrary},
		{id: CheckDKMSSources, name: "DKMS sources are installed", omit: clientUnavailable, run: checkDKMSSources},
		{id: CheckDKMSBuilt, name: "DKMS module has been built for this kernel version", omit: clientUnavailable, run: checkDKMSBuilt},
		{id: CheckModuleProbe, name: "DKMS module can be probed", run: checkModuleProbe},
		{id: CheckModuleLoaded, name: "DKMS module is currently loaded", run: checkModuleLoaded},
		{id: CheckSecureBoot, name: "Check Secure Boot (EFI) status", omit: noEFI, run: checkSecureBoot},
		{id: CheckGroupMembership, name: fmt.Sprintf("User account has been added to the '%s' group", cfg.Group), run: checkGroupMembership},
		{id: CheckLogPermissions, name: fmt.Sprintf("Check OpenRazer log for %s permission errors", cfg.Group), run: checkLogPermissions},
		{id: CheckUnsupportedHardware, name: "Check for unsupported hardware", omit: driverNotBuilt, run: checkUnsupportedHardware},
		{id: CheckLatestVersion, name: "OpenRazer is the latest version", omit: clientUnavailable, run: checkLatestVersion},
	}
}

func clientUnavailable(s *state) bool {
	return !s.caps.ClientAvailable
}

func driverNotBuilt(s *state) bool {
	return !s.caps.ClientAvailable || !s.driverBuilt
}

func noEFI(s *state) bool {
	return !s.sys.Exists(s.cfg.EFIDir)
}

// runTool runs an external tool. ok is false when the tool is missing or
// did not finish; callers treat that as an absence, not a fault.
func runTool(ctx context.Context, s *state, name string, args ...string) (executor.Result, bool) {
	result, err := s.sys.Run(ctx, name, args...)
	if err != nil {
		s.logger.Warn("external tool unavailable", "tool", name, "error", err)
		return result, false
	}
	return result, true
}

func toolMissing(name string, suggestions ...string) *verdict {
	return &verdict{
		outcome:     report.Indeterminate,
		suggestions: append([]string{fmt.Sprintf("The '%s' command could not be run, so this could not be checked.", name)}, suggestions...),
	}
}

func checkDaemonInstalled(ctx context.Context, s *state) (*verdict, error) {
	_, err := s.sys.LookPath(s.cfg.DaemonBinary)
	return &verdict{
		outcome: report.OutcomeOf(err == nil),
		suggestions: []string{
			"Install the 'openrazer-meta' package for your distribution.",
		},
	}, nil
}

func checkDaemonRunning(ctx context.Context, s *state) (*verdict, error) {
	suggestions := []string{
		"Start the daemon from the terminal. Run this command and look for errors:",
		"$ " + s.cfg.DaemonBinary + " -Fv",
	}

	runtimeDir := s.sys.Getenv("XDG_RUNTIME_DIR")
	switch {
	case runtimeDir == "":
		runtimeDir = filepath.Join("/run/user", strconv.Itoa(s.sys.Getuid()))
	case !filepath.IsAbs(runtimeDir):
		return &verdict{
			outcome: report.Indeterminate,
			suggestions: append([]string{
				fmt.Sprintf("XDG_RUNTIME_DIR is not an absolute path (%q). Fix your session environment, then check again.", runtimeDir),
			}, suggestions...),
		}, nil
	}

	pidFile := filepath.Join(runtimeDir, s.cfg.DaemonPIDFile)
	if !s.sys.Exists(pidFile) {
		return &verdict{outcome: report.Failed, suggestions: suggestions}, nil
	}

	data, err := s.sys.ReadFile(pidFile)
	if err != nil {
		return nil, fmt.Errorf("read pid file: %w", err)
	}
	firstLine, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(firstLine))
	if err != nil {
		return nil, fmt.Errorf("parse pid file %s: %w", pidFile, err)
	}

	alive, err := s.sys.ProcessAlive(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("look up pid %d: %w", pid, err)
	}
	return &verdict{outcome: report.OutcomeOf(alive), suggestions: suggestions}, nil
}

func checkClientLibrary(ctx context.Context, s *state) (*verdict, error) {
	return &verdict{
		outcome: report.OutcomeOf(s.caps.ClientAvailable),
		suggestions: []string{
			"Install the 'python3-openrazer' package for your distribution.",
			"Check the PYTHONPATH environment variable is correct.",
		},
	}, nil
}

func checkDKMSSources(ctx context.Context, s *state) (*verdict, error) {
	source := filepath.Join(s.cfg.DKMSRoot, s.caps.DriverVersion)
	return &verdict{
		outcome: report.OutcomeOf(s.sys.Exists(source)),
		suggestions: []string{
			"Install the 'openrazer-driver-dkms' package for your distribution.",
		},
	}, nil
}

func checkDKMSBuilt(ctx context.Context, s *state) (*verdict, error) {
	suggestions := []string{
		"Ensure you have the correct Linux kernel headers package installed for your distribution.",
		"Your distro's package system might not have rebuilt the DKMS module (this can happen with kernel or OpenRazer updates). Try running:",
		fmt.Sprintf("$ sudo dkms install -m %s/%s", s.cfg.DKMSPackage, s.caps.DriverVersion),
	}

	kernelRelease, machine, err := s.sys.Uname(ctx)
	if err != nil {
		s.logger.Warn("could not read kernel release", "error", err)
		return &verdict{outcome: report.Indeterminate, suggestions: suggestions}, nil
	}

	build := filepath.Join(s.cfg.DKMSRoot, fmt.Sprintf("kernel-%s-%s", kernelRelease, machine))
	s.driverBuilt = s.sys.Exists(build)
	return &verdict{outcome: report.OutcomeOf(s.driverBuilt), suggestions: suggestions}, nil
}

func modprobeSuggestions(module string) []string {
	return []string{
		"For full error details, run:",
		"$ sudo modprobe " + module,
	}
}

func checkModuleProbe(ctx context.Context, s *state) (*verdict, error) {
	suggestions := modprobeSuggestions(s.cfg.KernelModule)
	result, ok := runTool(ctx, s, "modprobe", "-n", s.cfg.KernelModule)
	if !ok {
		return toolMissing("modprobe", suggestions...), nil
	}
	return &verdict{outcome: report.OutcomeOf(result.Succeeded()), suggestions: suggestions}, nil
}

func checkModuleLoaded(ctx context.Context, s *state) (*verdict, error) {
	suggestions := modprobeSuggestions(s.cfg.KernelModule)
	result, ok := runTool(ctx, s, "lsmod")
	if !ok {
		return toolMissing("lsmod", suggestions...), nil
	}
	loaded := strings.Contains(result.Output, s.cfg.ModuleFamily)
	return &verdict{outcome: report.OutcomeOf(loaded), suggestions: suggestions}, nil
}

const secureBootReason = "Secure Boot prevents the driver from loading, as OpenRazer's kernel modules built by DKMS are usually unsigned."

func checkSecureBoot(ctx context.Context, s *state) (*verdict, error) {
	unknown := &verdict{
		outcome: report.Indeterminate,
		suggestions: []string{
			"Unable to automatically check. If it's enabled, turn it off in the system's EFI settings or sign the modules yourself.",
			secureBootReason,
		},
	}

	matches, err := s.sys.Glob(s.cfg.SecureBootGlob)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", s.cfg.SecureBootGlob, err)
	}
	if len(matches) == 0 {
		return unknown, nil
	}

	result, ok := runTool(ctx, s, "od", "--address-radix=n", "--format=u1", matches[0])
	if !ok || !result.Succeeded() {
		return unknown, nil
	}

	bytes := strings.Fields(result.Output)
	if len(bytes) == 0 {
		return unknown, nil
	}
	last, err := strconv.Atoi(bytes[len(bytes)-1])
	if err != nil {
		return nil, fmt.Errorf("parse secure boot status from %s: %w", matches[0], err)
	}

	return &verdict{
		outcome: report.OutcomeOf(last == 0),
		suggestions: []string{
			"Secure Boot is enabled. Turn it off in the system's EFI settings or sign the modules yourself.",
			secureBootReason,
		},
	}, nil
}

func checkGroupMembership(ctx context.Context, s *state) (*verdict, error) {
	suggestions := []string{
		"Run this command, log out, then log back in to the computer:",
		"$ sudo gpasswd -a $USER " + s.cfg.Group,
		"If you've recently installed, you may need to restart the computer.",
	}
	result, ok := runTool(ctx, s, "groups")
	if !ok {
		return toolMissing("groups", suggestions...), nil
	}
	member := strings.Contains(result.Output, s.cfg.Group)
	return &verdict{outcome: report.OutcomeOf(member), suggestions: suggestions}, nil
}

func checkLogPermissions(ctx context.Context, s *state) (*verdict, error) {
	home, err := s.sys.HomeDir()
	if err != nil {
		s.logger.Debug("home directory unavailable", "error", err)
		return nil, nil
	}
	logPath := filepath.Join(home, s.cfg.LogFile)
	if !s.sys.Exists(logPath) {
		return nil, nil
	}

	data, err := s.sys.ReadFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	return &verdict{
		outcome: report.OutcomeOf(!strings.Contains(string(data), s.cfg.PermissionMarker)),
		suggestions: []string{
			"Restarting (or replugging) usually fixes the problem.",
			"To reset this error, clear the log: " + logPath,
		},
	}, nil
}

func checkUnsupportedHardware(ctx context.Context, s *state) (*verdict, error) {
	suggestions := []string{
		fmt.Sprintf("Ensure the latest version is installed (your version is %s).", s.caps.DriverVersion),
		"Check the OpenRazer repository to confirm your device is listed as supported.",
	}

	result, ok := runTool(ctx, s, "lsusb")
	if !ok {
		s.logger.Info("lsusb not available, unable to determine if product is connected")
		return nil, nil
	}

	if s.caps.DevicesError != "" {
		s.logger.Warn("daemon did not list devices", "error", s.caps.DevicesError)
		return &verdict{
			outcome: report.Indeterminate,
			suggestions: append([]string{
				"The daemon did not report its devices. Make sure it is running, then check again.",
			}, suggestions...),
		}, nil
	}

	connected, warnings := usb.ParseLsusb(result.Output)
	for _, warning := range warnings {
		s.logger.Debug("skipping lsusb line", "warning", warning)
	}

	unsupported := usb.Unsupported(connected, s.caps.KnownIDs(s.logger), s.cfg.VendorID)
	if len(unsupported) == 0 {
		return &verdict{outcome: report.Passed, suggestions: suggestions}, nil
	}

	ids := make([]string, len(unsupported))
	for i, id := range unsupported {
		ids[i] = id.String()
	}
	return &verdict{
		outcome:     report.Failed,
		suggestions: append(suggestions, "Unrecognized devices: "+strings.Join(ids, ", ")),
	}, nil
}

func checkLatestVersion(ctx context.Context, s *state) (*verdict, error) {
	local, err := release.Parse(s.caps.DriverVersion)
	if err != nil {
		return nil, fmt.Errorf("installed driver version: %w", err)
	}

	remote, err := s.versions.Latest(ctx)
	if err != nil {
		s.logger.Warn("could not retrieve OpenRazer data", "error", err)
		return &verdict{
			outcome: report.Indeterminate,
			suggestions: []string{
				"Unable to retrieve this data from OpenRazer's website.",
				"Check the OpenRazer website to confirm your device is listed as supported.",
				"If you're checking the GitHub repository, check the 'stable' branch.",
			},
		}, nil
	}

	newer := release.Comparator(s.cfg.StrictVersionCompare)(remote, local)
	return &verdict{
		outcome: report.OutcomeOf(!newer),
		suggestions: []string{
			"There is a new version of OpenRazer available.",
			"New versions add support for more devices and address device-specific issues.",
			"Your version: " + local.String(),
			"Latest version: " + remote.String(),
		},
	}, nil
}
