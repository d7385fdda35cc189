// Package capability resolves, once per process, whether the OpenRazer
// client library is usable and what it reports: the installed driver
// version and the devices the daemon has registered.
//
// The result is an immutable value handed to the troubleshooter. A failed
// probe is not an error; it is recorded as ClientAvailable == false.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"razer-doctor/internal/executor"
	"razer-doctor/internal/usb"
)

// KnownDevice is a device registered with the daemon. Ids are nil when the
// client could not read them.
type KnownDevice struct {
	Name      string `json:"name"`
	VendorID  *int   `json:"vid"`
	ProductID *int   `json:"pid"`
}

type Capabilities struct {
	ClientAvailable bool
	DriverVersion   string
	Devices         []KnownDevice

	// DevicesError is set when the client imported but listing devices
	// failed, usually because the daemon is not running.
	DevicesError string
}

// Runner runs an external command; system.System.Run satisfies it.
type Runner func(ctx context.Context, name string, args ...string) (executor.Result, error)

// clientScript imports the client library and prints what the
// troubleshooter needs as one JSON object.
const clientScript = `
import json
from openrazer import client
out = {"version": client.__version__, "devices": [], "devices_error": ""}
try:
    for device in client.DeviceManager().devices:
        entry = {"name": str(getattr(device, "name", "")), "vid": None, "pid": None}
        try:
            entry["vid"] = int(device._vid)
            entry["pid"] = int(device._pid)
        except Exception:
            pass
        out["devices"].append(entry)
except Exception as e:
    out["devices_error"] = str(e)
print(json.dumps(out))
`

type probeOutput struct {
	Version      string        `json:"version"`
	Devices      []KnownDevice `json:"devices"`
	DevicesError string        `json:"devices_error"`
}

// Probe asks the interpreter to load the client library. Every failure is
// logged at debug level and yields an unavailable capability.
func Probe(ctx context.Context, run Runner, interpreter string, logger *slog.Logger) Capabilities {
	result, err := run(ctx, interpreter, "-c", clientScript)
	if err != nil {
		logger.Debug("client library probe could not run", "interpreter", interpreter, "error", err)
		return Capabilities{}
	}
	if !result.Succeeded() {
		logger.Debug("client library not importable", "exit_code", result.ExitCode, "output", result.Output)
		return Capabilities{}
	}

	caps, err := Decode([]byte(lastLine(result.Output)))
	if err != nil {
		logger.Debug("client library probe returned unreadable output", "error", err)
		return Capabilities{}
	}
	return caps
}

// Decode parses the probe's JSON line.
func Decode(data []byte) (Capabilities, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Capabilities{}, fmt.Errorf("decode probe output: %w", err)
	}
	if strings.TrimSpace(out.Version) == "" {
		return Capabilities{}, fmt.Errorf("decode probe output: empty version")
	}
	return Capabilities{
		ClientAvailable: true,
		DriverVersion:   strings.TrimSpace(out.Version),
		Devices:         out.Devices,
		DevicesError:    out.DevicesError,
	}, nil
}

// lastLine skips anything the library printed before the JSON object;
// stderr is appended after stdout, so scan from the end for a JSON line.
func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") {
			return line
		}
	}
	return ""
}

// KnownIDs converts the registered devices to usb ids. Devices whose ids
// are missing or do not fit in 16 bits are skipped with a warning.
func (c Capabilities) KnownIDs(logger *slog.Logger) []usb.DeviceID {
	ids := make([]usb.DeviceID, 0, len(c.Devices))
	for _, device := range c.Devices {
		if !validID(device.VendorID) || !validID(device.ProductID) {
			logger.Warn("skipping device with unreadable VID/PID", "device", device.Name)
			continue
		}
		ids = append(ids, usb.FromNumeric(*device.VendorID, *device.ProductID))
	}
	return ids
}

func validID(id *int) bool {
	return id != nil && *id >= 0 && *id <= 0xFFFF
}
