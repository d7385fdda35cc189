// Package usb reconciles the USB devices attached to the host against the
// devices the driver stack already recognizes.
package usb

import (
	"fmt"
	"strings"
)

// RazerVendorID is the USB vendor id of every device the driver targets.
const RazerVendorID = "1532"

// DeviceID is a vendor/product pair, each four uppercase hex digits.
type DeviceID struct {
	Vendor  string `json:"vendor"  yaml:"vendor"`
	Product string `json:"product" yaml:"product"`
}

func (d DeviceID) String() string {
	return d.Vendor + ":" + d.Product
}

// FromNumeric formats numeric ids the way lsusb prints them.
func FromNumeric(vendor, product int) DeviceID {
	return DeviceID{
		Vendor:  fmt.Sprintf("%04X", vendor),
		Product: fmt.Sprintf("%04X", product),
	}
}

// ParsePair parses "vvvv:pppp". Both halves must be exactly four hex digits.
func ParsePair(token string) (DeviceID, error) {
	vendor, product, ok := strings.Cut(token, ":")
	if !ok {
		return DeviceID{}, fmt.Errorf("%q is not a vendor:product pair", token)
	}
	if !isHex4(vendor) || !isHex4(product) {
		return DeviceID{}, fmt.Errorf("%q is not a pair of 4-digit hex ids", token)
	}
	return DeviceID{Vendor: strings.ToUpper(vendor), Product: strings.ToUpper(product)}, nil
}

func isHex4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ParseLsusb extracts device ids from lsusb output. Each line is split on
// whitespace and the sixth field is read as the id pair:
//
//	Bus 001 Device 003: ID 1532:0203 Razer USA, Ltd
//
// Lines that do not have that shape are returned as warnings and skipped.
func ParseLsusb(output string) ([]DeviceID, []string) {
	var ids []DeviceID
	var warnings []string

	for number, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			warnings = append(warnings, fmt.Sprintf("line %d: too few fields: %q", number+1, line))
			continue
		}
		id, err := ParsePair(fields[5])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", number+1, err))
			continue
		}
		ids = append(ids, id)
	}

	return ids, warnings
}

// Unsupported returns the connected devices from the given vendor that are
// missing from known, in enumeration order.
func Unsupported(connected, known []DeviceID, vendor string) []DeviceID {
	registered := make(map[DeviceID]bool, len(known))
	for _, id := range known {
		registered[id] = true
	}

	vendor = strings.ToUpper(vendor)
	var unsupported []DeviceID
	for _, id := range connected {
		if id.Vendor != vendor || registered[id] {
			continue
		}
		unsupported = append(unsupported, id)
	}
	return unsupported
}
