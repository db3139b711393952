package serialmux

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.bug.st/serial"
)

// DiscoverPatterns are the device name prefixes that controllers enumerate
// as over USB.
var DiscoverPatterns = []string{"/dev/ttyACM", "/dev/cu.usbmodem", "/dev/tty.usbmodem"}

// Open opens a real serial port at path using opts.
func Open(path string, opts PortOptions) (TimeoutSerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return port, nil
}

// Discover lists attached ports that look like USB controllers, sorted by
// name so repeated runs see them in the same order.
func Discover() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return filterPorts(ports), nil
}

func filterPorts(ports []string) []string {
	var out []string
	for _, p := range ports {
		clean := filepath.Clean(p)
		for _, prefix := range DiscoverPatterns {
			if strings.HasPrefix(clean, prefix) {
				out = append(out, clean)
				break
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
