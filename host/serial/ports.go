//go:build !wasm

package serial

import (
	"sort"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	bugst "go.bug.st/serial"
)

// ListPorts returns the serial devices present on this host, USB CDC
// devices first
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("list serial ports"))
	}
	sort.SliceStable(ports, func(i, j int) bool {
		return usbRank(ports[i]) < usbRank(ports[j])
	})
	return ports, nil
}

func usbRank(name string) int {
	switch {
	case strings.Contains(name, "ttyACM"), strings.Contains(name, "usbmodem"):
		return 0
	case strings.Contains(name, "ttyUSB"), strings.Contains(name, "usbserial"):
		return 1
	}
	return 2
}

// FindPort returns the device to use when none was configured: the first
// USB serial device, or "" if there is none
func FindPort() string {
	ports, err := ListPorts()
	if err != nil || len(ports) == 0 {
		return ""
	}
	if usbRank(ports[0]) > 1 {
		return ""
	}
	return ports[0]
}
