// Package env provides host identity for devices.
package env

import (
	"os"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID salts the machine id so the raw id never leaves the host.
const AppID = "npg.go"

// DeviceIDLength is the length of ids returned by DeviceID.
const DeviceIDLength = 12

// FallbackID is used when neither machine id nor hostname is available.
const FallbackID = "npg"

// MachineID retrieves the unique ID identifying the machine.
func MachineID() (string, error) {
	return machineid.ProtectedID(AppID)
}

// DeviceID returns a short stable id for this host. It falls back to the
// hostname when the machine id can't be read.
func DeviceID() string {
	id, err := MachineID()
	if err == nil && id != "" {
		if len(id) > DeviceIDLength {
			id = id[:DeviceIDLength]
		}
		return id
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return strings.ToLower(host)
	}
	return FallbackID
}
