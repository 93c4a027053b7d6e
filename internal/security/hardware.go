package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
)

// ErrNoHardwareIdentity is returned when no stable hardware component could
// be read. Callers must treat this as a hard failure rather than substituting
// a shared placeholder value, since a placeholder would collide across every
// machine that fails fingerprinting.
var ErrNoHardwareIdentity = errors.New("no hardware identity components available")

// Fingerprint generates a stable hardware ID for this machine.
// It combines MAC addresses, machine ID, CPU info and disk serial, sorted for
// consistency, and returns the hex-encoded digest.
func Fingerprint() (string, error) {
	var components []string

	// Get MAC addresses
	macs := getMACAddresses()
	components = append(components, macs...)

	// Get CPU info
	cpuID := getCPUID()
	if cpuID != "" {
		components = append(components, cpuID)
	}

	// Get machine ID (Linux)
	machineID := getMachineID()
	if machineID != "" {
		components = append(components, machineID)
	}

	// Get disk serial
	diskSerial := getDiskSerial()
	if diskSerial != "" {
		components = append(components, diskSerial)
	}

	if len(components) == 0 {
		return "", ErrNoHardwareIdentity
	}

	// Sort for consistency
	sort.Strings(components)

	// Hash all components
	combined := strings.Join(components, "|")
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:16]), nil
}

func getMACAddresses() []string {
	var macs []string
	interfaces, err := net.Interfaces()
	if err != nil {
		return macs
	}

	for _, iface := range interfaces {
		// Skip loopback and virtual interfaces
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if strings.HasPrefix(iface.Name, "docker") ||
			strings.HasPrefix(iface.Name, "veth") ||
			strings.HasPrefix(iface.Name, "br-") {
			continue
		}

		mac := iface.HardwareAddr.String()
		if mac != "" {
			macs = append(macs, mac)
		}
	}
	return macs
}

func getCPUID() string {
	if runtime.GOOS != "linux" {
		return ""
	}

	// Try to get CPU info from /proc/cpuinfo
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return ""
	}

	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "Serial") || strings.HasPrefix(line, "model name") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}

func getMachineID() string {
	// Linux machine-id
	paths := []string{
		"/etc/machine-id",
		"/var/lib/dbus/machine-id",
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

func getDiskSerial() string {
	switch runtime.GOOS {
	case "linux":
		return getDiskSerialLinux()
	case "windows":
		return getDiskSerialWindows()
	default:
		return ""
	}
}

func getDiskSerialLinux() string {
	// Try lsblk to get disk serial
	cmd := exec.Command("lsblk", "-o", "SERIAL", "-n", "-d")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for _, line := range lines {
		serial := strings.TrimSpace(line)
		if serial != "" {
			return serial
		}
	}
	return ""
}

func getDiskSerialWindows() string {
	cmd := exec.Command("wmic", "diskdrive", "get", "serialnumber")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}

	for _, field := range strings.Fields(string(output)) {
		if field != "" && field != "SerialNumber" {
			return field
		}
	}
	return ""
}
