// Package cdp turns Cisco "show cdp neighbors" output into interface description commands.
package cdp

import (
	"regexp"
	"strings"
)

// Neighbor is one directly connected device as reported by CDP.
type Neighbor struct {
	DeviceID        string
	LocalInterface  string
	RemoteInterface string
}

type family struct {
	long    string
	abbrevs []string // lowercase
}

// longest names first: "Ethernet" must not shadow "GigabitEthernet"
var families = []family{
	{"TenGigabitEthernet", []string{"tengigabitethernet", "tengig", "ten", "te"}},
	{"GigabitEthernet", []string{"gigabitethernet", "gig", "gi", "g"}},
	{"FastEthernet", []string{"fastethernet", "fas", "fa", "f"}},
	{"Ethernet", []string{"ethernet", "eth", "et", "e"}},
	{"Serial", []string{"serial", "ser", "se", "s"}},
}

var (
	reInterface = regexp.MustCompile(`^([A-Za-z-]*)\s*(\d+(?:/\d+)+(?:\.\d+)?)$`)
	reSuffix    = regexp.MustCompile(`^\d+(?:/\d+)+(?:\.\d+)?$`)
)

func familyLong(abbrev string) string {
	a := strings.ToLower(abbrev)
	for _, f := range families {
		for _, x := range f.abbrevs {
			if a == x {
				return f.long
			}
		}
	}
	return ""
}

// NormalizeInterface expands an abbreviated interface name to its long form:
// "Gig 0/1", "Gi0/1" and "GigabitEthernet0/1" all become "GigabitEthernet0/1".
// Names not matching the family+N/M shape are returned trimmed but otherwise unchanged.
func NormalizeInterface(name string) string {
	name = strings.TrimSpace(name)
	m := reInterface.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	long := familyLong(m[1])
	if long == "" {
		return name
	}
	return long + m[2]
}

// ShortInterface abbreviates GigabitEthernet to G and FastEthernet to F.
func ShortInterface(name string) string {
	name = strings.Replace(name, "GigabitEthernet", "G", -1)
	name = strings.Replace(name, "FastEthernet", "F", -1)
	return name
}

func isLegend(line string) bool {
	for _, token := range []string{"Capability", "Router", "Bridge", "Switch"} {
		if strings.Contains(line, token) {
			return true
		}
	}
	return false
}

func isSplitSuffix(token string) bool {
	for _, p := range []string{"0/", "1/", "2/", "3/"} {
		if strings.HasPrefix(token, p) {
			return true
		}
	}
	return false
}

// ParseNeighbors parses the tabular output of "show cdp neighbors".
// Rows with fewer than 6 fields, and rows carrying a capability legend
// keyword, are not neighbors; they are returned as skipped.
func ParseNeighbors(output string) ([]Neighbor, []string) {
	var neighbors []Neighbor
	var skipped []string

	header := false

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")

		if !header {
			header = strings.Contains(line, "Device ID") && strings.Contains(line, "Local Intrfce")
			continue
		}

		if strings.TrimSpace(line) == "" || strings.Contains(line, "Total cdp entries") {
			continue
		}

		f := strings.Fields(line)
		if len(f) < 6 || isLegend(line) {
			skipped = append(skipped, line)
			continue
		}

		deviceID := f[0]

		local := f[1]
		if len(f) >= 7 && isSplitSuffix(f[2]) {
			local = f[1] + " " + f[2]
		}

		remote := f[len(f)-1]
		if reSuffix.MatchString(remote) && familyLong(f[len(f)-2]) != "" {
			remote = f[len(f)-2] + " " + remote
		}

		n := Neighbor{
			DeviceID:        deviceID,
			LocalInterface:  NormalizeInterface(local),
			RemoteInterface: NormalizeInterface(remote),
		}
		if strings.Contains(deviceID, "PC") {
			n.RemoteInterface = "PC"
		}

		neighbors = append(neighbors, n)
	}

	return neighbors, skipped
}

var (
	reDetailDevice = regexp.MustCompile(`^Device ID:\s*(\S+)`)
	reDetailPort   = regexp.MustCompile(`^Interface:\s*([^,]+),\s*Port ID \(outgoing port\):\s*(.+)$`)
)

// ParseNeighborsDetail parses "show cdp neighbors detail".
// Entries lacking either the device id or the interface line are returned as skipped.
func ParseNeighborsDetail(output string) ([]Neighbor, []string) {
	var neighbors []Neighbor
	var skipped []string

	var curr *Neighbor

	flush := func() {
		if curr == nil {
			return
		}
		if curr.LocalInterface == "" {
			skipped = append(skipped, "Device ID: "+curr.DeviceID)
		} else {
			neighbors = append(neighbors, *curr)
		}
		curr = nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))

		if m := reDetailDevice.FindStringSubmatch(line); m != nil {
			flush()
			curr = &Neighbor{DeviceID: m[1]}
			continue
		}

		m := reDetailPort.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if curr == nil {
			skipped = append(skipped, line)
			continue
		}
		curr.LocalInterface = NormalizeInterface(m[1])
		curr.RemoteInterface = NormalizeInterface(m[2])
		if strings.Contains(curr.DeviceID, "PC") {
			curr.RemoteInterface = "PC"
		}
	}

	flush()

	return neighbors, skipped
}
