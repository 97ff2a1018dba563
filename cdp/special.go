package cdp

// SpecialCase guards a local interface that CDP cannot discover (end host, WAN uplink).
// If no neighbor is found on LocalInterface, a stub neighbor is injected.
type SpecialCase struct {
	Device         string
	LocalInterface string
	Stub           string // used as both device id and remote interface
}

// SpecialCases is the per-topology stub table.
type SpecialCases []SpecialCase

// DefaultSpecialCases matches the lab topology: PCs behind R1 and S1, WAN behind R2.
var DefaultSpecialCases = SpecialCases{
	{Device: "R1", LocalInterface: "GigabitEthernet0/1", Stub: "PC"},
	{Device: "R2", LocalInterface: "GigabitEthernet0/3", Stub: "WAN"},
	{Device: "S1", LocalInterface: "GigabitEthernet0/3", Stub: "PC"},
}

// HandleSpecialCases applies DefaultSpecialCases.
func HandleSpecialCases(device string, neighbors []Neighbor) []Neighbor {
	return DefaultSpecialCases.Apply(device, neighbors)
}

// Apply returns a copy of neighbors with missing stubs appended.
// Applying twice gives the same result as applying once.
func (cases SpecialCases) Apply(device string, neighbors []Neighbor) []Neighbor {
	result := make([]Neighbor, len(neighbors), len(neighbors)+1)
	copy(result, neighbors)

	for _, c := range cases {
		if c.Device != device {
			continue
		}
		if hasLocal(result, c.LocalInterface) {
			continue
		}
		result = append(result, Neighbor{DeviceID: c.Stub, LocalInterface: c.LocalInterface, RemoteInterface: c.Stub})
	}

	return result
}

func hasLocal(neighbors []Neighbor, local string) bool {
	for _, n := range neighbors {
		if n.LocalInterface == local {
			return true
		}
	}
	return false
}
