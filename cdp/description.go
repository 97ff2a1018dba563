package cdp

import (
	"fmt"
	"strings"
)

// Description builds the interface description for a neighbor.
func Description(n Neighbor) string {
	if strings.Contains(n.DeviceID, "PC") || strings.Contains(n.RemoteInterface, "PC") {
		return "Connect to PC"
	}
	if n.DeviceID == "WAN" {
		return "Connect to WAN"
	}

	device := n.DeviceID
	if dot := strings.IndexByte(device, '.'); dot >= 0 {
		device = device[:dot] // strip domain
	}

	return fmt.Sprintf("Connect to %s of %s", ShortInterface(n.RemoteInterface), device)
}

// ConfigCommands emits one "interface" and one "description" command per neighbor, in input order.
func ConfigCommands(neighbors []Neighbor) []string {
	commands := make([]string, 0, 2*len(neighbors))
	for _, n := range neighbors {
		commands = append(commands, "interface "+n.LocalInterface, "description "+Description(n))
	}
	return commands
}

// Plan runs the full pipeline for one device: parse CDP output, inject stub
// neighbors, generate commands. detail selects the "show cdp neighbors detail" parser.
func Plan(device, output string, detail bool, cases SpecialCases) ([]string, []Neighbor, []string) {
	var neighbors []Neighbor
	var skipped []string
	if detail {
		neighbors, skipped = ParseNeighborsDetail(output)
	} else {
		neighbors, skipped = ParseNeighbors(output)
	}
	neighbors = cases.Apply(device, neighbors)
	return ConfigCommands(neighbors), neighbors, skipped
}
