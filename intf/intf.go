// Package intf parses Cisco IOS interface status output.
package intf

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/udhos/iosauto/cdp"
)

// Interface is one row of "show ip interface brief", optionally enriched
// with last input/output counters from "show interfaces".
type Interface struct {
	Name       string
	IP         string
	Status     string // up, down, administratively down
	Protocol   string // up, down
	LastInput  string
	LastOutput string
}

// Up reports whether both status and protocol are up.
func (i Interface) Up() bool {
	return i.Status == "up" && i.Protocol == "up"
}

var reBrief = regexp.MustCompile(`(?i)^(\S+)\s+(\S+)\s+\S+\s+\S+\s+(up|down|administratively down)\s+(up|down)`)

// ParseBrief parses "show ip interface brief".
func ParseBrief(output string) []Interface {
	var list []Interface
	for _, line := range strings.Split(output, "\n") {
		m := reBrief.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		list = append(list, Interface{
			Name:     m[1],
			IP:       m[2],
			Status:   strings.ToLower(m[3]),
			Protocol: strings.ToLower(m[4]),
		})
	}
	return list
}

// LastIO holds the "Last input" and "Last output" fields of "show interfaces".
type LastIO struct {
	Input  string
	Output string
}

var reIntfHeader = regexp.MustCompile(`^(\S+) is (up|down|administratively down),`)

// ParseLastIO parses "show interfaces" into a map keyed by interface name.
// Interfaces without a "Last input" line report "never".
func ParseLastIO(output string) map[string]LastIO {
	table := map[string]LastIO{}
	current := ""

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")

		if m := reIntfHeader.FindStringSubmatch(line); m != nil {
			current = m[1]
			table[current] = LastIO{Input: "never", Output: "never"}
			continue
		}

		if current == "" || !strings.Contains(line, "Last input") {
			continue
		}

		f := strings.Fields(strings.Replace(line, ",", "", -1))
		i := indexOf(f, "input")
		o := indexOf(f, "output")
		if i < 0 || o < 0 || i+1 >= len(f) || o+1 >= len(f) {
			continue
		}
		table[current] = LastIO{Input: f[i+1], Output: f[o+1]}
	}

	return table
}

func indexOf(list []string, s string) int {
	for i, x := range list {
		if x == s {
			return i
		}
	}
	return -1
}

// Merge fills LastInput/LastOutput from a ParseLastIO table.
func Merge(list []Interface, lastIO map[string]LastIO) []Interface {
	result := make([]Interface, len(list))
	for i, x := range list {
		last, found := lastIO[x.Name]
		if found {
			x.LastInput = last.Input
			x.LastOutput = last.Output
		} else {
			x.LastInput = "-"
			x.LastOutput = "-"
		}
		result[i] = x
	}
	return result
}

// WriteReport prints the interface table and a summary line.
// It returns the number of interfaces found up and down.
func WriteReport(w io.Writer, list []Interface) (int, int, error) {
	var up, down int

	if _, err := fmt.Fprintf(w, "%-20s%-15s%-22s%-8s%-10s%s\n", "Intf", "IP", "Stat", "Prot", "Last In", "Last Out"); err != nil {
		return up, down, err
	}

	for _, i := range list {
		mark := "DOWN"
		if i.Up() {
			mark = "UP"
			up++
		} else {
			down++
		}
		if _, err := fmt.Fprintf(w, "%-20s%-15s%-22s%-8s%-10s%s  %s\n", i.Name, i.IP, i.Status, i.Protocol, i.LastInput, i.LastOutput, mark); err != nil {
			return up, down, err
		}
	}

	_, err := fmt.Fprintf(w, "\nSummary: %d up, %d down\n", up, down)

	return up, down, err
}

// ParseDescriptions parses "show interfaces description" into a map from
// long interface name to description. Column offsets are taken from the header.
func ParseDescriptions(output string) map[string]string {
	table := map[string]string{}
	col := -1

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")

		if col < 0 {
			if strings.HasPrefix(line, "Interface") {
				col = strings.Index(line, "Description")
			}
			continue
		}

		f := strings.Fields(line)
		if len(f) < 1 {
			continue
		}

		desc := ""
		if len(line) > col {
			desc = strings.TrimSpace(line[col:])
		}

		table[cdp.NormalizeInterface(f[0])] = desc
	}

	return table
}

// VerifyDescriptions compares wanted descriptions (keyed by long interface name) against
// the device table. It returns one message per mismatch.
func VerifyDescriptions(wanted, got map[string]string) []string {
	var mismatch []string
	for name, w := range wanted {
		g, found := got[name]
		if !found {
			mismatch = append(mismatch, fmt.Sprintf("%s: interface not found", name))
			continue
		}
		if g != w {
			mismatch = append(mismatch, fmt.Sprintf("%s: description=[%s] wanted=[%s]", name, g, w))
		}
	}
	return mismatch
}
