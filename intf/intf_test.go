package intf

import (
	"bytes"
	"sort"
	"strings"
	"testing"
)

const showBrief = `R1#show ip interface brief
Interface              IP-Address      OK? Method Status                Protocol
GigabitEthernet0/0     172.31.21.4     YES NVRAM  up                    up
GigabitEthernet0/1     10.0.0.1        YES manual administratively down down
GigabitEthernet0/2     unassigned      YES unset  down                  down
R1#`

const showInterfaces = `GigabitEthernet0/0 is up, line protocol is up
  Hardware is iGbE, address is 5254.0012.3456 (bia 5254.0012.3456)
  Last input 00:00:01, output 00:00:02, output hang never
GigabitEthernet0/1 is administratively down, line protocol is down
  Hardware is iGbE, address is 5254.0012.3457 (bia 5254.0012.3457)
GigabitEthernet0/2 is down, line protocol is down
  Last input never, output 1d02h, output hang never
`

func TestParseBrief(t *testing.T) {
	list := ParseBrief(showBrief)
	if len(list) != 3 {
		t.Fatalf("interfaces: got=%d wanted=3: %v", len(list), list)
	}
	if !list[0].Up() {
		t.Errorf("Gi0/0 should be up: %v", list[0])
	}
	if list[1].Status != "administratively down" || list[1].Up() {
		t.Errorf("Gi0/1 should be admin down: %v", list[1])
	}
	if list[2].IP != "unassigned" {
		t.Errorf("Gi0/2 ip: %v", list[2])
	}
}

func TestParseLastIO(t *testing.T) {
	table := ParseLastIO(showInterfaces)

	if x := table["GigabitEthernet0/0"]; x.Input != "00:00:01" || x.Output != "00:00:02" {
		t.Errorf("Gi0/0: %v", x)
	}
	if x := table["GigabitEthernet0/1"]; x.Input != "never" || x.Output != "never" {
		t.Errorf("Gi0/1: %v", x)
	}
	if x := table["GigabitEthernet0/2"]; x.Input != "never" || x.Output != "1d02h" {
		t.Errorf("Gi0/2: %v", x)
	}
}

func TestReport(t *testing.T) {
	list := Merge(ParseBrief(showBrief), ParseLastIO(showInterfaces))
	list = append(list, Interface{Name: "Loopback0", IP: "1.1.1.1", Status: "up", Protocol: "up"})
	list = Merge(list, map[string]LastIO{})

	var buf bytes.Buffer
	up, down, err := WriteReport(&buf, list)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if up != 2 || down != 2 {
		t.Errorf("up=%d down=%d wanted 2 2", up, down)
	}
	if !strings.Contains(buf.String(), "Summary: 2 up, 2 down") {
		t.Errorf("missing summary: %s", buf.String())
	}
}

const showDescription = `Interface                      Status         Protocol Description
Gi0/0                          up             up       Connect to G0/1 of S1
Gi0/1                          admin down     down
Gi0/2                          up             up       Connect to G0/3 of R2
`

func TestParseDescriptions(t *testing.T) {
	table := ParseDescriptions(showDescription)

	if len(table) != 3 {
		t.Fatalf("descriptions: got=%d wanted=3: %v", len(table), table)
	}
	if d := table["GigabitEthernet0/0"]; d != "Connect to G0/1 of S1" {
		t.Errorf("Gi0/0: %q", d)
	}
	if d := table["GigabitEthernet0/1"]; d != "" {
		t.Errorf("Gi0/1: %q", d)
	}

	wanted := map[string]string{
		"GigabitEthernet0/0": "Connect to G0/1 of S1",
		"GigabitEthernet0/1": "Connect to PC",
		"GigabitEthernet0/9": "Connect to WAN",
	}
	mismatch := VerifyDescriptions(wanted, table)
	sort.Strings(mismatch)
	if len(mismatch) != 2 {
		t.Fatalf("mismatch: got=%q", mismatch)
	}
	if !strings.HasPrefix(mismatch[0], "GigabitEthernet0/1:") || !strings.Contains(mismatch[1], "not found") {
		t.Errorf("mismatch: got=%q", mismatch)
	}
}
