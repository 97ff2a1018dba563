package main

import (
	"bytes"
	"net"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/udhos/iosauto/conf"
	"github.com/udhos/iosauto/dev"
	"github.com/udhos/iosauto/temp"
)

// testLogger: wrap Printf interface around *testing.T
type testLogger struct {
	*testing.T
}

func (t *testLogger) Printf(format string, v ...interface{}) {
	t.Logf("iosauto testLogger: "+format, v...)
}

func TestReadCommands(t *testing.T) {
	input := "# comment\nvlan 101\n name Management\r\n\n   \ninterface Gi0/1\n switchport access vlan 101"
	wanted := []string{"vlan 101", " name Management", "interface Gi0/1", " switchport access vlan 101"}

	got, err := readCommands(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readCommands: %v", err)
	}
	if !reflect.DeepEqual(got, wanted) {
		t.Errorf("readCommands: got=%q wanted=%q", got, wanted)
	}

	empty, _ := readCommands(strings.NewReader(""))
	if len(empty) != 0 {
		t.Errorf("readCommands: empty input: %q", empty)
	}
}

func TestSplitIDs(t *testing.T) {
	if got := splitIDs(" R1, ,R2,"); !reflect.DeepEqual(got, []string{"R1", "R2"}) {
		t.Errorf("splitIDs: got=%q", got)
	}
	if got := splitIDs(""); len(got) != 0 {
		t.Errorf("splitIDs: empty: got=%q", got)
	}
}

func TestValidTask(t *testing.T) {
	for _, task := range taskNames {
		if !validTask(task) {
			t.Errorf("validTask: rejected %s", task)
		}
	}
	if validTask("reload") {
		t.Errorf("validTask: accepted reload")
	}
}

func TestNewJob(t *testing.T) {
	ios := newApp()

	for _, task := range []string{"describe", "config", "status", "backup"} {
		job, err := newJob(ios, task, "", nil)
		if err != nil {
			t.Errorf("newJob %s: %v", task, err)
			continue
		}
		if job.Name() != task {
			t.Errorf("newJob %s: got job %s", task, job.Name())
		}
	}

	if _, err := newJob(ios, "send", "", nil); err == nil {
		t.Errorf("newJob send: accepted missing commands file")
	}

	job, err := newJob(ios, "send", filepath.Join("..", "examples", "lab", "vlan101.txt"), nil)
	if err != nil {
		t.Fatalf("newJob send: %v", err)
	}
	if send := job.(*dev.SendJob); len(send.Commands) != 5 {
		t.Errorf("newJob send: commands=%q", send.Commands)
	}

	if _, err := newJob(ios, "plan", "", nil); err == nil {
		t.Errorf("newJob plan: offline task accepted")
	}
}

func TestPrintReport(t *testing.T) {
	report := dev.Report{
		Success: 1,
		Failure: 1,
		Results: []dev.Result{
			{DevID: "R1", Output: "interface GigabitEthernet0/1"},
			{DevID: "R2", DevHostPort: "r2:22", Code: dev.ResultLogin, Msg: "bad password"},
		},
	}

	var buf bytes.Buffer
	if status := printReport(&buf, report); status != 1 {
		t.Errorf("printReport: status=%d wanted=1", status)
	}
	out := buf.String()
	if !strings.Contains(out, "=== R1\ninterface GigabitEthernet0/1\n") {
		t.Errorf("printReport: missing output: %q", out)
	}
	if !strings.Contains(out, "FAILED R2 (r2:22): code=2 bad password") {
		t.Errorf("printReport: missing failure: %q", out)
	}

	buf.Reset()
	if status := printReport(&buf, dev.Report{Success: 1, Results: []dev.Result{{DevID: "R1"}}}); status != 0 {
		t.Errorf("printReport: status=%d wanted=0", status)
	}
}

func TestTaskPlan(t *testing.T) {
	ios := newApp()
	opt := conf.New().Options
	ios.options.Set(&opt)
	ios.cases = conf.New().SpecialCases

	var buf bytes.Buffer
	if status := taskPlan(ios, filepath.Join("..", "examples", "lab", "cdp_r1.txt"), []string{"R1"}, &buf); status != 0 {
		t.Fatalf("taskPlan: status=%d", status)
	}

	wanted := `interface GigabitEthernet0/2
description Connect to G0/1 of R2
interface GigabitEthernet0/3
description Connect to G0/1 of S1
interface GigabitEthernet0/1
description Connect to PC
`
	if got := buf.String(); got != wanted {
		t.Errorf("taskPlan: got=%q wanted=%q", got, wanted)
	}

	if status := taskPlan(ios, "", nil, &buf); status != 1 {
		t.Errorf("taskPlan: missing file: status=%d", status)
	}
}

func TestTaskRender(t *testing.T) {
	tmpl, _ := filepath.Abs(filepath.Join("..", "examples", "lab", "router_config.tmpl"))
	vars, _ := filepath.Abs(filepath.Join("..", "examples", "lab", "r2_vars.yml"))

	cfg, err := conf.NewConfigFromString("options:\n  templatepath: " + tmpl + "\ndevices:\n  - id: R2\n    hostport: r2\n    vars: " + vars + "\n  - id: R9\n    hostport: r9\n    vars: /nonexistent/vars.yml\n")
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	ios := newApp()
	ios.options.Set(&cfg.Options)

	var buf bytes.Buffer
	if status := taskRender(ios, cfg, []string{"R2"}, &buf); status != 0 {
		t.Fatalf("taskRender: status=%d", status)
	}
	out := buf.String()
	for _, s := range []string{"=== R2\n", "hostname R2\n", " ip address 10.0.12.2 255.255.255.0\n", "router ospf 1\n", " network 10.0.12.0 0.0.0.255 area 0\n"} {
		if !strings.Contains(out, s) {
			t.Errorf("taskRender: missing %q in %q", s, out)
		}
	}
	if strings.Contains(out, "\n\n") {
		t.Errorf("taskRender: blank line in %q", out)
	}

	if status := taskRender(ios, cfg, []string{"R9"}, &buf); status != 1 {
		t.Errorf("taskRender: missing vars: status=%d", status)
	}
	if status := taskRender(ios, cfg, []string{"R7"}, &buf); status != 1 {
		t.Errorf("taskRender: unknown device: status=%d", status)
	}
}

func TestDeviceMatch(t *testing.T) {
	logger := &testLogger{t}
	tab := dev.NewDeviceTable()
	dev.RegisterModels(logger, tab)

	d, err := dev.NewDevice(tab, &conf.DevConfig{ID: "R1", Model: "cisco-ios", HostPort: "172.31.21.4"})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}

	if !deviceMatch(d, "", "", "") {
		t.Errorf("deviceMatch: empty filter")
	}
	if !deviceMatch(d, "ios", "R", "172.31") {
		t.Errorf("deviceMatch: partial filter")
	}
	if deviceMatch(d, "", "R2", "") {
		t.Errorf("deviceMatch: wrong id matched")
	}
	if statusString(d) != "-" {
		t.Errorf("statusString: never tried: %s", statusString(d))
	}
}

func TestTimestampString(t *testing.T) {
	if s := timestampString(time.Time{}); s != "never" {
		t.Errorf("zero time: %s", s)
	}
	ts := time.Date(2021, 3, 1, 10, 11, 12, 0, time.UTC)
	if s := timestampString(ts); s != "2021-03-01 10:11:12" {
		t.Errorf("timestamp: %s", s)
	}
	if s := durationSecString(1500 * time.Millisecond); s != "1.500s" {
		t.Errorf("duration: %s", s)
	}
}

func TestAddTrailingDot(t *testing.T) {
	if p := addTrailingDot("/var/iosauto/log/iosauto.log"); p != "/var/iosauto/log/iosauto.log." {
		t.Errorf("addTrailingDot: %s", p)
	}
	if p := addTrailingDot("log."); p != "log." {
		t.Errorf("addTrailingDot: %s", p)
	}
	if p := addTrailingDot(""); p != "." {
		t.Errorf("addTrailingDot: empty: %q", p)
	}
}

func labConfig(t *testing.T, hostPort, r9Vars string) *conf.Config {
	tmpl, _ := filepath.Abs(filepath.Join("..", "examples", "lab", "router_config.tmpl"))
	vars, _ := filepath.Abs(filepath.Join("..", "examples", "lab", "r2_vars.yml"))

	cfg, err := conf.NewConfigFromString("options:\n  templatepath: " + tmpl + "\ndevices:\n" +
		"  - id: R2\n    hostport: " + hostPort + "\n    transports: telnet\n    vars: " + vars + "\n" +
		"  - id: R9\n    hostport: " + hostPort + "\n    transports: telnet\n    vars: " + r9Vars + "\n")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestNewJobConfig(t *testing.T) {
	r9Vars, _ := filepath.Abs(filepath.Join("..", "examples", "lab", "r2_vars.yml"))
	cfg := labConfig(t, "r2", r9Vars)

	ios := newApp()
	ios.options.Set(&cfg.Options)

	job, err := newJob(ios, "config", "", cfg.Devices)
	if err != nil {
		t.Fatalf("newJob config: %v", err)
	}

	lines := job.(*dev.ConfigJob).Lines
	if len(lines) != 2 {
		t.Fatalf("newJob config: devices=%d", len(lines))
	}
	if r2 := lines["R2"]; len(r2) < 1 || r2[0] != "hostname R2" {
		t.Errorf("newJob config: R2 lines=%q", r2)
	}
}

func TestRunTaskConfigRenderFailure(t *testing.T) {
	ln, listenErr := net.Listen("tcp", "localhost:0")
	if listenErr != nil {
		t.Fatalf("listen: %v", listenErr)
	}

	var accepts int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}
			atomic.AddInt32(&accepts, 1)
			conn.Close()
		}
	}()

	cfg := labConfig(t, ln.Addr().String(), "/nonexistent/vars.yml")

	repo := temp.MakeTempRepo()
	defer temp.CleanupTempRepo(repo)

	ios := newApp()
	ios.repositoryPath = repo
	ios.options.Set(&cfg.Options)

	_, runErr := runTask(ios, cfg, "config", "", nil)
	if runErr == nil {
		t.Errorf("runTask: missing vars file accepted")
	} else if !strings.Contains(runErr.Error(), "R9") {
		t.Errorf("runTask: error does not name the device: %v", runErr)
	}

	ln.Close()
	<-done

	if n := atomic.LoadInt32(&accepts); n != 0 {
		t.Errorf("runTask: %d connection(s) reached the device", n)
	}
	if devices := ios.table.ListDevices(); len(devices) != 0 {
		t.Errorf("runTask: devices loaded: %d", len(devices))
	}
}
