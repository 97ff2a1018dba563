package conf

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/udhos/iosauto/store"
	"github.com/udhos/iosauto/temp"
)

// testLogger: wrap Printf interface around *testing.T
type testLogger struct {
	*testing.T
}

func (t *testLogger) Printf(format string, v ...interface{}) {
	t.Logf("conf testLogger: "+format, v...)
}

const labConfig = `
options:
  maxconcurrency: 0
  templatepath: router_config.tmpl
  varspath: router_vars.yml
  pubkeyalgorithms: [ssh-rsa]
  dialtimeout: 5s
devices:
  - id: R1
    hostport: 172.31.21.4
    loginuser: admin
    keyfile: /home/devasc/.ssh/id_rsa
  - id: R2
    model: cisco-ios
    hostport: 172.31.21.5:22
    transports: ssh,telnet
    loginpassword: cisco
    enablepassword: cisco
    template: r2.tmpl
specialcases:
  - device: R1
    localinterface: GigabitEthernet0/1
    stub: PC
`

func TestConfigParse(t *testing.T) {
	c, err := NewConfigFromString(labConfig)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if c.Options.MaxConcurrency != 1 {
		t.Errorf("maxconcurrency: got=%d wanted=1", c.Options.MaxConcurrency)
	}
	if c.Options.MaxConfigFiles != 10 {
		t.Errorf("maxconfigfiles default: got=%d", c.Options.MaxConfigFiles)
	}
	if c.Options.DialTimeout != 5*time.Second {
		t.Errorf("dialtimeout: got=%v", c.Options.DialTimeout)
	}
	if len(c.Options.PubkeyAlgorithms) != 1 || c.Options.PubkeyAlgorithms[0] != "ssh-rsa" {
		t.Errorf("pubkeyalgorithms: got=%v", c.Options.PubkeyAlgorithms)
	}

	if len(c.Devices) != 2 {
		t.Fatalf("devices: got=%d wanted=2", len(c.Devices))
	}
	r1 := c.Devices[0]
	if r1.Model != "cisco-ios" || r1.Transports != "ssh" {
		t.Errorf("R1 defaults: model=%s transports=%s", r1.Model, r1.Transports)
	}

	if len(c.SpecialCases) != 1 || c.SpecialCases[0].Stub != "PC" {
		t.Errorf("specialcases: got=%v", c.SpecialCases)
	}

	tmpl, vars := c.Devices[1].TemplateFiles(&c.Options)
	if tmpl != "r2.tmpl" || vars != "router_vars.yml" {
		t.Errorf("R2 template files: tmpl=%s vars=%s", tmpl, vars)
	}
}

func TestConfigDefaultSpecialCases(t *testing.T) {
	c, err := NewConfigFromString("devices:\n  - id: S1\n    hostport: 172.31.21.3\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(c.SpecialCases) != 3 {
		t.Errorf("default special cases: got=%v", c.SpecialCases)
	}
}

func TestConfigBad(t *testing.T) {
	bad := []string{
		"devices: [",
		"devices:\n  - hostport: 1.1.1.1\n",
		"devices:\n  - id: R1\n",
		"devices:\n  - id: R1\n    hostport: a\n  - id: R1\n    hostport: b\n",
	}
	for _, b := range bad {
		if _, err := NewConfigFromString(b); err == nil {
			t.Errorf("bad config accepted: %q", b)
		}
	}
}

func TestConfigSelect(t *testing.T) {
	c, err := NewConfigFromString(labConfig)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	all, _ := c.Select(nil)
	if len(all) != 2 {
		t.Errorf("select all: got=%d", len(all))
	}

	list, selErr := c.Select([]string{"R2", " R1 "})
	if selErr != nil {
		t.Fatalf("select: %v", selErr)
	}
	if len(list) != 2 || list[0].ID != "R2" || list[1].ID != "R1" {
		t.Errorf("select order: got=%v", list)
	}

	if _, err := c.Select([]string{"R9"}); err == nil {
		t.Errorf("unknown device selected")
	}
}

func TestConfigDump(t *testing.T) {
	c, err := NewConfigFromString(labConfig)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	b, dumpErr := c.Devices[1].Dump()
	if dumpErr != nil {
		t.Fatalf("dump: %v", dumpErr)
	}
	if strings.Contains(string(b), ": cisco\n") {
		t.Errorf("password not masked: %s", b)
	}

	full, fullErr := c.Dump()
	if fullErr != nil {
		t.Fatalf("dump: %v", fullErr)
	}
	c2, parseErr := NewConfigFromString(string(full))
	if parseErr != nil {
		t.Fatalf("reparse: %v", parseErr)
	}
	if c2.Devices[1].EnablePassword != "cisco" || c2.Options.DialTimeout != c.Options.DialTimeout {
		t.Errorf("reparse mismatch: %v", c2)
	}
}

func TestConfigLoad(t *testing.T) {
	repo := temp.MakeTempRepo()
	defer temp.CleanupTempRepo(repo)

	store.Init(&testLogger{t}, "")

	path := filepath.Join(repo, "lab.yaml")
	if err := ioutil.WriteFile(path, []byte(labConfig), 0640); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, loadErr := Load(path, 1000000)
	if loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}
	if len(c.Devices) != 2 {
		t.Errorf("devices: got=%d", len(c.Devices))
	}

	if _, err := Load(filepath.Join(repo, "missing.yaml"), 1000000); err == nil {
		t.Errorf("missing file loaded")
	}
}

func TestOptions(t *testing.T) {
	o := NewOptions()
	o.Set(&AppConfig{MaxConcurrency: 3})
	opt := o.Get()
	opt.MaxConcurrency = 7
	if o.Get().MaxConcurrency != 3 {
		t.Errorf("Get should return a copy")
	}
}

func TestConfigLabExample(t *testing.T) {
	c, err := Load(filepath.Join("..", "examples", "lab", "lab.yaml"), 1000000)
	if err != nil {
		t.Fatalf("load lab.yaml: %v", err)
	}
	if len(c.Devices) != 3 {
		t.Fatalf("devices: got=%d wanted=3", len(c.Devices))
	}
	if m := c.Devices[0].Model; m != "cisco-ios" {
		t.Errorf("default model: got=%s", m)
	}
	if tr := c.Devices[2].Transports; tr != "ssh,telnet" {
		t.Errorf("S1 transports: got=%s", tr)
	}
	if len(c.SpecialCases) != 3 {
		t.Errorf("special cases: got=%d wanted=3", len(c.SpecialCases))
	}
	if !c.Options.VerifyDescriptions || !c.Options.SaveConfig {
		t.Errorf("options: %+v", c.Options)
	}
}
