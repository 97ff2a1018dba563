// Package conf holds the iosauto inventory and application settings.
package conf

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/udhos/iosauto/cdp"
	"github.com/udhos/iosauto/store"
)

// Config is the full YAML configuration file.
type Config struct {
	Options      AppConfig
	Devices      []DevConfig
	SpecialCases cdp.SpecialCases
}

// AppConfig holds global settings.
type AppConfig struct {
	MaxConcurrency     int   // 1 means sequential
	MaxConfigFiles     int   // backups kept per device
	MaxConfigLoadSize  int64 // read limit for backups and templates
	TemplatePath       string
	VarsPath           string
	CdpDetail          bool // parse "show cdp neighbors detail"
	VerifyDescriptions bool // check "show interfaces description" after describe
	SaveConfig         bool // "write memory" after pushing configuration
	DryRun             bool // log commands but do not push them

	KnownHostsFile   string // empty: accept any host key
	Ciphers          []string
	KeyExchanges     []string
	PubkeyAlgorithms []string // e.g. [ssh-rsa] for old IOS images
	DialTimeout      time.Duration
}

// DevAttributes holds per-model chat parameters.
type DevAttributes struct {
	NeedLoginChat   bool // telnet login
	NeedEnabledMode bool
	NeedPagingOff   bool

	EnableCommand       string // enable
	DisablePagerCommand string // terminal length 0
	ConfigEnterCommand  string // configure terminal
	ConfigExitCommand   string // end
	SaveCommand         string // write memory
	ExitCommand         string // exit
	BackupCommand       string // show running-config
	LineFilter          string

	UsernamePromptPattern       string
	PasswordPromptPattern       string
	EnablePasswordPromptPattern string
	DisabledPromptPattern       string
	EnabledPromptPattern        string
	ConfigPromptPattern         string

	ReadTimeout         time.Duration // per read
	MatchTimeout        time.Duration // whole prompt match
	SendTimeout         time.Duration
	CommandReadTimeout  time.Duration
	CommandMatchTimeout time.Duration

	ErrlogHistSize int
}

// DevConfig is one device of the inventory.
type DevConfig struct {
	Debug          bool
	Model          string
	ID             string
	HostPort       string
	Transports     string // ssh,telnet
	LoginUser      string
	LoginPassword  string
	EnablePassword string
	KeyFile        string
	Template       string // overrides Options.TemplatePath
	Vars           string // overrides Options.VarsPath
	Attr           DevAttributes
}

// New creates a configuration with defaults.
func New() *Config {
	return &Config{
		Options: AppConfig{
			MaxConcurrency:    1,
			MaxConfigFiles:    10,
			MaxConfigLoadSize: 10000000, // 10M
			DialTimeout:       20 * time.Second,
		},
		SpecialCases: cdp.DefaultSpecialCases,
	}
}

// Load reads the configuration, which may live on S3.
func Load(path string, maxSize int64) (*Config, error) {
	b, readErr := store.FileRead(path, maxSize)
	if readErr != nil {
		return nil, fmt.Errorf("Load: read: %v", readErr)
	}

	c, parseErr := newConfigFromBuf(b)
	if parseErr != nil {
		return nil, fmt.Errorf("Load: %s: %v", path, parseErr)
	}

	return c, nil
}

// NewConfigFromString parses a configuration held in memory.
func NewConfigFromString(str string) (*Config, error) {
	return newConfigFromBuf([]byte(str))
}

func newConfigFromBuf(b []byte) (*Config, error) {
	c := New()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) check() error {
	if c.Options.MaxConcurrency < 1 {
		c.Options.MaxConcurrency = 1
	}

	seen := map[string]bool{}

	for i := range c.Devices {
		d := &c.Devices[i]
		if d.ID == "" {
			return fmt.Errorf("device #%d: missing id", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("device %s: duplicate id", d.ID)
		}
		seen[d.ID] = true
		if d.HostPort == "" {
			return fmt.Errorf("device %s: missing hostport", d.ID)
		}
		if d.Model == "" {
			d.Model = "cisco-ios"
		}
		if d.Transports == "" {
			d.Transports = "ssh"
		}
	}

	return nil
}

// Select returns the devices named in ids, in ids order. Empty ids selects all devices.
func (c *Config) Select(ids []string) ([]DevConfig, error) {
	if len(ids) < 1 {
		return c.Devices, nil
	}

	var list []DevConfig

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		d, found := c.device(id)
		if !found {
			return nil, fmt.Errorf("Select: device not found: %s", id)
		}
		list = append(list, d)
	}

	return list, nil
}

func (c *Config) device(id string) (DevConfig, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DevConfig{}, false
}

// Dump encodes the configuration as YAML.
func (c *Config) Dump() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Dump encodes the global settings as YAML.
func (a *AppConfig) Dump() ([]byte, error) {
	return yaml.Marshal(a)
}

// Dump encodes the device as YAML. Passwords are masked.
func (d *DevConfig) Dump() ([]byte, error) {
	masked := *d
	if masked.LoginPassword != "" {
		masked.LoginPassword = "********"
	}
	if masked.EnablePassword != "" {
		masked.EnablePassword = "********"
	}
	return yaml.Marshal(&masked)
}

// TemplateFiles returns the template and vars paths for the device.
func (d *DevConfig) TemplateFiles(opt *AppConfig) (string, string) {
	tmpl := d.Template
	if tmpl == "" {
		tmpl = opt.TemplatePath
	}
	vars := d.Vars
	if vars == "" {
		vars = opt.VarsPath
	}
	return tmpl, vars
}
