package dev

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/udhos/iosauto/cdp"
	"github.com/udhos/iosauto/conf"
	"github.com/udhos/iosauto/intf"
	"github.com/udhos/iosauto/store"
)

// DescribeJob sets every interface description from the CDP neighbors.
type DescribeJob struct {
	Cases cdp.SpecialCases
}

func (j *DescribeJob) Name() string {
	return "describe"
}

func (j *DescribeJob) Run(s *Session, d *Device, opt *conf.AppConfig, logger hasPrintf) (string, error) {
	cmd := "show cdp neighbors"
	if opt.CdpDetail {
		cmd += " detail"
	}

	output, showErr := s.SendCommand(cmd)
	if showErr != nil {
		return "", fmt.Errorf("DescribeJob: %v", showErr)
	}

	commands, neighbors, skipped := cdp.Plan(d.ID, output, opt.CdpDetail, j.Cases)
	if len(skipped) > 0 {
		logger.Printf("DescribeJob: %s: skipped %d row(s): %q", d.ID, len(skipped), skipped)
	}

	logger.Printf("DescribeJob: %s: neighbors=%d commands=%d", d.ID, len(neighbors), len(commands))

	plan := strings.Join(commands, "\n") + "\n"

	if len(commands) < 1 {
		return "", nil
	}

	if opt.DryRun {
		logger.Printf("DescribeJob: %s: dry run: %q", d.ID, commands)
		return plan, nil
	}

	out, configErr := s.SendConfigSet(commands)
	if configErr != nil {
		return out, fmt.Errorf("DescribeJob: %v", configErr)
	}

	if opt.VerifyDescriptions {
		wanted := map[string]string{}
		for _, n := range neighbors {
			wanted[n.LocalInterface] = cdp.Description(n)
		}

		table, descErr := s.SendCommand("show interfaces description")
		if descErr != nil {
			return out, fmt.Errorf("DescribeJob: verify: %v", descErr)
		}

		if mismatch := intf.VerifyDescriptions(wanted, intf.ParseDescriptions(table)); len(mismatch) > 0 {
			return out, fmt.Errorf("DescribeJob: verify: %s", strings.Join(mismatch, "; "))
		}

		logger.Printf("DescribeJob: %s: verified %d description(s)", d.ID, len(wanted))
	}

	if opt.SaveConfig {
		if saveOut, saveErr := s.SaveConfig(); saveErr != nil {
			return out + saveOut, fmt.Errorf("DescribeJob: %v", saveErr)
		}
	}

	return plan, nil
}

// ConfigJob pushes configuration rendered before any device is contacted.
// Lines holds the rendered lines per device id.
type ConfigJob struct {
	Lines map[string][]string
}

func (j *ConfigJob) Name() string {
	return "config"
}

func (j *ConfigJob) Run(s *Session, d *Device, opt *conf.AppConfig, logger hasPrintf) (string, error) {
	lines, found := j.Lines[d.ID]
	if !found {
		return "", fmt.Errorf("ConfigJob: %s: no rendered configuration", d.ID)
	}

	logger.Printf("ConfigJob: %s: lines=%d", d.ID, len(lines))

	return pushLines(s, d, opt, logger, "ConfigJob", lines)
}

// SendJob pushes a fixed list of configuration commands.
type SendJob struct {
	Commands []string
}

func (j *SendJob) Name() string {
	return "send"
}

func (j *SendJob) Run(s *Session, d *Device, opt *conf.AppConfig, logger hasPrintf) (string, error) {
	return pushLines(s, d, opt, logger, "SendJob", j.Commands)
}

func pushLines(s *Session, d *Device, opt *conf.AppConfig, logger hasPrintf, label string, lines []string) (string, error) {
	if opt.DryRun {
		logger.Printf("%s: %s: dry run: %q", label, d.ID, lines)
		return strings.Join(lines, "\n") + "\n", nil
	}

	out, configErr := s.SendConfigSet(lines)
	if configErr != nil {
		return out, fmt.Errorf("%s: %v", label, configErr)
	}

	if opt.SaveConfig {
		saveOut, saveErr := s.SaveConfig()
		out += saveOut
		if saveErr != nil {
			return out, fmt.Errorf("%s: %v", label, saveErr)
		}
	}

	return out, nil
}

// StatusJob reports interface state and last input/output.
type StatusJob struct{}

func (j *StatusJob) Name() string {
	return "status"
}

func (j *StatusJob) Run(s *Session, d *Device, opt *conf.AppConfig, logger hasPrintf) (string, error) {
	brief, briefErr := s.SendCommand("show ip interface brief")
	if briefErr != nil {
		return "", fmt.Errorf("StatusJob: %v", briefErr)
	}

	detail, detailErr := s.SendCommand("show interfaces")
	if detailErr != nil {
		return "", fmt.Errorf("StatusJob: %v", detailErr)
	}

	list := intf.Merge(intf.ParseBrief(brief), intf.ParseLastIO(detail))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Device %s (%s)\n", d.ID, d.HostPort)
	up, down, writeErr := intf.WriteReport(&buf, list)
	if writeErr != nil {
		return "", fmt.Errorf("StatusJob: %v", writeErr)
	}

	logger.Printf("StatusJob: %s: interfaces=%d up=%d down=%d", d.ID, len(list), up, down)

	return buf.String(), nil
}

// BackupJob saves the running configuration into the repository. Only
// changed configurations create a new file.
type BackupJob struct {
	Repository string
	Filters    *FilterTable
}

func (j *BackupJob) Name() string {
	return "backup"
}

func (j *BackupJob) Run(s *Session, d *Device, opt *conf.AppConfig, logger hasPrintf) (string, error) {
	config, showErr := s.SendCommand(d.Attr.BackupCommand)
	if showErr != nil {
		return "", fmt.Errorf("BackupJob: %v", showErr)
	}

	if j.Filters != nil {
		config = j.Filters.Apply(logger, d.Debug, d.Attr.LineFilter, config)
	}

	devDir := DeviceDir(j.Repository, d.ID)
	if mkdirErr := store.MkDir(devDir); mkdirErr != nil {
		return "", fmt.Errorf("BackupJob: mkdir: %v", mkdirErr)
	}

	prefix := DevicePathPrefix(j.Repository, d.ID)

	previous, _ := store.FindLastConfig(prefix, logger)

	writeFunc := func(w store.HasWrite) error {
		n, writeErr := w.Write([]byte(config))
		if writeErr != nil {
			return fmt.Errorf("writeFunc: %v", writeErr)
		}
		if n != len(config) {
			return fmt.Errorf("writeFunc: partial: wrote=%d size=%d", n, len(config))
		}
		return nil
	}

	path, saveErr := store.SaveNewConfig(prefix, opt.MaxConfigFiles, logger, writeFunc, true, "text/plain")
	if saveErr != nil {
		return "", fmt.Errorf("BackupJob: %v", saveErr)
	}

	if path == previous {
		logger.Printf("BackupJob: %s: unchanged: '%s'", d.ID, path)
		return path + " unchanged\n", nil
	}

	logger.Printf("BackupJob: %s: saved to '%s'", d.ID, path)

	diff, changes, diffErr := store.DiffLast(prefix, opt.MaxConfigLoadSize, logger)
	if diffErr != nil {
		logger.Printf("BackupJob: %s: diff: %v", d.ID, diffErr)
		return path + "\n", nil
	}

	logger.Printf("BackupJob: %s: %d changed line(s)", d.ID, changes)

	return path + "\n" + diff, nil
}
