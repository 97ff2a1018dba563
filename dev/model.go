// Package dev talks to network devices: transports, prompt chat, and the jobs run on them.
package dev

import (
	"fmt"
	"time"

	"github.com/udhos/iosauto/conf"
	"github.com/udhos/iosauto/store"
)

type hasPrintf interface {
	Printf(fmt string, v ...interface{})
}

// Model holds default chat attributes for a device family.
type Model struct {
	name        string
	defaultAttr conf.DevAttributes
}

// Name returns the model label.
func (m *Model) Name() string {
	return m.name
}

// Device is an inventory entry plus the status of its last job.
type Device struct {
	conf.DevConfig

	devModel    *Model
	lastStatus  bool // true=good false=bad
	lastTry     time.Time
	lastSuccess time.Time
	lastElapsed time.Duration
	lastMessage string
	lastOutput  string
}

func (d *Device) Model() string {
	return d.devModel.name
}

func (d *Device) LastStatus() bool {
	return d.lastStatus
}

func (d *Device) LastTry() time.Time {
	return d.lastTry
}

func (d *Device) LastSuccess() time.Time {
	return d.lastSuccess
}

func (d *Device) LastElapsed() time.Duration {
	return d.lastElapsed
}

// LastMessage is the error message of the last job, if any.
func (d *Device) LastMessage() string {
	return d.lastMessage
}

// LastOutput is the text produced by the last job.
func (d *Device) LastOutput() string {
	return d.lastOutput
}

// RegisterModels adds all supported models to the table.
func RegisterModels(logger hasPrintf, t *DeviceTable) {
	registerModelCiscoIOS(logger, t)
}

// NewDevice builds a device from its inventory entry. Attributes set in
// the entry override the model defaults.
func NewDevice(tab *DeviceTable, cfg *conf.DevConfig) (*Device, error) {
	mod, getErr := tab.GetModel(cfg.Model)
	if getErr != nil {
		return nil, fmt.Errorf("NewDevice: %s: %v", cfg.ID, getErr)
	}

	d := &Device{devModel: mod, DevConfig: *cfg}
	d.Attr = mergeAttr(mod.defaultAttr, cfg.Attr)

	return d, nil
}

// CreateDevices loads the inventory into the table.
func CreateDevices(tab *DeviceTable, logger hasPrintf, list []conf.DevConfig) error {
	for i := range list {
		c := &list[i]
		d, newErr := NewDevice(tab, c)
		if newErr != nil {
			return newErr
		}
		if setErr := tab.SetDevice(d); setErr != nil {
			return fmt.Errorf("CreateDevices: %s: %v", c.ID, setErr)
		}
		logger.Printf("CreateDevices: %s %s %s %s", c.Model, c.ID, c.HostPort, c.Transports)
	}
	return nil
}

func mergeAttr(def, a conf.DevAttributes) conf.DevAttributes {
	str := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	dur := func(dst *time.Duration, src time.Duration) {
		if src > 0 {
			*dst = src
		}
	}

	m := def

	m.NeedLoginChat = def.NeedLoginChat || a.NeedLoginChat
	m.NeedEnabledMode = def.NeedEnabledMode || a.NeedEnabledMode
	m.NeedPagingOff = def.NeedPagingOff || a.NeedPagingOff

	str(&m.EnableCommand, a.EnableCommand)
	str(&m.DisablePagerCommand, a.DisablePagerCommand)
	str(&m.ConfigEnterCommand, a.ConfigEnterCommand)
	str(&m.ConfigExitCommand, a.ConfigExitCommand)
	str(&m.SaveCommand, a.SaveCommand)
	str(&m.ExitCommand, a.ExitCommand)
	str(&m.BackupCommand, a.BackupCommand)
	str(&m.LineFilter, a.LineFilter)
	str(&m.UsernamePromptPattern, a.UsernamePromptPattern)
	str(&m.PasswordPromptPattern, a.PasswordPromptPattern)
	str(&m.EnablePasswordPromptPattern, a.EnablePasswordPromptPattern)
	str(&m.DisabledPromptPattern, a.DisabledPromptPattern)
	str(&m.EnabledPromptPattern, a.EnabledPromptPattern)
	str(&m.ConfigPromptPattern, a.ConfigPromptPattern)

	dur(&m.ReadTimeout, a.ReadTimeout)
	dur(&m.MatchTimeout, a.MatchTimeout)
	dur(&m.SendTimeout, a.SendTimeout)
	dur(&m.CommandReadTimeout, a.CommandReadTimeout)
	dur(&m.CommandMatchTimeout, a.CommandMatchTimeout)

	if a.ErrlogHistSize > 0 {
		m.ErrlogHistSize = a.ErrlogHistSize
	}

	return m
}

// DeviceDir is the per-device folder under the repository.
func DeviceDir(repository, id string) string {
	return store.Join(repository, id)
}

// DevicePathPrefix is the store prefix for the device backups.
func DevicePathPrefix(repository, id string) string {
	return store.Join(DeviceDir(repository, id), id) + "."
}

// UpdateLastSuccess sets the last success of every device from the time of its newest backup.
func UpdateLastSuccess(tab *DeviceTable, logger hasPrintf, repository string) {
	for _, d := range tab.ListDevices() {
		prefix := DevicePathPrefix(repository, d.ID)

		lastConfig, lastErr := store.FindLastConfig(prefix, logger)
		if lastErr != nil {
			logger.Printf("UpdateLastSuccess: find last: '%s': %v", prefix, lastErr)
			continue
		}

		modTime, _, infoErr := store.FileInfo(lastConfig)
		if infoErr != nil {
			logger.Printf("UpdateLastSuccess: info: '%s': %v", lastConfig, infoErr)
			continue
		}

		d.lastSuccess = modTime
		d.lastStatus = true
		if updateErr := tab.UpdateDevice(d); updateErr != nil {
			logger.Printf("UpdateLastSuccess: update: '%s': %v", d.ID, updateErr)
		}
	}
}
