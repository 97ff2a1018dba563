package dev

import (
	"time"

	"github.com/udhos/iosauto/conf"
)

// Prompt patterns are matched against the last line received.
const (
	ciscoDisabledPrompt = `>\s*$`
	ciscoEnabledPrompt  = `[^)\s]#\s*$` // "R1#" but neither "R1(config)#" nor a bare "#"
	ciscoConfigPrompt   = `\(config[^)]*\)#\s*$`
)

func registerModelCiscoIOS(logger hasPrintf, t *DeviceTable) {
	modelName := "cisco-ios"
	m := &Model{name: modelName}

	m.defaultAttr = conf.DevAttributes{
		NeedLoginChat:   true,
		NeedEnabledMode: true,
		NeedPagingOff:   true,

		EnableCommand:       "enable",
		DisablePagerCommand: "terminal length 0",
		ConfigEnterCommand:  "configure terminal",
		ConfigExitCommand:   "end",
		SaveCommand:         "write memory",
		ExitCommand:         "exit",
		BackupCommand:       "show running-config",
		LineFilter:          "ios",

		UsernamePromptPattern:       `Username:\s*$`,
		PasswordPromptPattern:       `Password:\s*$`,
		EnablePasswordPromptPattern: `Password:\s*$`,
		DisabledPromptPattern:       ciscoDisabledPrompt,
		EnabledPromptPattern:        ciscoEnabledPrompt,
		ConfigPromptPattern:         ciscoConfigPrompt,

		ReadTimeout:         10 * time.Second,
		MatchTimeout:        20 * time.Second,
		SendTimeout:         5 * time.Second,
		CommandReadTimeout:  20 * time.Second,
		CommandMatchTimeout: 60 * time.Second,

		ErrlogHistSize: 60,
	}

	if err := t.SetModel(m, logger); err != nil {
		logger.Printf("registerModelCiscoIOS: %v", err)
	}
}
