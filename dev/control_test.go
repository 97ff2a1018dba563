package dev

import (
	"bytes"
	"regexp"
	"testing"
)

func TestControl1(t *testing.T) {
	bs := string([]byte{BS})
	esc := string([]byte{ESC})

	control(t, "empty", "", "")
	control(t, "plain", "12345", "12345")
	control(t, "crlf", "a\r\nb\r\n", "a\nb\n")
	control(t, "crcrlf", "a\r\r\nb", "a\nb")
	control(t, "trailing-cr", "12345\r", "12345")
	control(t, "sole-cr", "123\r45", "45")
	control(t, "sole-cr-line2", "x\n123\r45", "x\n45")
	control(t, "bs", "12345"+bs, "1234")
	control(t, "middle-bs", "123"+bs+"45", "1245")
	control(t, "bs-at-start", bs+"12", "12")
	control(t, "bs-keeps-lf", "a\n"+bs+"b", "a\nb")
	control(t, "tab", "a\tb", "a\tb")
	control(t, "bell", "a\x07b", "ab")
	control(t, "ansi-csi", "R1"+esc+"[K#", "R1#")
	control(t, "ansi-color", esc+"[1;32mok"+esc+"[0m", "ok")
	control(t, "ansi-short", esc+"7R1#", "R1#")
}

func control(t *testing.T, label, input, wanted string) {
	got := removeControlChars([]byte(input))
	if !bytes.Equal(got, []byte(wanted)) {
		t.Errorf("%s: got=%q wanted=%q", label, got, wanted)
	}
}

func TestFindLastLine(t *testing.T) {
	lastLine(t, "", "")
	lastLine(t, "R1#", "R1#")
	lastLine(t, "show ver\r\nR1#", "R1#")
	lastLine(t, "line1\nline2\r\n", "line2")
	lastLine(t, "a\rR1(config)#", "R1(config)#")
}

func lastLine(t *testing.T, input, wanted string) {
	got := string(findLastLine([]byte(input)))
	if got != wanted {
		t.Errorf("findLastLine(%q): got=%q wanted=%q", input, got, wanted)
	}
}

func TestCiscoPrompts(t *testing.T) {
	prompts := []struct {
		line     string
		disabled bool
		enabled  bool
		config   bool
	}{
		{"R1>", true, false, false},
		{"R1#", false, true, false},
		{"R1# ", false, true, false},
		{"switch-01#", false, true, false},
		{"R1(config)#", false, false, true},
		{"R1(config-if)#", false, false, true},
		{"#", false, false, false},
		{"  #", false, false, false},
		{"banner motd #", false, false, false},
		{"interface Gi0/1", false, false, false},
	}

	disabled := regexp.MustCompile(ciscoDisabledPrompt)
	enabled := regexp.MustCompile(ciscoEnabledPrompt)
	config := regexp.MustCompile(ciscoConfigPrompt)

	for _, p := range prompts {
		if got := disabled.MatchString(p.line); got != p.disabled {
			t.Errorf("disabled %q: got=%v wanted=%v", p.line, got, p.disabled)
		}
		if got := enabled.MatchString(p.line); got != p.enabled {
			t.Errorf("enabled %q: got=%v wanted=%v", p.line, got, p.enabled)
		}
		if got := config.MatchString(p.line); got != p.config {
			t.Errorf("config %q: got=%v wanted=%v", p.line, got, p.config)
		}
	}
}
