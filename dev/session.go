package dev

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/udhos/iosauto/conf"
)

// StepError tells which step of a device session failed.
type StepError struct {
	Code      int
	Transport string
	Err       error
}

func (e *StepError) Error() string {
	return e.Err.Error()
}

// Session is an open CLI session in enabled mode with the pager off.
type Session struct {
	dev       *Device
	logger    hasPrintf
	t         transp
	transport string
	opt       *conf.AppConfig
}

var configErrorPattern = regexp.MustCompile(`^%\s*(Invalid|Incomplete|Ambiguous)`)

// "[confirm]" or "Destination filename [startup-config]?"
const saveConfirmPattern = `(\[confirm\]|\]\?)\s*$`

// Open connects to the device and leaves the session at the enabled prompt.
// Errors are *StepError.
func Open(logger hasPrintf, d *Device, opt *conf.AppConfig) (*Session, error) {
	t, transport, logged, err := openTransport(logger, d, opt)
	if err != nil {
		return nil, &StepError{Code: ResultTransport, Transport: transport, Err: err}
	}

	logger.Printf("Open: %s %s %s - transport OPEN logged=%v", d.Model(), d.ID, d.HostPort, logged)

	s := &Session{dev: d, logger: logger, t: t, transport: transport, opt: opt}

	enabled := false

	if d.Attr.NeedLoginChat && !logged {
		e, loginErr := s.login()
		if loginErr != nil {
			t.Close()
			return nil, &StepError{Code: ResultLogin, Transport: transport, Err: fmt.Errorf("Open: login: %v", loginErr)}
		}
		enabled = e
	}

	if d.Attr.NeedEnabledMode && !enabled {
		if enableErr := s.enable(); enableErr != nil {
			t.Close()
			return nil, &StepError{Code: ResultEnable, Transport: transport, Err: fmt.Errorf("Open: enable: %v", enableErr)}
		}
	}

	if d.Attr.NeedPagingOff {
		if pagingErr := s.pagingOff(); pagingErr != nil {
			t.Close()
			return nil, &StepError{Code: ResultPager, Transport: transport, Err: fmt.Errorf("Open: pager off: %v", pagingErr)}
		}
	}

	return s, nil
}

// Transport is the transport actually used: ssh or telnet.
func (s *Session) Transport() string {
	return s.transport
}

// SendCommand runs an exec command. The output excludes the command echo
// and the trailing prompt.
func (s *Session) SendCommand(cmd string) (string, error) {
	a := &s.dev.Attr

	if err := s.sendln(cmd); err != nil {
		return "", fmt.Errorf("SendCommand: could not send '%s': %v", cmd, err)
	}

	_, buf, matchErr := s.match([]string{a.EnabledPromptPattern}, a.CommandReadTimeout, a.CommandMatchTimeout)
	if matchErr != nil {
		return "", fmt.Errorf("SendCommand: '%s': could not match command prompt: %v", cmd, matchErr)
	}

	return commandOutput(buf, cmd), nil
}

// SendConfigSet enters configuration mode, sends each line and returns to
// the enabled prompt. Lines rejected by the device are reported in the
// error after all lines have been sent.
func (s *Session) SendConfigSet(cmds []string) (string, error) {
	a := &s.dev.Attr
	prompts := []string{a.ConfigPromptPattern, a.EnabledPromptPattern}

	var out strings.Builder
	var rejected []string

	if err := s.sendln(a.ConfigEnterCommand); err != nil {
		return "", fmt.Errorf("SendConfigSet: could not send '%s': %v", a.ConfigEnterCommand, err)
	}
	m, buf, matchErr := s.match(prompts[:1], a.ReadTimeout, a.MatchTimeout)
	if matchErr != nil {
		return "", fmt.Errorf("SendConfigSet: could not enter config mode: %v", matchErr)
	}
	out.Write(removeControlChars(buf))

	inConfig := true

	for i, c := range cmds {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if !inConfig {
			s.logger.Printf("SendConfigSet: %s: left config mode before line [%d] '%s'", s.dev.ID, i, c)
			return out.String(), fmt.Errorf("SendConfigSet: left config mode before line [%d] '%s'", i, c)
		}

		if err := s.sendln(c); err != nil {
			return out.String(), fmt.Errorf("SendConfigSet: could not send line [%d] '%s': %v", i, c, err)
		}
		m, buf, matchErr = s.match(prompts, a.ReadTimeout, a.MatchTimeout)
		if matchErr != nil {
			return out.String(), fmt.Errorf("SendConfigSet: line [%d] '%s': could not match prompt: %v", i, c, matchErr)
		}
		clean := removeControlChars(buf)
		out.Write(clean)
		rejected = append(rejected, configErrors(c, clean)...)

		inConfig = m == 0
	}

	if inConfig {
		if err := s.sendln(a.ConfigExitCommand); err != nil {
			return out.String(), fmt.Errorf("SendConfigSet: could not send '%s': %v", a.ConfigExitCommand, err)
		}
		_, buf, matchErr = s.match(prompts[1:], a.ReadTimeout, a.MatchTimeout)
		if matchErr != nil {
			return out.String(), fmt.Errorf("SendConfigSet: could not leave config mode: %v", matchErr)
		}
		out.Write(removeControlChars(buf))
	}

	if len(rejected) > 0 {
		return out.String(), fmt.Errorf("SendConfigSet: %d line(s) rejected: %s", len(rejected), strings.Join(rejected, "; "))
	}

	return out.String(), nil
}

// SaveConfig copies the running configuration to startup, answering a
// possible "[confirm]" or filename question with the default.
func (s *Session) SaveConfig() (string, error) {
	a := &s.dev.Attr

	if err := s.sendln(a.SaveCommand); err != nil {
		return "", fmt.Errorf("SaveConfig: could not send '%s': %v", a.SaveCommand, err)
	}

	var out strings.Builder

	for {
		m, buf, matchErr := s.match([]string{a.EnabledPromptPattern, saveConfirmPattern}, a.CommandReadTimeout, a.CommandMatchTimeout)
		if matchErr != nil {
			return out.String(), fmt.Errorf("SaveConfig: could not match prompt: %v", matchErr)
		}
		out.Write(removeControlChars(buf))
		if m == 0 {
			break
		}
		if err := s.sendln(""); err != nil {
			return out.String(), fmt.Errorf("SaveConfig: could not confirm: %v", err)
		}
	}

	return out.String(), nil
}

// Close logs out and closes the transport.
func (s *Session) Close() error {
	if err := s.sendln(s.dev.Attr.ExitCommand); err != nil {
		s.logf("Close: exit: %v", err)
	}
	return s.t.Close()
}

func commandOutput(buf []byte, cmd string) string {
	lines := strings.Split(string(removeControlChars(buf)), "\n")

	first := 0
	if cmd != "" && len(lines) > 0 && strings.HasSuffix(strings.TrimSpace(lines[0]), strings.TrimSpace(cmd)) {
		first = 1 // echo
	}
	last := len(lines) - 1 // prompt
	if last < first {
		return ""
	}

	body := lines[first:last]
	if len(body) < 1 {
		return ""
	}

	return strings.Join(body, "\n") + "\n"
}

func configErrors(cmd string, output []byte) []string {
	var list []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if configErrorPattern.MatchString(line) {
			list = append(list, fmt.Sprintf("'%s': %s", cmd, line))
		}
	}
	return list
}

type hasTimeout interface {
	Timeout() bool
}

// match reads until the last line received matches one of the patterns.
// It returns the index of the matching pattern and everything read.
func (s *Session) match(patterns []string, readTimeout, matchTimeout time.Duration) (int, []byte, error) {
	const badIndex = -1
	var matchBuf []byte

	expList := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		exp, badExp := regexp.Compile(p)
		if badExp != nil {
			return badIndex, matchBuf, fmt.Errorf("match: bad pattern '%s': %v", p, badExp)
		}
		expList[i] = exp
	}

	begin := time.Now()
	buf := make([]byte, 100000)

	for {
		now := time.Now()
		if now.Sub(begin) > matchTimeout {
			return badIndex, matchBuf, fmt.Errorf("match: timed out: %s", matchTimeout)
		}

		if err := s.t.SetDeadline(now.Add(readTimeout)); err != nil {
			return badIndex, matchBuf, fmt.Errorf("match: could not set read timeout: %v", err)
		}

		eof := false

		n, readErr := s.t.Read(buf)
		if readErr != nil {
			if te, ok := readErr.(hasTimeout); ok && te.Timeout() {
				return badIndex, matchBuf, fmt.Errorf("match: read timed out (%s): %v", readTimeout, readErr)
			}
			switch readErr {
			case io.EOF:
				s.logf("debug recv: EOF")
				eof = true
			default:
				return badIndex, matchBuf, fmt.Errorf("match: unexpected error: %v", readErr)
			}
		}
		if n < 1 && !eof {
			return badIndex, matchBuf, fmt.Errorf("match: unexpected empty read")
		}

		lastRead := buf[:n]

		s.logf("debug recv: [%q]", lastRead)

		matchBuf = append(matchBuf, lastRead...)

		lastLine := removeControlChars(findLastLine(matchBuf))

		for i, exp := range expList {
			if exp.Match(lastLine) {
				return i, matchBuf, nil
			}
		}

		if eof {
			return badIndex, matchBuf, io.EOF
		}
	}
}

func (s *Session) logf(format string, v ...interface{}) {
	if s.dev.Debug {
		s.logger.Printf(s.dev.ID+" "+format, v...)
	}
}

func (s *Session) sendln(msg string) error {
	deadline := time.Now().Add(s.dev.Attr.SendTimeout)
	if err := s.t.SetDeadline(deadline); err != nil {
		return fmt.Errorf("send: could not set write timeout: %v", err)
	}

	s.logf("debug send: [%q]", msg)

	_, wrErr := s.t.Write([]byte(msg + "\n"))

	return wrErr
}

func (s *Session) pagingOff() error {
	a := &s.dev.Attr

	if pagerErr := s.sendln(a.DisablePagerCommand); pagerErr != nil {
		return fmt.Errorf("pager off: could not send pager disabling command '%s': %v", a.DisablePagerCommand, pagerErr)
	}

	if _, _, err := s.match([]string{a.EnabledPromptPattern}, a.ReadTimeout, a.MatchTimeout); err != nil {
		return fmt.Errorf("pager off: could not match command prompt: %v", err)
	}

	return nil
}

func (s *Session) enable() error {
	a := &s.dev.Attr

	// test enabled prompt

	if emptyErr := s.sendln(""); emptyErr != nil {
		return fmt.Errorf("enable: could not send empty: %v", emptyErr)
	}

	m0, _, err0 := s.match([]string{a.DisabledPromptPattern, a.EnabledPromptPattern}, a.ReadTimeout, a.MatchTimeout)
	if err0 != nil {
		return fmt.Errorf("enable: could not find command prompt: %v", err0)
	}

	switch m0 {
	case 0:
		s.logger.Printf("enable: %s: found disabled command prompt", s.dev.ID)
	case 1:
		s.logger.Printf("enable: %s: found enabled command prompt", s.dev.ID)
		return nil
	}

	// send enable

	if enableErr := s.sendln(a.EnableCommand); enableErr != nil {
		return fmt.Errorf("enable: could not send enable command '%s': %v", a.EnableCommand, enableErr)
	}

	m, _, err := s.match([]string{a.EnablePasswordPromptPattern, a.EnabledPromptPattern}, a.ReadTimeout, a.MatchTimeout)
	if err != nil {
		return fmt.Errorf("enable: could not match after-enable prompt: %v", err)
	}

	if m == 1 {
		return nil // found enabled command prompt
	}

	if passErr := s.sendln(s.dev.EnablePassword); passErr != nil {
		return fmt.Errorf("enable: could not send enable password: %v", passErr)
	}

	if _, _, mismatch := s.match([]string{a.EnabledPromptPattern}, a.ReadTimeout, a.MatchTimeout); mismatch != nil {
		return fmt.Errorf("enable: could not find enabled command prompt: %v", mismatch)
	}

	return nil
}

func (s *Session) login() (bool, error) {
	a := &s.dev.Attr

	m1, _, err := s.match([]string{a.UsernamePromptPattern, a.PasswordPromptPattern}, a.ReadTimeout, a.MatchTimeout)
	if err != nil {
		return false, fmt.Errorf("login: could not find username prompt: %v", err)
	}

	switch m1 {
	case 0:
		s.logger.Printf("login: %s: found username prompt", s.dev.ID)

		if userErr := s.sendln(s.dev.LoginUser); userErr != nil {
			return false, fmt.Errorf("login: could not send username: %v", userErr)
		}

		if _, _, err := s.match([]string{a.PasswordPromptPattern}, a.ReadTimeout, a.MatchTimeout); err != nil {
			return false, fmt.Errorf("login: could not find password prompt: %v", err)
		}

	case 1:
		s.logger.Printf("login: %s: found password prompt", s.dev.ID)
	}

	if passErr := s.sendln(s.dev.LoginPassword); passErr != nil {
		return false, fmt.Errorf("login: could not send password: %v", passErr)
	}

	m, _, err := s.match([]string{a.DisabledPromptPattern, a.EnabledPromptPattern}, a.ReadTimeout, a.MatchTimeout)
	if err != nil {
		return false, fmt.Errorf("login: could not find command prompt: %v", err)
	}

	enabled := m == 1

	s.logger.Printf("login: %s: found command prompt enabled=%v", s.dev.ID, enabled)

	return enabled, nil
}
