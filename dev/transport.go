package dev

import (
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/udhos/iosauto/conf"
)

type transp interface {
	Read(b []byte) (n int, err error)
	Write(b []byte) (n int, err error)
	SetDeadline(t time.Time) error
	Close() error
}

type timeoutError struct {
	op string
}

func (e timeoutError) Error() string {
	return e.op + ": i/o timeout"
}

func (e timeoutError) Timeout() bool {
	return true
}

type transpSSH struct {
	devLabel string
	conn     net.Conn
	client   *ssh.Client
	session  *ssh.Session
	writer   io.WriteCloser

	recv     chan []byte   // fed by pump goroutine, closed on EOF
	done     chan struct{} // closed by Close, releases pump
	closing  sync.Once
	pending  []byte
	lock     sync.Mutex
	deadline time.Time
}

// pump moves session output into the recv channel, so Read can honor deadlines.
func (s *transpSSH) pump(r io.Reader) {
	defer close(s.recv)
	buf := make([]byte, 32768)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.recv <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *transpSSH) Read(b []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(b, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}

	s.lock.Lock()
	deadline := s.deadline
	s.lock.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case chunk, ok := <-s.recv:
		if !ok {
			return 0, io.EOF
		}
		n := copy(b, chunk)
		s.pending = chunk[n:]
		return n, nil
	case <-timeout:
		return 0, timeoutError{op: "ssh read " + s.devLabel}
	}
}

func (s *transpSSH) Write(b []byte) (int, error) {
	n, err := s.writer.Write(b)
	if err != nil {
		return n, fmt.Errorf("ssh write(%q): %v", b, err)
	}
	return n, nil
}

func (s *transpSSH) SetDeadline(t time.Time) error {
	s.lock.Lock()
	s.deadline = t
	s.lock.Unlock()
	return nil
}

func (s *transpSSH) Close() error {
	s.closing.Do(func() { close(s.done) })
	err1 := s.session.Close()
	err2 := s.client.Close()
	if (err1 != nil && err1 != io.EOF) || err2 != nil {
		return fmt.Errorf("close error: session=[%v] client=[%v]", err1, err2)
	}
	return nil
}

// openTransport tries each transport in turn. The bool result reports whether
// authentication already happened (ssh).
func openTransport(logger hasPrintf, d *Device, opt *conf.AppConfig) (transp, string, bool, error) {
	tList := strings.Split(d.Transports, ",")

	timeout := opt.DialTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	var errList []string

	for _, t := range tList {
		t = strings.TrimSpace(t)
		switch t {
		case "ssh":
			hp := forceHostPort(d.HostPort, "22")
			s, err := openSSH(logger, d, hp, timeout, opt)
			if err == nil {
				return s, t, true, nil
			}
			logger.Printf("openTransport: %v", err)
			errList = append(errList, err.Error())
		case "telnet":
			hp := forceHostPort(d.HostPort, "23")
			s, err := openTelnet(d, hp, timeout)
			if err == nil {
				return s, t, false, nil
			}
			logger.Printf("openTransport: %v", err)
			errList = append(errList, err.Error())
		default:
			errList = append(errList, "unknown transport: "+t)
		}
	}

	return nil, d.Transports, false, fmt.Errorf("openTransport: %s %s %s - unable to open transport: %s", d.ID, d.HostPort, d.Transports, strings.Join(errList, "; "))
}

func forceHostPort(hostPort, defaultPort string) string {
	if _, _, err := net.SplitHostPort(hostPort); err == nil {
		return hostPort
	}
	return net.JoinHostPort(hostPort, defaultPort)
}

func sshAuth(d *Device, opt *conf.AppConfig) ([]ssh.AuthMethod, error) {
	var auth []ssh.AuthMethod

	if d.KeyFile != "" {
		pem, readErr := ioutil.ReadFile(d.KeyFile)
		if readErr != nil {
			return nil, fmt.Errorf("key file: %v", readErr)
		}
		signer, parseErr := ssh.ParsePrivateKey(pem)
		if parseErr != nil {
			return nil, fmt.Errorf("key file: %s: %v", d.KeyFile, parseErr)
		}
		if len(opt.PubkeyAlgorithms) > 0 {
			algSigner, ok := signer.(ssh.AlgorithmSigner)
			if !ok {
				return nil, fmt.Errorf("key file: %s: key does not support algorithm selection", d.KeyFile)
			}
			multi, algErr := ssh.NewSignerWithAlgorithms(algSigner, opt.PubkeyAlgorithms)
			if algErr != nil {
				return nil, fmt.Errorf("key file: %s: %v", d.KeyFile, algErr)
			}
			signer = multi
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	if d.LoginPassword != "" {
		pass := d.LoginPassword
		auth = append(auth, ssh.Password(pass))
		auth = append(auth, ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = pass
			}
			return answers, nil
		}))
	}

	if len(auth) < 1 {
		return nil, fmt.Errorf("no ssh credentials: need keyfile or loginpassword")
	}

	return auth, nil
}

func sshHostKeyCallback(logger hasPrintf, opt *conf.AppConfig) (ssh.HostKeyCallback, error) {
	if opt.KnownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(opt.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("known hosts: %v", err)
	}
	logger.Printf("sshHostKeyCallback: verifying host keys from: %s", opt.KnownHostsFile)
	return cb, nil
}

func openSSH(logger hasPrintf, d *Device, hostPort string, timeout time.Duration, opt *conf.AppConfig) (transp, error) {
	label := fmt.Sprintf("%s %s %s", d.Model(), d.ID, hostPort)

	auth, authErr := sshAuth(d, opt)
	if authErr != nil {
		return nil, fmt.Errorf("openSSH: %s - %v", label, authErr)
	}

	hostKeyCallback, hostErr := sshHostKeyCallback(logger, opt)
	if hostErr != nil {
		return nil, fmt.Errorf("openSSH: %s - %v", label, hostErr)
	}

	conn, dialErr := net.DialTimeout("tcp", hostPort, timeout)
	if dialErr != nil {
		return nil, fmt.Errorf("openSSH: Dial: %s - %v", label, dialErr)
	}

	config := &ssh.ClientConfig{
		Config: ssh.Config{
			Ciphers:      opt.Ciphers,
			KeyExchanges: opt.KeyExchanges,
		},
		User:            d.LoginUser,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	conn.SetDeadline(time.Now().Add(timeout)) // handshake
	c, chans, reqs, connErr := ssh.NewClientConn(conn, hostPort, config)
	if connErr != nil {
		conn.Close()
		return nil, fmt.Errorf("openSSH: NewClientConn: %s - %v", label, connErr)
	}
	conn.SetDeadline(time.Time{})

	cli := ssh.NewClient(c, chans, reqs)

	s := &transpSSH{conn: conn, client: cli, devLabel: label, recv: make(chan []byte, 64), done: make(chan struct{})}

	ses, sessionErr := cli.NewSession()
	if sessionErr != nil {
		cli.Close()
		return nil, fmt.Errorf("openSSH: NewSession: %s - %v", label, sessionErr)
	}

	s.session = ses

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}

	if ptyErr := ses.RequestPty("vt100", 24, 511, modes); ptyErr != nil {
		s.Close()
		return nil, fmt.Errorf("openSSH: Pty: %s - %v", label, ptyErr)
	}

	writer, wrErr := ses.StdinPipe()
	if wrErr != nil {
		s.Close()
		return nil, fmt.Errorf("openSSH: StdinPipe: %s - %v", label, wrErr)
	}
	s.writer = writer

	reader, rdErr := ses.StdoutPipe()
	if rdErr != nil {
		s.Close()
		return nil, fmt.Errorf("openSSH: StdoutPipe: %s - %v", label, rdErr)
	}

	if shellErr := ses.Shell(); shellErr != nil {
		s.Close()
		return nil, fmt.Errorf("openSSH: Remote shell error: %s - %v", label, shellErr)
	}

	go s.pump(reader)

	return s, nil
}
