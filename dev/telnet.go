package dev

import (
	"fmt"
	"time"

	"github.com/ziutek/telnet"
)

// transpTelnet leaves option negotiation to telnet.Conn: it accepts the
// peer's echo and suppress-go-ahead and refuses everything else.
type transpTelnet struct {
	*telnet.Conn
	devLabel string
}

func (t *transpTelnet) Write(b []byte) (int, error) {
	n, err := t.Conn.Write(b)
	if err != nil {
		return n, fmt.Errorf("telnet write %s: %v", t.devLabel, err)
	}
	return n, nil
}

func openTelnet(d *Device, hostPort string, timeout time.Duration) (transp, error) {
	label := fmt.Sprintf("%s %s %s", d.Model(), d.ID, hostPort)

	conn, err := telnet.DialTimeout("tcp", hostPort, timeout)
	if err != nil {
		return nil, fmt.Errorf("openTelnet: %s - %v", label, err)
	}

	return &transpTelnet{Conn: conn, devLabel: label}, nil
}
