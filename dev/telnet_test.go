package dev

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"
)

const (
	testIAC  = 255
	testDont = 254
	testDo   = 253
	testWont = 252
	testWill = 251
)

func TestTelnetNegotiation(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	replies := make(chan []byte, 1)

	go func() {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			replies <- nil
			return
		}
		defer conn.Close()

		// DO terminal-type, WILL status, then an escaped 255 inside the banner
		conn.Write([]byte{testIAC, testDo, 24, 'U', 's', 'e', 'r', testIAC, testWill, 5, testIAC, testIAC, 'n', 'a', 'm', 'e', ':', ' '})

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		buf := make([]byte, 6)
		if _, readErr := io.ReadFull(conn, buf); readErr != nil {
			replies <- nil
			return
		}
		replies <- buf
	}()

	tab := NewDeviceTable()
	RegisterModels(&testLogger{t}, tab)
	cfg := testDevice("R1", ln.Addr().String())
	d, newErr := NewDevice(tab, &cfg)
	if newErr != nil {
		t.Fatalf("NewDevice: %v", newErr)
	}

	tr, openErr := openTelnet(d, ln.Addr().String(), 5*time.Second)
	if openErr != nil {
		t.Fatalf("openTelnet: %v", openErr)
	}
	defer tr.Close()

	want := []byte{'U', 's', 'e', 'r', testIAC, 'n', 'a', 'm', 'e', ':', ' '}
	var got []byte
	buf := make([]byte, 100)
	for len(got) < len(want) {
		tr.SetDeadline(time.Now().Add(5 * time.Second))
		n, readErr := tr.Read(buf)
		got = append(got, buf[:n]...)
		if readErr != nil {
			t.Fatalf("read: %v (got=%q)", readErr, got)
		}
	}
	if !bytes.Equal(got, want) {
		t.Errorf("data: got=%q wanted=%q", got, want)
	}

	reply := <-replies
	wantReply := []byte{testIAC, testWont, 24, testIAC, testDont, 5}
	if !bytes.Equal(reply, wantReply) {
		t.Errorf("reply: got=%v wanted=%v", reply, wantReply)
	}
}
