package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/udhos/iosauto/store"
)

// runLog writes the process log into numbered files under a prefix. Every
// run opens a new file headed by the task and devices it runs. Output that
// outgrows maxSize continues in the next file.
type runLog struct {
	prefix   string
	maxFiles int
	maxSize  int64
	task     string
	devices  string

	lock    sync.Mutex
	part    int
	written int64 // bytes in current file, header excluded
	output  *os.File
	stderr  *log.Logger
}

func newRunLog(prefix string, maxFiles int, maxSize int64, task string, ids []string) *runLog {
	devices := "all"
	if len(ids) > 0 {
		devices = strings.Join(ids, ",")
	}
	return &runLog{
		prefix:   prefix,
		maxFiles: maxFiles,
		maxSize:  maxSize,
		task:     task,
		devices:  devices,
		stderr:   log.New(os.Stderr, "runLog stderr: ", log.LstdFlags),
	}
}

func (l *runLog) header() string {
	return fmt.Sprintf("%s %s %s run task=%s devices=%s part=%d\n", time.Now().Format(time.RFC3339), appName, appVersion, l.task, l.devices, l.part)
}

// next closes the current file and opens a fresh one.
func (l *runLog) next() error {
	if l.output != nil {
		l.output.Close()
		l.output = nil
	}

	header := l.header()
	writeHeader := func(w store.HasWrite) error {
		_, wrErr := w.Write([]byte(header))
		return wrErr
	}

	path, saveErr := store.SaveNewConfig(l.prefix, l.maxFiles, l.stderr, writeHeader, false, "text/plain")
	if saveErr != nil {
		return fmt.Errorf("runLog.next: %v", saveErr)
	}

	output, openErr := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0640)
	if openErr != nil {
		return fmt.Errorf("runLog.next: %v", openErr)
	}

	l.output = output
	l.written = 0
	l.part++

	return nil
}

// Write implements io.Writer for log.New().
func (l *runLog) Write(b []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	full := l.maxSize > 0 && l.written > 0 && l.written+int64(len(b)) > l.maxSize

	if l.output == nil || full {
		if err := l.next(); err != nil {
			l.stderr.Printf("%v", err)
			return 0, err
		}
	}

	n, err := l.output.Write(b)
	l.written += int64(n)
	return n, err
}

func (l *runLog) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.output == nil {
		return nil
	}
	err := l.output.Close()
	l.output = nil
	return err
}
