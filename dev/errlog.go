package dev

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/udhos/iosauto/store"
)

// ErrlogPath builds the full pathname for the device errlog file.
func ErrlogPath(repository, id string) string {
	return store.Join(DeviceDir(repository, id), id) + ".errlog"
}

// errlog pushes the result as the first line of the device errlog,
// keeping at most histSize lines. Not supported on S3.
func errlog(logger hasPrintf, result Result, repository string, debug bool, histSize int) {

	if repository == "" {
		return
	}

	path := ErrlogPath(repository, result.DevID)

	if store.S3Path(path) {
		if debug {
			logger.Printf("errlog: skipping S3 path: '%s'", path)
		}
		return
	}

	if histSize < 1 {
		histSize = 1
	}

	if mkdirErr := store.MkDir(DeviceDir(repository, result.DevID)); mkdirErr != nil {
		logger.Printf("errlog: mkdir: '%s': %v", path, mkdirErr)
		return
	}

	f, openErr := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0640)
	if openErr != nil {
		logger.Printf("errlog: could not open dev log: '%s': %v", path, openErr)
		return
	}

	defer f.Close()

	// load lines
	lines, lineErr := loadLines(bufio.NewReader(f), histSize-1)
	if lineErr != nil {
		logger.Printf("errlog: could not load lines: '%s': %v", path, lineErr)
		return
	}

	if debug {
		logger.Printf("errlog debug: '%s': %d lines", path, len(lines))
	}

	if truncErr := f.Truncate(0); truncErr != nil {
		logger.Printf("errlog: truncate error: %v", truncErr)
		return
	}

	if _, seekErr := f.Seek(0, 0); seekErr != nil {
		logger.Printf("errlog: seek error: %v", seekErr)
		return
	}

	// push result
	w := bufio.NewWriter(f)
	msg := fmt.Sprintf("%s success=%v elapsed=%v model=%s dev=%s host=%s transport=%s code=%d message=[%s]",
		time.Now().String(),
		result.Code == ResultOK,
		result.End.Sub(result.Begin),
		result.Model, result.DevID, result.DevHostPort, result.Transport, result.Code, result.Msg)

	if debug {
		logger.Printf("errlog debug: push: '%s': [%s]", path, msg)
	}

	if _, pushErr := w.WriteString(msg + "\n"); pushErr != nil {
		logger.Printf("errlog: push error: '%s': %v", path, pushErr)
		return
	}

	// write lines back to file
	for _, line := range lines {
		if _, writeErr := w.Write(line); writeErr != nil {
			logger.Printf("errlog: write error: '%s': %v", path, writeErr)
			break
		}
	}

	if flushErr := w.Flush(); flushErr != nil {
		logger.Printf("errlog: flush: '%s': %v", path, flushErr)
	}

	if syncErr := f.Sync(); syncErr != nil {
		logger.Printf("errlog: sync: '%s': %v", path, syncErr)
	}
}

func loadLines(r *bufio.Reader, max int) ([][]byte, error) {
	var lines [][]byte

LOOP:
	for lineCount := 0; lineCount < max; lineCount++ {
		line, readErr := r.ReadBytes(LF)
		if len(line) > 0 {
			lines = append(lines, line)
		}
		switch readErr {
		case io.EOF:
			break LOOP
		case nil:
			continue
		default:
			return lines, readErr
		}
	}

	return lines, nil
}
