package dev

import (
	"bytes"
)

const (
	BS  = 8
	TAB = 9
	LF  = 10
	CR  = 13
	ESC = 27
	DEL = 127
)

// removeControlChars renders device output the way a terminal would show it.
// CRLF becomes LF, a sole CR returns to the start of the line, BS erases the
// previous char and ANSI escape sequences are dropped.
func removeControlChars(buf []byte) []byte {
	out := make([]byte, 0, len(buf))

	for i := 0; i < len(buf); i++ {
		b := buf[i]
		switch {
		case b == ESC:
			i = skipEscape(buf, i)
		case b == CR:
			if i+1 >= len(buf) || buf[i+1] == CR || buf[i+1] == LF {
				continue
			}
			out = out[:bytes.LastIndexByte(out, LF)+1]
		case b == BS:
			if len(out) > 0 && out[len(out)-1] != LF {
				out = out[:len(out)-1]
			}
		case b == LF, b == TAB:
			out = append(out, b)
		case b < 32, b == DEL:
			// drop
		default:
			out = append(out, b)
		}
	}

	return out
}

// skipEscape returns the index of the last byte of the escape sequence at buf[i].
func skipEscape(buf []byte, i int) int {
	if i+1 >= len(buf) {
		return i
	}
	if buf[i+1] != '[' {
		return i + 1
	}
	for j := i + 2; j < len(buf); j++ {
		if buf[j] >= 0x40 && buf[j] <= 0x7e {
			return j
		}
	}
	return len(buf) - 1
}

func findLastLine(buf []byte) []byte {

	// remove possible trailing CR LF from end of line
	if len(buf) > 0 && buf[len(buf)-1] == LF {
		buf = buf[:len(buf)-1]
		if len(buf) > 0 && buf[len(buf)-1] == CR {
			buf = buf[:len(buf)-1]
		}
	}

	lastEOL := bytes.LastIndexAny(buf, "\r\n")

	return buf[lastEOL+1:]
}
