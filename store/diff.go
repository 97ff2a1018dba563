package store

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/udhos/difflib"
)

// SplitLines breaks a buffer into lines. A trailing newline does not
// produce an extra empty line.
func SplitLines(b []byte) []string {
	list := strings.Split(string(b), "\n")
	last := len(list) - 1
	if last < 0 {
		return list
	}
	if list[last] == "" {
		return list[:last]
	}
	return list
}

// Diff formats the line differences from a to b, one line per record,
// prefixed with "-" (only in a), "+" (only in b) or " " (common).
// It returns the text and the number of changed lines.
func Diff(a, b []byte) (string, int) {
	var buf bytes.Buffer
	changes := 0
	for _, d := range difflib.Diff(SplitLines(a), SplitLines(b)) {
		mark := " "
		switch d.Delta {
		case difflib.LeftOnly:
			mark = "-"
			changes++
		case difflib.RightOnly:
			mark = "+"
			changes++
		}
		buf.WriteString(mark)
		buf.WriteString(d.Payload)
		buf.WriteByte('\n')
	}
	return buf.String(), changes
}

// DiffLast compares the two newest files for the prefix.
// With a single file, it is compared against itself.
func DiffLast(pathPrefix string, maxSize int64, logger hasPrintf) (string, int, error) {
	dirname, matches, listErr := ListConfigSorted(pathPrefix, true, logger)
	if listErr != nil {
		return "", 0, listErr
	}
	if len(matches) < 1 {
		return "", 0, fmt.Errorf("DiffLast: no file found for prefix: %s", pathPrefix)
	}

	to := Join(dirname, matches[0])
	from := to
	if len(matches) > 1 {
		from = Join(dirname, matches[1])
	}

	bufFrom, errFrom := FileRead(from, maxSize)
	if errFrom != nil {
		return "", 0, fmt.Errorf("DiffLast: %v", errFrom)
	}
	bufTo, errTo := FileRead(to, maxSize)
	if errTo != nil {
		return "", 0, fmt.Errorf("DiffLast: %v", errTo)
	}

	text, changes := Diff(bufFrom, bufTo)

	return fmt.Sprintf("--- %s\n+++ %s\n", from, to) + text, changes, nil
}
