package dev

import (
	"regexp"
	"strconv"
	"strings"
)

// FilterTable stores line filters for custom line-by-line processing of configuration.
type FilterTable struct {
	table map[string]FilterFunc
	re1   *regexp.Regexp
	re2   *regexp.Regexp
	re3   *regexp.Regexp
	re4   *regexp.Regexp
}

// FilterFunc is a helper function type for line filters.
type FilterFunc func(hasPrintf, bool, *FilterTable, []byte, int) []byte

// NewFilterTable creates a filter table.
func NewFilterTable(logger hasPrintf) *FilterTable {
	t := &FilterTable{
		table: map[string]FilterFunc{},
		re1:   regexp.MustCompile(`^Building configuration`),          // Building configuration...
		re2:   regexp.MustCompile(`^Current configuration\s*:`),       // Current configuration : 1523 bytes
		re3:   regexp.MustCompile(`^! Last configuration change at `), // ! Last configuration change at 10:11:12 UTC Mon Mar 1 2021 by cisco
		re4:   regexp.MustCompile(`^! NVRAM config last updated at `), // ! NVRAM config last updated at 10:11:12 UTC Mon Mar 1 2021
	}
	registerFilters(logger, t.table)
	return t
}

func register(logger hasPrintf, table map[string]FilterFunc, name string, f FilterFunc) {
	logger.Printf("line filter registered: '%s'", name)
	table[name] = f
}

func registerFilters(logger hasPrintf, table map[string]FilterFunc) {
	register(logger, table, "ios", filterIOS)
	register(logger, table, "noop", filterNoop)
	register(logger, table, "drop", filterDrop)
	register(logger, table, "count_lines", filterCountLines)
}

// Apply runs the named filter over every line of text. An empty result
// drops a non-empty line. An unknown name leaves the text untouched.
func (t *FilterTable) Apply(logger hasPrintf, debug bool, name, text string) string {
	if name == "" {
		return text
	}

	f, found := t.table[name]
	if !found {
		logger.Printf("FilterTable.Apply: filter not found: '%s'", name)
		return text
	}

	var b strings.Builder
	lineNum := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		lineNum++
		content := strings.TrimSuffix(line, "\n")
		out := f(logger, debug, t, []byte(content), lineNum)
		if len(out) < 1 && content != "" {
			continue
		}
		b.Write(out)
		b.WriteByte('\n')
	}

	return b.String()
}

func filterDrop(logger hasPrintf, debug bool, table *FilterTable, line []byte, lineNum int) []byte {
	return []byte{}
}

func filterNoop(logger hasPrintf, debug bool, table *FilterTable, line []byte, lineNum int) []byte {
	return line
}

func filterCountLines(logger hasPrintf, debug bool, table *FilterTable, line []byte, lineNum int) []byte {
	line = append([]byte(strconv.Itoa(lineNum)+": "), line...)
	return line
}

/*
Building configuration...

Current configuration : 1523 bytes
!
! Last configuration change at 10:11:12 UTC Mon Mar 1 2021 by cisco
! NVRAM config last updated at 10:11:12 UTC Mon Mar 1 2021
*/
func filterIOS(logger hasPrintf, debug bool, table *FilterTable, line []byte, lineNum int) []byte {

	for _, re := range []*regexp.Regexp{table.re1, table.re2, table.re3, table.re4} {
		if re.Match(line) {
			if debug {
				logger.Printf("filterIOS: drop: [%s]", string(line))
			}
			return []byte{}
		}
	}

	return line
}
