package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/udhos/iosauto/temp"
)

// testLogger: wrap Printf interface around *testing.T
type testLogger struct {
	*testing.T
}

func (t *testLogger) Printf(format string, v ...interface{}) {
	t.Logf("store testLogger: "+format, v...)
}

func TestStore1(t *testing.T) {

	repo := temp.MakeTempRepo()
	defer temp.CleanupTempRepo(repo)

	region := os.Getenv("IOSAUTO_S3_REGION")

	maxFiles := 2
	logger := &testLogger{t}
	Init(logger, region)

	prefix := filepath.Join(repo, "store-test.")
	storeBatch(t, prefix, maxFiles, logger)

	_, matches, listErr := ListConfigSorted(prefix, false, logger)
	if listErr != nil {
		t.Fatalf("TestStore1: list: %v", listErr)
	}
	if len(matches) != maxFiles {
		t.Errorf("TestStore1: rotation: got=%v wanted %d files", matches, maxFiles)
	}

	if region == "" {
		t.Logf("TestStore1: IOSAUTO_S3_REGION undefined: skipping S3 tests")
		return
	}
	s3folder := os.Getenv("IOSAUTO_S3_FOLDER")
	if s3folder == "" {
		t.Logf("TestStore1: IOSAUTO_S3_FOLDER undefined: skipping S3 tests")
		return
	}

	prefix = fmt.Sprintf("arn:aws:s3:%s::%s/store-test.", region, s3folder)
	storeBatch(t, prefix, maxFiles, logger)
}

func TestStoreChangesOnly(t *testing.T) {

	repo := temp.MakeTempRepo()
	defer temp.CleanupTempRepo(repo)

	logger := &testLogger{t}
	Init(logger, "")

	prefix := filepath.Join(repo, "R1.")

	first, err1 := SaveNewConfig(prefix, 10, logger, writeString("hostname R1\n"), true, "detect")
	if err1 != nil {
		t.Fatalf("first save: %v", err1)
	}
	second, err2 := SaveNewConfig(prefix, 10, logger, writeString("hostname R1\n"), true, "detect")
	if err2 != nil {
		t.Fatalf("second save: %v", err2)
	}
	if first != second {
		t.Errorf("identical content should not create new file: first=%s second=%s", first, second)
	}

	third, err3 := SaveNewConfig(prefix, 10, logger, writeString("hostname R1\ninterface Loopback0\n"), true, "detect")
	if err3 != nil {
		t.Fatalf("third save: %v", err3)
	}
	if third != prefix+"1" {
		t.Errorf("changed content: got=%s wanted=%s1", third, prefix)
	}

	diff, changes, diffErr := DiffLast(prefix, 100000, logger)
	if diffErr != nil {
		t.Fatalf("DiffLast: %v", diffErr)
	}
	if changes != 1 || !strings.Contains(diff, "+interface Loopback0") {
		t.Errorf("DiffLast: changes=%d diff=[%s]", changes, diff)
	}

	b, readErr := FileRead(third, 8)
	if readErr != nil {
		t.Fatalf("FileRead: %v", readErr)
	}
	if string(b) != "hostname" {
		t.Errorf("FileRead limit: got=[%s]", b)
	}
}

func TestDiff(t *testing.T) {
	text, changes := Diff([]byte("a\nb\nc\n"), []byte("a\nc\nd\n"))
	if changes != 2 {
		t.Errorf("changes: got=%d wanted=2", changes)
	}
	if text != " a\n-b\n c\n+d\n" {
		t.Errorf("diff: got=%q", text)
	}

	if _, changes := Diff([]byte("x\n"), []byte("x\n")); changes != 0 {
		t.Errorf("equal input: changes=%d", changes)
	}
}

func TestSplitLines(t *testing.T) {
	split(t, "", 0)
	split(t, "x", 1)
	split(t, "\n", 1)
	split(t, "x\n", 1)
	split(t, "\nx", 2)
	split(t, "x\nx", 2)
	split(t, "\n\n", 2)
	split(t, "\n\nx\n", 3)
}

func split(t *testing.T, input string, wantLineCount int) {
	if count := len(SplitLines([]byte(input))); count != wantLineCount {
		t.Errorf("SplitLines: input=%q expected=%d got=%d", input, wantLineCount, count)
	}
}

func writeString(s string) func(HasWrite) error {
	return func(w HasWrite) error {
		_, err := w.Write([]byte(s))
		return err
	}
}

func storeBatch(t *testing.T, prefix string, maxFiles int, logger hasPrintf) {
	for i, content := range []string{"a", "b", "c", "d"} {
		if err := storeWrite(prefix, content, fmt.Sprintf("%s%d", prefix, i), maxFiles, logger); err != nil {
			t.Errorf("storeBatch: %v", err)
		}
	}
}

func storeWrite(prefix, content, expected string, maxFiles int, logger hasPrintf) error {

	c := []byte(content)

	writeFunc := func(w HasWrite) error {
		n, writeErr := w.Write(c)
		if writeErr != nil {
			return fmt.Errorf("writeFunc: error: %v", writeErr)
		}
		if n != len(c) {
			return fmt.Errorf("writeFunc: partial: wrote=%d size=%d", n, len(c))
		}
		return nil
	}

	path, writeErr := SaveNewConfig(prefix, maxFiles, logger, writeFunc, false, "detect")
	if writeErr != nil {
		return fmt.Errorf("storeWrite: error: %v", writeErr)
	}

	if path != expected {
		return fmt.Errorf("storeWrite: got=%s wanted=%s", path, expected)
	}

	found, findErr := FindLastConfig(prefix, logger)
	if findErr != nil {
		return fmt.Errorf("storeWrite: FindLastConfig: error: %v", findErr)
	}

	if found != expected {
		return fmt.Errorf("storeWrite: FindLastConfig: found=%s wanted=%s", found, expected)
	}

	return nil
}
