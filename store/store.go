// Package store keeps numbered, rotating copies of files (device backups, log files)
// on the local filesystem or on Amazon S3.
//
// A file set is identified by a path prefix. Files are named prefix+N, where N grows
// by one on every save. The shortcut file prefix+"last" holds the latest N.
// Paths starting with "arn:aws:s3:" are stored on S3.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/udhos/equalfile"
)

type hasPrintf interface {
	Printf(fmt string, v ...interface{})
}

// HasWrite is the sink handed to write functions by SaveNewConfig.
type HasWrite interface {
	Write(p []byte) (int, error)
}

type sortByCommitID struct {
	data   []string
	logger hasPrintf
}

func (s sortByCommitID) Len() int {
	return len(s.data)
}
func (s sortByCommitID) Swap(i, j int) {
	s.data[i], s.data[j] = s.data[j], s.data[i]
}
func (s sortByCommitID) Less(i, j int) bool {
	s1 := s.data[i]
	id1, err1 := ExtractCommitIDFromFilename(s1)
	if err1 != nil {
		s.logger.Printf("sortByCommitID.Less: error parsing file path: '%s': %v", s1, err1)
	}
	s2 := s.data[j]
	id2, err2 := ExtractCommitIDFromFilename(s2)
	if err2 != nil {
		s.logger.Printf("sortByCommitID.Less: error parsing file path: '%s': %v", s2, err2)
	}
	return id1 < id2
}

// Init sets the logger and the default S3 region. Call it once before other functions.
func Init(logger hasPrintf, region string) {
	if logger == nil {
		panic("store.Init: nil logger")
	}
	s3init(logger, region)
}

// ExtractCommitIDFromFilename returns the numeric suffix after the last dot.
func ExtractCommitIDFromFilename(filename string) (int, error) {
	lastDot := strings.LastIndexByte(filename, '.')
	commitID := filename[lastDot+1:]
	id, err := strconv.Atoi(commitID)
	if err != nil {
		return -1, fmt.Errorf("ExtractCommitIDFromFilename: error parsing filename [%s]: %v", filename, err)
	}

	return id, nil
}

func fileFirstLine(path string) (string, error) {

	if S3Path(path) {
		return s3fileFirstLine(path)
	}

	f, openErr := os.Open(path)
	if openErr != nil {
		return "", openErr
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, _, readErr := r.ReadLine()

	return string(line), readErr
}

func tryShortcut(pathPrefix string) string {

	id, err := fileFirstLine(getLastIDPath(pathPrefix))
	if err != nil {
		return "" // not found
	}

	path := getConfigPath(pathPrefix, id)
	if fileExists(path) {
		return path // found
	}

	return "" // not found
}

// FindLastConfig returns the path of the newest file for the prefix.
func FindLastConfig(pathPrefix string, logger hasPrintf) (string, error) {

	if path := tryShortcut(pathPrefix); path != "" {
		return path, nil // found
	}

	logger.Printf("FindLastConfig: NOT FOUND from shortcut: [%s]", pathPrefix)

	dirname, matches, err := ListConfig(pathPrefix, logger)
	if err != nil {
		return "", err
	}

	size := len(matches)

	logger.Printf("FindLastConfig: found %d matching files: %v", size, matches)

	if size < 1 {
		return "", fmt.Errorf("FindLastConfig: no file found for prefix: %s", pathPrefix)
	}

	maxID := -1
	last := ""
	for _, m := range matches {
		id, idErr := ExtractCommitIDFromFilename(m)
		if idErr != nil {
			return "", fmt.Errorf("FindLastConfig: bad commit id: %s: %v", m, idErr)
		}
		if id >= maxID {
			maxID = id
			last = m
		}
	}

	lastPath := Join(dirname, last)

	logger.Printf("FindLastConfig: found: %s", lastPath)

	return lastPath, nil
}

// ListConfigSorted lists files for the prefix ordered by commit id.
// reverse=true puts the newest first.
func ListConfigSorted(pathPrefix string, reverse bool, logger hasPrintf) (string, []string, error) {

	dirname, matches, err := ListConfig(pathPrefix, logger)
	if err != nil {
		return dirname, matches, err
	}

	if reverse {
		sort.Sort(sort.Reverse(sortByCommitID{data: matches, logger: logger}))
	} else {
		sort.Sort(sortByCommitID{data: matches, logger: logger})
	}

	return dirname, matches, nil
}

func dirList(path string) (string, []string, error) {

	if S3Path(path) {
		return s3dirList(path)
	}

	dirname := filepath.Dir(path)

	dir, err := os.Open(dirname)
	if err != nil {
		return dirname, nil, fmt.Errorf("ListConfig: error opening dir '%s': %v", dirname, err)
	}

	defer dir.Close()

	names, err2 := dir.Readdirnames(0)
	if err2 != nil {
		return dirname, nil, fmt.Errorf("ListConfig: error reading dir '%s': %v", dirname, err2)
	}

	return dirname, names, nil
}

// ListConfig lists (unsorted) files for the prefix. It returns the directory
// and the base names.
func ListConfig(pathPrefix string, logger hasPrintf) (string, []string, error) {

	dirname, names, dirErr := dirList(pathPrefix)
	if dirErr != nil {
		return dirname, nil, dirErr
	}

	logger.Printf("ListConfig: prefix=[%s] names=%d", pathPrefix, len(names))

	basename := basePath(pathPrefix)

	matches := names[:0] // filter in place
	for _, x := range names {
		if x == "" {
			continue
		}
		lastByte := rune(x[len(x)-1])
		if unicode.IsDigit(lastByte) && strings.HasPrefix(x, basename) {
			matches = append(matches, x)
		}
	}

	return dirname, matches, nil
}

// Join appends name to a local or S3 directory.
func Join(dir, name string) string {
	if S3Path(dir) {
		return dir + "/" + name
	}
	return filepath.Join(dir, name)
}

func basePath(path string) string {
	if S3Path(path) {
		return path[strings.LastIndexByte(path, '/')+1:]
	}
	return filepath.Base(path)
}

func getLastIDPath(pathPrefix string) string {
	return pathPrefix + "last"
}

func getConfigPath(pathPrefix, id string) string {
	return pathPrefix + id
}

func fileExists(path string) bool {

	if S3Path(path) {
		return s3fileExists(path)
	}

	_, err := os.Stat(path)

	return err == nil
}

func fileRemove(path string) error {

	if S3Path(path) {
		return s3fileRemove(path)
	}

	return os.Remove(path)
}

func fileRename(p1, p2 string) error {

	if S3Path(p1) {
		return s3fileRename(p1, p2)
	}

	return os.Rename(p1, p2)
}

// FileRead loads at most maxSize bytes from path.
func FileRead(path string, maxSize int64) ([]byte, error) {

	var r io.ReadCloser

	if S3Path(path) {
		var openErr error
		if r, openErr = s3fileOpen(path); openErr != nil {
			return nil, openErr
		}
	} else {
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, openErr
		}
		r = f
	}

	defer r.Close()

	return ioutil.ReadAll(io.LimitReader(r, maxSize))
}

func writeFileBuf(path string, buf []byte, contentType string) error {

	if S3Path(path) {
		return s3fileput(path, buf, contentType)
	}

	return ioutil.WriteFile(path, buf, 0640)
}

func writeFile(path string, writeFunc func(HasWrite) error, contentType string) error {

	if S3Path(path) {
		w := &bytes.Buffer{}

		if err := writeFunc(w); err != nil {
			return fmt.Errorf("writeFile: writeFunc error: [%s]: %v", path, err)
		}

		return s3fileput(path, w.Bytes(), contentType)
	}

	f, createErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if createErr != nil {
		return fmt.Errorf("writeFile: error creating file: [%s]: %v", path, createErr)
	}

	w := bufio.NewWriter(f)

	if err := writeFunc(w); err != nil {
		f.Close()
		return fmt.Errorf("writeFile: writeFunc error: [%s]: %v", path, err)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writeFile: error flushing file: [%s]: %v", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("writeFile: error closing file: [%s]: %v", path, err)
	}

	return nil
}

// SaveNewConfig writes a new file for the prefix through writeFunc and returns its path.
// With changesOnly, a file identical to the newest one is discarded and the newest
// path is returned instead. Files beyond maxFiles are erased, oldest first.
// contentType is only used on S3; "detect" sniffs it from the content.
func SaveNewConfig(pathPrefix string, maxFiles int, logger hasPrintf, writeFunc func(HasWrite) error, changesOnly bool, contentType string) (string, error) {

	tmpPath := getConfigPath(pathPrefix, "tmp")
	if fileExists(tmpPath) {
		return "", fmt.Errorf("SaveNewConfig: tmp file exists: [%s]", tmpPath)
	}

	if creatErr := writeFile(tmpPath, writeFunc, contentType); creatErr != nil {
		return "", fmt.Errorf("SaveNewConfig: error creating tmp file: [%s]: %v", tmpPath, creatErr)
	}

	defer func() {
		if fileExists(tmpPath) {
			fileRemove(tmpPath)
		}
	}()

	previousFound := true
	lastConfig, err1 := FindLastConfig(pathPrefix, logger)
	if err1 != nil {
		logger.Printf("SaveNewConfig: no previous file: [%s]: %v", pathPrefix, err1)
		previousFound = false
	}

	id := -1
	if previousFound {
		var err2 error
		id, err2 = ExtractCommitIDFromFilename(lastConfig)
		if err2 != nil {
			logger.Printf("SaveNewConfig: error parsing path: [%s]: %v", lastConfig, err2)
		}
	}

	if changesOnly && previousFound {
		equal, equalErr := fileCompare(lastConfig, tmpPath)
		switch {
		case equalErr != nil:
			logger.Printf("SaveNewConfig: error comparing previous=[%s] to new=[%s]: %v", lastConfig, tmpPath, equalErr)
		case equal:
			logger.Printf("SaveNewConfig: refusing to create identical new file: [%s]", tmpPath)
			return lastConfig, nil // success
		default:
			logger.Printf("SaveNewConfig: files differ previous=[%s] new=[%s]", lastConfig, tmpPath)
		}
	}

	newCommitID := id + 1
	newFilepath := getConfigPath(pathPrefix, strconv.Itoa(newCommitID))

	logger.Printf("SaveNewConfig: newPath=[%s]", newFilepath)

	if fileExists(newFilepath) {
		return "", fmt.Errorf("SaveNewConfig: new file exists: [%s]", newFilepath)
	}

	if renameErr := fileRename(tmpPath, newFilepath); renameErr != nil {
		return "", fmt.Errorf("SaveNewConfig: could not rename '%s' to '%s'; %v", tmpPath, newFilepath, renameErr)
	}

	lastIDPath := getLastIDPath(pathPrefix)
	if err := writeFileBuf(lastIDPath, []byte(strconv.Itoa(newCommitID)), "text/plain"); err != nil {
		logger.Printf("SaveNewConfig: error writing last id file '%s': %v", lastIDPath, err)

		// a stale shortcut would point to an old file
		fileRemove(lastIDPath)
	}

	eraseOldFiles(pathPrefix, maxFiles, logger)

	return newFilepath, nil
}

func eraseOldFiles(pathPrefix string, maxFiles int, logger hasPrintf) {

	if maxFiles < 1 {
		return
	}

	dirname, matches, err := ListConfigSorted(pathPrefix, false, logger)
	if err != nil {
		logger.Printf("eraseOldFiles: %v", err)
		return
	}

	totalFiles := len(matches)

	toDelete := totalFiles - maxFiles
	if toDelete < 1 {
		logger.Printf("eraseOldFiles: nothing to delete existing=%d <= max=%d", totalFiles, maxFiles)
		return
	}

	for i := 0; i < toDelete; i++ {
		path := Join(dirname, matches[i])
		logger.Printf("eraseOldFiles: delete: [%s]", path)
		if err := fileRemove(path); err != nil {
			logger.Printf("eraseOldFiles: delete: error: [%s]: %v", path, err)
		}
	}
}

// FileInfo returns modification time and size.
func FileInfo(path string) (time.Time, int64, error) {

	if S3Path(path) {
		return s3fileInfo(path)
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		return time.Time{}, 0, statErr
	}

	return info.ModTime(), info.Size(), nil
}

func fileCompare(p1, p2 string) (bool, error) {

	if S3Path(p1) {
		return s3fileCompare(p1, p2)
	}

	cmp := equalfile.New(nil, equalfile.Options{})
	return cmp.CompareFile(p1, p2)
}

// MkDir creates a directory. It is a no-op on S3.
func MkDir(path string) error {

	if S3Path(path) {
		s3log("MkDir: silently refusing to create unneeded dir path on S3: [%s]", path)
		return nil
	}

	return os.MkdirAll(path, 0750)
}
