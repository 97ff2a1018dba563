// Package temp creates scratch repositories for tests.
package temp

import (
	"fmt"
	"io/ioutil"
	"os"
)

const tempRepoPrefix = "tmp-iosauto-repo"

// MakeTempRepo creates a fresh repository directory. Packages tested in
// parallel get distinct directories.
func MakeTempRepo() string {
	path, err := ioutil.TempDir("", tempRepoPrefix)
	if err != nil {
		panic(fmt.Sprintf("MakeTempRepo: %v", err))
	}
	return path
}

// CleanupTempRepo erases a repository created by MakeTempRepo.
func CleanupTempRepo(path string) {
	if err := os.RemoveAll(path); err != nil {
		panic(fmt.Sprintf("CleanupTempRepo: '%s': %v", path, err))
	}
}
