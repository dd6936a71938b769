package kvstore

import (
	"errors"
	"path/filepath"
	"strings"
)

const (
	// DirName is the subdirectory that holds the document.
	DirName = "kvstore"
	// FileName is the document's file name.
	FileName = "store.json"

	documentExt = ".json"
)

// DefaultPath returns the document path used when no location is given.
func DefaultPath(homeDir string) (string, error) {
	if homeDir == "" {
		return "", &ConfigError{Err: errors.New("home directory is unknown; set a location")}
	}
	return filepath.Join(homeDir, DirName, FileName), nil
}

// ResolvePath resolves location to an absolute document path. A location that
// does not end in ".json" is a directory and gets "kvstore/store.json"
// appended. Relative results are joined to workDir. An empty location
// resolves to DefaultPath(homeDir).
func ResolvePath(location, workDir, homeDir string) (string, error) {
	if location == "" {
		return DefaultPath(homeDir)
	}

	if strings.TrimSpace(location) == "" {
		return "", &ConfigError{Err: errors.New("location must be a non-empty path")}
	}
	if strings.ContainsRune(location, 0) {
		return "", &ConfigError{Err: errors.New("location contains a NUL byte")}
	}

	path := location
	if !strings.HasSuffix(path, documentExt) {
		path = filepath.Join(path, DirName, FileName)
	}

	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}

	if workDir == "" {
		return "", &ConfigError{Err: errors.New("working directory is unknown; use an absolute location")}
	}
	return filepath.Join(workDir, path), nil
}
