package logfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sajjad-MoBe/txlog/internal/channel"
)

const filePrefix = "txlog."

// FileName returns the file name of log version v.
func FileName(v int64) string {
	return fmt.Sprintf("%s%d", filePrefix, v)
}

// ParseFileName returns the log version encoded in name.
func ParseFileName(name string) (int64, bool) {
	if !strings.HasPrefix(name, filePrefix) {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimPrefix(name, filePrefix), 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// LogFiles locates the log files of one directory.
type LogFiles struct {
	Dir string
}

// Path returns the path of log version v.
func (f LogFiles) Path(v int64) string {
	return filepath.Join(f.Dir, FileName(v))
}

// Versions returns the log versions on disk in ascending order.
func (f LogFiles) Versions() ([]int64, error) {
	matches, err := filepath.Glob(filepath.Join(f.Dir, filePrefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %v", err)
	}

	var versions []int64
	for _, match := range matches {
		if v, ok := ParseFileName(filepath.Base(match)); ok {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// Lowest returns the lowest log version on disk; ok is false if there is none.
func (f LogFiles) Lowest() (v int64, ok bool, err error) {
	versions, err := f.Versions()
	if err != nil || len(versions) == 0 {
		return 0, false, err
	}
	return versions[0], true, nil
}

// Highest returns the highest log version on disk; ok is false if there is none.
func (f LogFiles) Highest() (v int64, ok bool, err error) {
	versions, err := f.Versions()
	if err != nil || len(versions) == 0 {
		return 0, false, err
	}
	return versions[len(versions)-1], true, nil
}

// FileInfo describes one log file. Incomplete is set for a file shorter than
// its header.
type FileInfo struct {
	Version    int64  `json:"version"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Header     Header `json:"header"`
	Incomplete bool   `json:"incomplete,omitempty"`
}

// Describe returns the header and size of log version v.
func (f LogFiles) Describe(v int64) (FileInfo, error) {
	path := f.Path(v)
	file, err := os.Open(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return FileInfo{}, err
	}
	info := FileInfo{Version: v, Path: path, Size: stat.Size()}
	header, err := ReadHeader(channel.NewReadAheadChannel(file, v, 0))
	if errors.Is(err, ErrIncompleteHeader) {
		info.Incomplete = true
		return info, nil
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	info.Header = header
	return info, nil
}
