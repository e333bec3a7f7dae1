package logentry

import (
	"fmt"

	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
)

// Version is the one-byte format marker written at the head of every entry.
// Supported versions are negative; positive markers belong to the legacy
// pre-2.3 format.
type Version int8

const (
	V2_3    Version = -5
	V3_0    Version = -6
	V2_3_5  Version = -8
	V3_0_2  Version = -9
	V3_0_10 Version = -10

	LatestVersion = V3_0_10
)

type versionRules struct {
	name    string
	release int
	parsers map[EntryTypeCode]entryParser
}

var (
	versions     = map[Version]*versionRules{}
	releaseOrder []Version
)

// registerVersion adds a version with its parsers. Released versions are
// never changed; a new layout means a new version.
func registerVersion(v Version, name string, parsers map[EntryTypeCode]entryParser) {
	if _, exists := versions[v]; exists {
		panic(fmt.Sprintf("log entry version %d registered twice", v))
	}
	versions[v] = &versionRules{name: name, release: len(releaseOrder), parsers: parsers}
	releaseOrder = append(releaseOrder, v)
}

func init() {
	registerVersion(V2_3, "V2_3", parsersV2_3)
	registerVersion(V3_0, "V3_0", parsersV2_3)
	registerVersion(V2_3_5, "V2_3_5", parsersV2_3)
	registerVersion(V3_0_2, "V3_0_2", parsersV2_3)
	registerVersion(V3_0_10, "V3_0_10", parsersV2_3)
}

// VersionOf resolves a version byte.
func VersionOf(b byte) (Version, error) {
	v := Version(int8(b))
	if _, ok := versions[v]; ok {
		return v, nil
	}
	if v >= 0 {
		return 0, txErr.Newf(txErr.ErrorTypeUnsupportedVersion,
			"log entry version %d is from a legacy format that is no longer supported", v)
	}
	return 0, txErr.Newf(txErr.ErrorTypeUnsupportedVersion,
		"log entry version %d is unknown, the log may have been written by a newer version (latest supported is %s)",
		v, LatestVersion)
}

// Versions returns all supported versions in release order.
func Versions() []Version {
	out := make([]Version, len(releaseOrder))
	copy(out, releaseOrder)
	return out
}

// Code returns the byte written to the log for v.
func (v Version) Code() byte {
	return byte(v)
}

// MoreRecentThan reports whether v was released after other.
func (v Version) MoreRecentThan(other Version) bool {
	a, okA := versions[v]
	b, okB := versions[other]
	return okA && okB && a.release > b.release
}

func (v Version) parser(code EntryTypeCode) (entryParser, error) {
	rules, ok := versions[v]
	if !ok {
		return nil, txErr.Newf(txErr.ErrorTypeUnsupportedVersion, "log entry version %d is unknown", v)
	}
	p, ok := rules.parsers[code]
	if !ok {
		return nil, txErr.Newf(txErr.ErrorTypeUnknownEntryType,
			"log entry type %s is not readable in version %s", code, v)
	}
	return p, nil
}

func (v Version) String() string {
	if rules, ok := versions[v]; ok {
		return rules.name
	}
	return fmt.Sprintf("Version(%d)", int8(v))
}
