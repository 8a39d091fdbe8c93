package postgresengine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// serverVersionPattern matches the banner returned by SELECT version(),
// e.g. "PostgreSQL 16.2 (Debian 16.2-1) on x86_64-pc-linux-gnu".
var serverVersionPattern = regexp.MustCompile(`PostgreSQL (\d+)\.(\d+)(?:\.(\d+))?`)

// DefaultServerVersion is assumed when the server version cannot be determined.
var DefaultServerVersion = ServerVersion{Major: 13}

// ServerVersion is a parsed PostgreSQL server version.
type ServerVersion struct {
	Major int
	Minor int
	Patch int
}

func (v ServerVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether the version is at least major.minor.
func (v ServerVersion) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}

	return v.Minor >= minor
}

// ParseServerVersion extracts the server version from a version() banner.
// The second return value is false when the banner cannot be parsed.
func ParseServerVersion(banner string) (ServerVersion, bool) {
	match := serverVersionPattern.FindStringSubmatch(banner)
	if match == nil {
		return ServerVersion{}, false
	}

	major, _ := strconv.Atoi(match[1])
	minor, _ := strconv.Atoi(match[2])

	patch := 0
	if match[3] != "" {
		patch, _ = strconv.Atoi(match[3])
	}

	return ServerVersion{Major: major, Minor: minor, Patch: patch}, true
}

// Capabilities declares which optional SQL features the connected server supports,
// based purely on its version. Callers use it to skip unsupported operations.
type Capabilities struct {
	version ServerVersion
}

// NewCapabilities creates a capability descriptor for the given server version.
func NewCapabilities(version ServerVersion) Capabilities {
	return Capabilities{version: version}
}

// Version returns the server version the descriptor was built for.
func (c Capabilities) Version() ServerVersion {
	return c.version
}

// SupportsBasicCTE reports WITH support, present since PostgreSQL 8.4.
func (c Capabilities) SupportsBasicCTE() bool {
	return true
}

// SupportsRecursiveCTE reports WITH RECURSIVE support, present since PostgreSQL 8.4.
func (c Capabilities) SupportsRecursiveCTE() bool {
	return true
}

// SupportsMaterializedCTE reports the MATERIALIZED hint, added in PostgreSQL 12.
func (c Capabilities) SupportsMaterializedCTE() bool {
	return c.version.AtLeast(12, 0)
}

// SupportsReturning reports the RETURNING clause, present since PostgreSQL 8.2.
func (c Capabilities) SupportsReturning() bool {
	return true
}

// SupportsWindowFunctions reports window function support, present since PostgreSQL 8.4.
func (c Capabilities) SupportsWindowFunctions() bool {
	return true
}

// SupportsFilterClause reports FILTER on aggregates, added in PostgreSQL 9.4.
func (c Capabilities) SupportsFilterClause() bool {
	return c.version.AtLeast(9, 4)
}

// SupportsJSON reports the JSON type, added in PostgreSQL 9.2.
func (c Capabilities) SupportsJSON() bool {
	return c.version.AtLeast(9, 2)
}

// SupportsJSONB reports the JSONB type, added in PostgreSQL 9.4.
func (c Capabilities) SupportsJSONB() bool {
	return c.version.AtLeast(9, 4)
}

// SupportsJSONTable reports the JSON_TABLE function, added in PostgreSQL 12.
func (c Capabilities) SupportsJSONTable() bool {
	return c.version.AtLeast(12, 0)
}

// SupportsAdvancedGrouping reports ROLLUP, CUBE and GROUPING SETS, added in PostgreSQL 9.5.
func (c Capabilities) SupportsAdvancedGrouping() bool {
	return c.version.AtLeast(9, 5)
}

// SupportsArrayType reports native array support, present in all modern versions.
func (c Capabilities) SupportsArrayType() bool {
	return true
}

// SupportsUpsert reports INSERT ... ON CONFLICT, added in PostgreSQL 9.5.
func (c Capabilities) SupportsUpsert() bool {
	return c.version.AtLeast(9, 5)
}

// SupportsMerge reports the MERGE statement, added in PostgreSQL 15.
func (c Capabilities) SupportsMerge() bool {
	return c.version.AtLeast(15, 0)
}

// SupportsLateralJoin reports LATERAL joins, added in PostgreSQL 9.3.
func (c Capabilities) SupportsLateralJoin() bool {
	return c.version.AtLeast(9, 3)
}

// SupportsSkipLocked reports FOR UPDATE SKIP LOCKED, added in PostgreSQL 9.5.
func (c Capabilities) SupportsSkipLocked() bool {
	return c.version.AtLeast(9, 5)
}

// SupportsOrderedSetAggregation reports ordered-set aggregates, added in PostgreSQL 9.4.
func (c Capabilities) SupportsOrderedSetAggregation() bool {
	return c.version.AtLeast(9, 4)
}

// SupportsQualifyClause is always false; PostgreSQL has no QUALIFY clause.
func (c Capabilities) SupportsQualifyClause() bool {
	return false
}

// SupportsTemporalTables is always false; PostgreSQL has no built-in temporal tables.
func (c Capabilities) SupportsTemporalTables() bool {
	return false
}

// SupportsGraphMatch is always false; there is no native MATCH clause.
func (c Capabilities) SupportsGraphMatch() bool {
	return false
}

// SupportsExplainFormat reports whether EXPLAIN supports the given output format.
func (c Capabilities) SupportsExplainFormat(format string) bool {
	switch strings.ToUpper(format) {
	case "TEXT", "XML", "JSON", "YAML":
		return true
	default:
		return false
	}
}

// UpsertSyntax returns the upsert keyword family of this dialect.
func (c Capabilities) UpsertSyntax() string {
	return "ON CONFLICT"
}

// JSONAccessOperator returns the operator used for JSON member access.
func (c Capabilities) JSONAccessOperator() string {
	return "->"
}
