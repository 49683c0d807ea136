// Package keys encodes device identifiers and report timestamps into the
// pk/sk strings of the single-table layout, and decodes them back.
package keys

import (
	"strings"
	"time"
)

// Key attribute names.
const (
	AttrPK = "pk"
	AttrSK = "sk"
)

// Record attribute names.
const (
	AttrTotalLevels       = "total_levels"
	AttrFillLevel         = "fill_level"
	AttrCreationTimestamp = "creation_timestamp"
	AttrUpdatedTimestamp  = "updated_timestamp"
)

// Reserved key values and prefixes.
const (
	Details       = "details"
	ReportCurrent = "report#current"

	prefixDevice          = "device#"
	prefixReportTimestamp = "report#timestamp#"
)

// TimestampLayout is fixed-width so that sort keys order chronologically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DeviceKey encodes a device id.
func DeviceKey(id string) string { return prefixDevice + id }

// DevicePrefix is the begins_with filter matching every encoded device id.
func DevicePrefix() string { return DeviceKey("") }

// ExtractDeviceID reverses DeviceKey. It reports false when key is not an
// encoded device id.
func ExtractDeviceID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, prefixDevice)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// ReportSortKey encodes a history sort key. An empty timestamp yields the
// common prefix of all history rows.
func ReportSortKey(timestamp string) string { return prefixReportTimestamp + timestamp }

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }
