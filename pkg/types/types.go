// Package types defines the public domain types for the trash-can sensor API.
package types

// Record is a decoded storage row: attribute name to string, number, or nested value.
// Numbers are int64 when integral and float64 otherwise.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Int returns the integer attribute key and whether it was present as an int64.
func (r Record) Int(key string) (int64, bool) {
	v, ok := r[key].(int64)
	return v, ok
}

// String returns the string attribute key and whether it was present as a string.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key].(string)
	return v, ok
}
