package slots

import "strings"

// Values holds captured slot values. A key that is absent is unfilled.
type Values map[Key]string

// Get returns the value for key and whether it is filled.
func (v Values) Get(key Key) (string, bool) {
	if v == nil {
		return "", false
	}
	val, ok := v[key]
	return val, ok
}

// Value returns the value for key or "" when unfilled.
func (v Values) Value(key Key) string {
	val, _ := v.Get(key)
	return val
}

// Filled reports whether key holds a value.
func (v Values) Filled(key Key) bool {
	_, ok := v.Get(key)
	return ok
}

// Set stores a trimmed value. Blank values are ignored so a previously
// captured value is never replaced by an empty one.
func (v Values) Set(key Key, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	v[key] = value
	return true
}

// Clear removes a value.
func (v Values) Clear(key Key) {
	delete(v, key)
}

// Flag reads a boolean confirmation slot.
func (v Values) Flag(key Key) bool {
	return v.Value(key) == "true"
}

// SetFlag writes a boolean confirmation slot; false clears it.
func (v Values) SetFlag(key Key, on bool) {
	if on {
		v[key] = "true"
		return
	}
	delete(v, key)
}

// FilledKeys lists filled keys in schema order.
func (v Values) FilledKeys() []string {
	out := make([]string, 0, len(v))
	for _, key := range AllKeys() {
		if v.Filled(key) {
			out = append(out, string(key))
		}
	}
	return out
}

// Clone copies the values.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
