package provider

// Options carries free-form provider knobs from configuration. Providers read
// the names they understand and ignore the rest, so one options table can be
// shared across backends without per-provider validation.
type Options map[string]any

// Float64 returns the named option as a float64 when present and numeric.
func (o Options) Float64(name string) (float64, bool) {
	v, ok := o[name]
	if !ok {
		return 0, false
	}
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	default:
		return 0, false
	}
}

// Int returns the named option as an int when present and numeric. Float
// values are truncated, matching how TOML decodes whole numbers.
func (o Options) Int(name string) (int, bool) {
	v, ok := o[name]
	if !ok {
		return 0, false
	}
	switch value := v.(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}

// String returns the named option as a string when present.
func (o Options) String(name string) (string, bool) {
	v, ok := o[name]
	if !ok {
		return "", false
	}
	value, ok := v.(string)
	return value, ok
}
