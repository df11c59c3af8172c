// Package override supplies local flag values that replace or complement the
// downloaded config, backed by an in-memory map or a watched file.
package override

import (
	"github.com/TimurManjosov/goflagclient/internal/model"
)

// Behavior controls how local override settings combine with remote config.
type Behavior int

const (
	// LocalOnly serves overrides exclusively; the SDK never fetches.
	LocalOnly Behavior = iota
	// LocalOverRemote merges both sources, overrides winning on conflict.
	LocalOverRemote
	// RemoteOverLocal merges both sources, remote config winning on
	// conflict.
	RemoteOverLocal
)

func (b Behavior) String() string {
	switch b {
	case LocalOnly:
		return "local only"
	case LocalOverRemote:
		return "local over remote"
	default:
		return "remote over local"
	}
}

// DataSource provides the current override settings. Implementations must be
// safe for concurrent reads.
type DataSource interface {
	// Settings returns the current override settings snapshot. The returned
	// map must not be mutated by callers.
	Settings() map[string]*model.Setting
	// Close releases any resources held by the source, such as file
	// watchers.
	Close() error
}

// Overrides couples a data source with its merge behavior.
type Overrides struct {
	Source   DataSource
	Behavior Behavior
}

// Apply merges the override settings into the remote ones per the behavior.
// The input map is never mutated; when a merge happens a fresh map is
// returned.
func (o *Overrides) Apply(remote map[string]*model.Setting) map[string]*model.Setting {
	if o == nil || o.Source == nil {
		return remote
	}
	local := o.Source.Settings()

	switch o.Behavior {
	case LocalOnly:
		return local
	case LocalOverRemote:
		return mergeSettings(remote, local)
	default:
		return mergeSettings(local, remote)
	}
}

// mergeSettings overlays winners on top of base.
func mergeSettings(base, winners map[string]*model.Setting) map[string]*model.Setting {
	merged := make(map[string]*model.Setting, len(base)+len(winners))
	for key, setting := range base {
		merged[key] = setting
	}
	for key, setting := range winners {
		merged[key] = setting
	}
	return merged
}

// settingsFromValues converts plain key/value pairs into settings. Values of
// unsupported types are skipped and reported via the returned slice of keys.
func settingsFromValues(values map[string]any) (map[string]*model.Setting, []string) {
	settings := make(map[string]*model.Setting, len(values))
	var skipped []string
	for key, value := range values {
		t := model.TypeOf(normalizeValue(value))
		if t == model.UnknownType {
			skipped = append(skipped, key)
			continue
		}
		settings[key] = &model.Setting{
			Type:  t,
			Value: model.NewSettingValue(normalizeValue(value)),
		}
	}
	return settings, skipped
}

// normalizeValue maps the numeric types produced by JSON and YAML decoding
// onto the setting value types.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case float64:
		// JSON numbers always decode as float64; keep integral ones as ints
		// so bare counters round-trip with the expected setting type.
		if v == float64(int(v)) {
			return int(v)
		}
		return v
	case float32:
		return float64(v)
	case int64:
		return int(v)
	default:
		return value
	}
}
