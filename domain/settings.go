package domain

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// Settings is the free-form settings mapping of the agenda. The well known
// keys are lifted into fields; anything else is kept in Extra so a round trip
// through a backup preserves it.
type Settings struct {
	LastBackup time.Time
	Theme      string
	Extra      map[string]any
}

const (
	settingsLastBackupKey = "lastBackup"
	settingsThemeKey      = "theme"
)

func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	if !s.LastBackup.IsZero() {
		out[settingsLastBackupKey] = s.LastBackup.UTC().Format(TimestampLayout)
	}
	out[settingsThemeKey] = s.Theme
	return sonic.ConfigStd.Marshal(out)
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Settings{}
	if raw == nil {
		return nil
	}
	if v, ok := raw[settingsLastBackupKey]; ok {
		str, isStr := v.(string)
		if !isStr && v != nil {
			return fmt.Errorf("settings.%s: expected string, got %T", settingsLastBackupKey, v)
		}
		if str != "" {
			t, err := time.Parse(time.RFC3339Nano, str)
			if err != nil {
				return fmt.Errorf("settings.%s: %w", settingsLastBackupKey, err)
			}
			s.LastBackup = t.UTC()
		}
		delete(raw, settingsLastBackupKey)
	}
	if v, ok := raw[settingsThemeKey]; ok {
		str, isStr := v.(string)
		if !isStr && v != nil {
			return fmt.Errorf("settings.%s: expected string, got %T", settingsThemeKey, v)
		}
		s.Theme = str
		delete(raw, settingsThemeKey)
	}
	if len(raw) > 0 {
		s.Extra = raw
	}
	return nil
}

func (s Settings) clone() Settings {
	out := s
	if s.Extra != nil {
		out.Extra = make(map[string]any, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
