package config

import "time"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	StatsFeedIntervalChanged bool
	NewStatsFeedInterval     time.Duration

	// RestartRequired lists keys that changed but are only read at startup.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.StatsFeed.Interval != new.StatsFeed.Interval {
		d.StatsFeedIntervalChanged = true
		d.NewStatsFeedInterval = new.StatsFeed.Interval
	}

	restart := []struct {
		key     string
		changed bool
	}{
		{"server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr},
		{"stream", old.Stream != new.Stream},
		{"tcp", old.TCP != new.TCP},
		{"capture", old.Capture != new.Capture},
		{"sender", old.Sender != new.Sender},
		{"receiver", old.Receiver != new.Receiver},
		{"catalog", old.Catalog != new.Catalog},
	}
	for _, r := range restart {
		if r.changed {
			d.RestartRequired = append(d.RestartRequired, r.key)
		}
	}
	return d
}

// HasChanges reports whether any field differs.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.StatsFeedIntervalChanged || len(d.RestartRequired) > 0
}
