package config

import (
	"fmt"
	"regexp"
)

// Settings source kinds.
const (
	SettingsSourceFile     = "file"
	SettingsSourceRedis    = "redis"
	SettingsSourceStatic   = "static"
	SettingsSourcePostgres = "postgres"
)

// pgIdentifier matches an unquoted postgres identifier (max 63 bytes).
var pgIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// SettingsConfig selects where exclusion settings are loaded from.
type SettingsConfig struct {
	Source string `envconfig:"SOURCE" default:"file" validate:"oneof=file redis static postgres"`

	// FilePath is read by the file source.
	FilePath string `envconfig:"FILE_PATH" default:"indexgate-settings.json"`

	// RedisKey and RedisChannel are used by the redis source.
	RedisKey     string `envconfig:"REDIS_KEY" default:"indexgate:settings"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"indexgate:settings:changed"`

	// PostgresKey names the settings row; PostgresChannel is the LISTEN/NOTIFY
	// channel announcing saves.
	PostgresKey     string `envconfig:"POSTGRES_KEY" default:"default"`
	PostgresChannel string `envconfig:"POSTGRES_CHANNEL" default:"indexgate_settings_changed"`

	// Watch reloads the settings when the source reports a change.
	Watch bool `envconfig:"WATCH" default:"true"`

	// Toggles served by the static source.
	FrontendIndexDisabled bool `envconfig:"FRONTEND_INDEX_DISABLED" default:"false"`
	TodoIndexDisabled     bool `envconfig:"TODO_INDEX_DISABLED" default:"false"`
}

// Validate checks the fields required by the selected source.
func (c *SettingsConfig) Validate() error {
	switch c.Source {
	case SettingsSourceFile:
		if err := validateNoWhitespace(c.FilePath, "settings file path"); err != nil {
			return err
		}
	case SettingsSourceRedis:
		if err := validateNoWhitespace(c.RedisKey, "settings redis key"); err != nil {
			return err
		}
		if err := validateNoWhitespace(c.RedisChannel, "settings redis channel"); err != nil {
			return err
		}
	case SettingsSourcePostgres:
		if err := validateNoWhitespace(c.PostgresKey, "settings postgres key"); err != nil {
			return err
		}
		if !pgIdentifier.MatchString(c.PostgresChannel) {
			return fmt.Errorf("settings postgres channel %q must be a lowercase identifier of at most 63 characters", c.PostgresChannel)
		}
	case SettingsSourceStatic:
	default:
		return fmt.Errorf("unknown settings source %q", c.Source)
	}
	return nil
}
