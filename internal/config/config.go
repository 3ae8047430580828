// Package config loads the service configuration from a YAML file with
// DIRECTOR_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"replay-director/internal/direction"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Cameras   CamerasConfig   `mapstructure:"cameras"`
	Runs      RunsConfig      `mapstructure:"runs"`
	Direction DirectionConfig `mapstructure:"direction"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DatabaseConfig points at the overlay store. An empty DSN keeps finished
// runs in memory only.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type CamerasConfig struct {
	Catalogue string `mapstructure:"catalogue"`
}

// RunsConfig bounds how many finished runs the API keeps in memory.
type RunsConfig struct {
	Retained int `mapstructure:"retained"`
}

type DirectionConfig struct {
	CameraStickyPeriod              time.Duration `mapstructure:"camera_sticky_period"`
	BattleStickyPeriod              time.Duration `mapstructure:"battle_sticky_period"`
	BattleGap                       time.Duration `mapstructure:"battle_gap"`
	BattleFactor                    float64       `mapstructure:"battle_factor"`
	FollowLeaderAtRaceStartPeriod   time.Duration `mapstructure:"follow_leader_at_race_start_period"`
	FollowLeaderBeforeRaceEndPeriod time.Duration `mapstructure:"follow_leader_before_race_end_period"`
	RestartPeriod                   time.Duration `mapstructure:"restart_period"`
	IgnoreIncidentsBelowPosition    int           `mapstructure:"ignore_incidents_below_position"`
	IgnoreIncidentsDuringRaceStart  bool          `mapstructure:"ignore_incidents_during_race_start"`
	DisableIncidentsSearch          bool          `mapstructure:"disable_incidents_search"`
	FocusOnPreferredDriver          bool          `mapstructure:"focus_on_preferred_driver"`
	PreferredDrivers                []string      `mapstructure:"preferred_drivers"`
	RemoveNumbersFromNames          bool          `mapstructure:"remove_numbers_from_names"`
}

func setDefaults(v *viper.Viper) {
	d := direction.DefaultSettings()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("cameras.catalogue", "")
	v.SetDefault("runs.retained", 32)

	v.SetDefault("direction.camera_sticky_period", d.CameraStickyPeriod)
	v.SetDefault("direction.battle_sticky_period", d.BattleStickyPeriod)
	v.SetDefault("direction.battle_gap", d.BattleGap)
	v.SetDefault("direction.battle_factor", d.BattleFactor)
	v.SetDefault("direction.follow_leader_at_race_start_period", d.FollowLeaderAtRaceStartPeriod)
	v.SetDefault("direction.follow_leader_before_race_end_period", d.FollowLeaderBeforeRaceEndPeriod)
	v.SetDefault("direction.restart_period", d.RestartPeriod)
	v.SetDefault("direction.ignore_incidents_below_position", d.IgnoreIncidentsBelowPosition)
	v.SetDefault("direction.ignore_incidents_during_race_start", false)
	v.SetDefault("direction.disable_incidents_search", false)
	v.SetDefault("direction.focus_on_preferred_driver", false)
	v.SetDefault("direction.preferred_drivers", []string{})
	v.SetDefault("direction.remove_numbers_from_names", false)
}

// Load reads the configuration. An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DIRECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	d := c.Direction
	durations := map[string]time.Duration{
		"camera_sticky_period":                 d.CameraStickyPeriod,
		"battle_sticky_period":                 d.BattleStickyPeriod,
		"battle_gap":                           d.BattleGap,
		"follow_leader_at_race_start_period":   d.FollowLeaderAtRaceStartPeriod,
		"follow_leader_before_race_end_period": d.FollowLeaderBeforeRaceEndPeriod,
		"restart_period":                       d.RestartPeriod,
	}
	for name, value := range durations {
		if value <= 0 {
			return fmt.Errorf("%w: direction.%s must be positive, got %s", ErrInvalidConfig, name, value)
		}
	}
	if d.BattleFactor < 1 {
		return fmt.Errorf("%w: direction.battle_factor must be at least 1, got %g", ErrInvalidConfig, d.BattleFactor)
	}
	if d.IgnoreIncidentsBelowPosition <= 0 {
		return fmt.Errorf("%w: direction.ignore_incidents_below_position must be positive", ErrInvalidConfig)
	}
	if d.FocusOnPreferredDriver && len(d.PreferredDrivers) == 0 {
		return fmt.Errorf("%w: direction.focus_on_preferred_driver needs preferred_drivers", ErrInvalidConfig)
	}
	if c.Runs.Retained <= 0 {
		return fmt.Errorf("%w: runs.retained must be positive", ErrInvalidConfig)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr is required", ErrInvalidConfig)
	}
	return nil
}

// Director maps the direction section onto the engine settings.
func (c *Config) Director() direction.Settings {
	d := c.Direction
	return direction.Settings{
		CameraStickyPeriod:              d.CameraStickyPeriod,
		BattleStickyPeriod:              d.BattleStickyPeriod,
		BattleGap:                       d.BattleGap,
		BattleFactor:                    d.BattleFactor,
		FollowLeaderAtRaceStartPeriod:   d.FollowLeaderAtRaceStartPeriod,
		FollowLeaderBeforeRaceEndPeriod: d.FollowLeaderBeforeRaceEndPeriod,
		RestartPeriod:                   d.RestartPeriod,
		IgnoreIncidentsBelowPosition:    d.IgnoreIncidentsBelowPosition,
		IgnoreIncidentsDuringRaceStart:  d.IgnoreIncidentsDuringRaceStart,
		FocusOnPreferredDriver:          d.FocusOnPreferredDriver,
		PreferredDrivers:                append([]string(nil), d.PreferredDrivers...),
	}
}
