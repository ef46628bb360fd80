package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "COURSEHISTORY"

// Load reads config.yaml from configPath, if present, and applies environment overrides on top of the defaults.
// An empty configPath skips the file.
func Load(configPath string) (Settings, error) {
	v := newViper(DefaultSettings())

	if configPath != "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configPath)

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, err
			}
		}
	}

	settings := Settings{
		Database: DatabaseSettings{
			Driver:          v.GetString("database.driver"),
			PrimaryDSN:      v.GetString("database.primary_dsn"),
			ReplicaDSN:      v.GetString("database.replica_dsn"),
			ChangeLogTable:  v.GetString("database.change_log_table"),
			MaxConns:        v.GetInt32("database.max_conns"),
			MinConns:        v.GetInt32("database.min_conns"),
			MaxConnLifetime: v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime: v.GetDuration("database.max_conn_idle_time"),
			ConnectTimeout:  v.GetDuration("database.connect_timeout"),
		},
		Presentation: PresentationSettings{
			TimeZone:        v.GetString("presentation.time_zone"),
			TimestampLayout: v.GetString("presentation.timestamp_layout"),
			GroupingWindow:  v.GetDuration("presentation.grouping_window"),
		},
		Logging: LoggingSettings{
			Backend: strings.ToLower(v.GetString("logging.backend")),
			Level:   v.GetString("logging.level"),
		},
		Telemetry: TelemetrySettings{
			Enabled:            v.GetBool("telemetry.enabled"),
			TracesEndpointURL:  v.GetString("telemetry.traces_endpoint_url"),
			MetricsEndpointURL: v.GetString("telemetry.metrics_endpoint_url"),
			LogsEndpointURL:    v.GetString("telemetry.logs_endpoint_url"),
			MetricsInterval:    v.GetDuration("telemetry.metrics_interval"),
			ServiceName:        v.GetString("telemetry.service_name"),
			Environment:        v.GetString("telemetry.environment"),
		},
		RequestTimeout: v.GetDuration("request_timeout"),
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

// newViper registers every key with its default, so AutomaticEnv can override keys absent from the file.
func newViper(defaults Settings) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.driver", defaults.Database.Driver)
	v.SetDefault("database.primary_dsn", defaults.Database.PrimaryDSN)
	v.SetDefault("database.replica_dsn", defaults.Database.ReplicaDSN)
	v.SetDefault("database.change_log_table", defaults.Database.ChangeLogTable)
	v.SetDefault("database.max_conns", defaults.Database.MaxConns)
	v.SetDefault("database.min_conns", defaults.Database.MinConns)
	v.SetDefault("database.max_conn_lifetime", defaults.Database.MaxConnLifetime)
	v.SetDefault("database.max_conn_idle_time", defaults.Database.MaxConnIdleTime)
	v.SetDefault("database.connect_timeout", defaults.Database.ConnectTimeout)

	v.SetDefault("presentation.time_zone", defaults.Presentation.TimeZone)
	v.SetDefault("presentation.timestamp_layout", defaults.Presentation.TimestampLayout)
	v.SetDefault("presentation.grouping_window", defaults.Presentation.GroupingWindow)

	v.SetDefault("logging.backend", defaults.Logging.Backend)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetDefault("telemetry.enabled", defaults.Telemetry.Enabled)
	v.SetDefault("telemetry.traces_endpoint_url", defaults.Telemetry.TracesEndpointURL)
	v.SetDefault("telemetry.metrics_endpoint_url", defaults.Telemetry.MetricsEndpointURL)
	v.SetDefault("telemetry.logs_endpoint_url", defaults.Telemetry.LogsEndpointURL)
	v.SetDefault("telemetry.metrics_interval", defaults.Telemetry.MetricsInterval)
	v.SetDefault("telemetry.service_name", defaults.Telemetry.ServiceName)
	v.SetDefault("telemetry.environment", defaults.Telemetry.Environment)

	v.SetDefault("request_timeout", defaults.RequestTimeout)

	return v
}
