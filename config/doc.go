// Package config loads the settings of the coursehistory tool and builds the connections and
// telemetry providers they describe.
//
// Settings come from an optional config.yaml in the given directory, overridden by environment
// variables with the prefix COURSEHISTORY_ (nested keys joined by underscores, for example
// COURSEHISTORY_DATABASE_PRIMARY_DSN), falling back to DefaultSettings.
package config
