// Package config loads and validates relay configuration from YAML.
//
// Loading is split into three steps so tools can opt out of defaults
// or validation: Load, LoadWithDefaults, LoadAndValidate. ${VAR}
// references in the file are expanded from the environment.
package config
