// Package config defines the relay configuration: YAML structs,
// defaults, validation, and the file loader with environment variable
// expansion.
package config
