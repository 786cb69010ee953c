// Package config loads and validates the console configuration from a
// YAML file. Every section validates itself; secrets may be supplied
// through the environment instead of the file.
package config
