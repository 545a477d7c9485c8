// Package config handles configuration loading for silas-gateway.
//
// Configuration is loaded from a YAML file with ${VAR} environment variable
// expansion and duration-string parsing. Load validates required fields
// (server address, database path, Gemini API key) and returns a descriptive
// error for the first failure found.
package config
