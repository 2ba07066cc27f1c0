// Package config loads server defaults from a JSON file and PATTERN_MCP_*
// environment variables.
//
// The file lives at ~/.config/pattern-mcp/config.json unless --config names
// another path. Any field left out of the file keeps its default, and
// environment variables win over the file.
package config
