// Package brand provides centralized naming constants for the daemon.
// The identity is loaded from brand.json at compile time via go:embed so
// scripts and docs generators can read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all naming information
type Brand struct {
	Name             string `json:"name"`
	LowerName        string `json:"lowerName"`
	Description      string `json:"description"`
	ConfigEnvPrefix  string `json:"configEnvPrefix"`
	DefaultConfigDir string `json:"defaultConfigDir"`
	DefaultLogDir    string `json:"defaultLogDir"`
	BinaryName       string `json:"binaryName"`
	ServiceName      string `json:"serviceName"`
	ConfigFileName   string `json:"configFileName"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfigDir = b.DefaultConfigDir
	DefaultLogDir = b.DefaultLogDir
	BinaryName = b.BinaryName
	ServiceName = b.ServiceName
	ConfigFileName = b.ConfigFileName
}

// Exported variables for convenience
var (
	Name             string
	LowerName        string
	Description      string
	ConfigEnvPrefix  string
	DefaultConfigDir string
	DefaultLogDir    string
	BinaryName       string
	ServiceName      string
	ConfigFileName   string

	// Version is set at build time via -ldflags
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// DefaultConfigFile returns the default configuration file path.
func DefaultConfigFile() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: UPLINKD_CONFIG_DIR > UPLINKD_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// GetLogDir returns the log directory, checking env vars first.
// Priority: UPLINKD_LOG_DIR > UPLINKD_PREFIX/log > DefaultLogDir
func GetLogDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_LOG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "log")
	}
	return DefaultLogDir
}
