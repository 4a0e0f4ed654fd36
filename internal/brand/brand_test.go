package brand

import (
	"os"
	"testing"
)

func TestGet(t *testing.T) {
	b := Get()
	if b.Name == "" {
		t.Error("Brand name should not be empty")
	}
	// Version is a global variable, not in the struct
	if Version == "" {
		t.Error("Global Version should be initialized (to dev default)")
	}
	if Name == "" {
		t.Error("Global Name should be initialized")
	}
}

func TestGetDirectories(t *testing.T) {
	cleanEnv := func() {
		os.Unsetenv(ConfigEnvPrefix + "_PREFIX")
		os.Unsetenv(ConfigEnvPrefix + "_CONFIG_DIR")
		os.Unsetenv(ConfigEnvPrefix + "_LOG_DIR")
	}
	cleanEnv()
	defer cleanEnv()

	if GetConfigDir() != DefaultConfigDir {
		t.Errorf("Expected default config dir %s, got %s", DefaultConfigDir, GetConfigDir())
	}
	if GetLogDir() != DefaultLogDir {
		t.Errorf("Expected default log dir %s, got %s", DefaultLogDir, GetLogDir())
	}

	os.Setenv(ConfigEnvPrefix+"_PREFIX", "/tmp/uplinkd")
	if GetConfigDir() != "/tmp/uplinkd/config" {
		t.Errorf("Expected prefix config dir, got %s", GetConfigDir())
	}

	os.Setenv(ConfigEnvPrefix+"_CONFIG_DIR", "/custom/config")
	if GetConfigDir() != "/custom/config" {
		t.Errorf("Expected custom config dir, got %s", GetConfigDir())
	}
}

func TestDefaultConfigFile(t *testing.T) {
	os.Unsetenv(ConfigEnvPrefix + "_CONFIG_DIR")
	os.Unsetenv(ConfigEnvPrefix + "_PREFIX")
	if DefaultConfigFile() != "/etc/uplinkd/uplinkd.hcl" {
		t.Errorf("Unexpected default config file: %s", DefaultConfigFile())
	}
}
