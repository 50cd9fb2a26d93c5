package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = "gfxd_config"
	envFile    = "/etc/gfxd/gfxd.env"
	envPrefix  = "GFXD"
)

var (
	cfg  Config
	mu   sync.Mutex
	home = os.Getenv("HOME")
)

func getViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("json")
	v.AddConfigPath(".")           // config file reading order starts with current working directory
	v.AddConfigPath("$HOME/.gfxd") // then home directory
	v.AddConfigPath("/etc/gfxd/")  // finally /etc/gfxd
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaultConfig() *viper.Viper {
	v := getViper()
	v.SetDefault("general.debug", false)
	v.SetDefault("general.database_path", "/var/lib/gfxd/gfxd.db")
	v.SetDefault("general.history_retention", "720h")
	v.SetDefault("rest.port", 1043)
	v.SetDefault("paths.pci_root", "/sys/bus/pci")
	v.SetDefault("paths.xorg_conf", "/etc/X11/xorg.conf.d/90-nvidia-primary.conf")
	v.SetDefault("paths.modprobe_conf", "/etc/modprobe.d/gfxd.conf")
	v.SetDefault("paths.power_status", "/sys/bus/pci/devices/0000:01:00.0/power/runtime_status")
	v.SetDefault("paths.mux_switch", "/sys/devices/platform/asus-nb-wmi/gpu_mux_mode")
	v.SetDefault("services.display_manager", "display-manager.service")
	v.SetDefault("services.nvidia_fallback", "nvidia-fallback.service")
	v.SetDefault("timing.session_poll", "100ms")
	v.SetDefault("timing.session_timeout", "180s")
	v.SetDefault("timing.display_manager_poll", "250ms")
	v.SetDefault("timing.display_manager_timeout", "3s")
	v.SetDefault("timing.driver_attempts", 6)
	v.SetDefault("timing.driver_backoff", "50ms")
	v.SetDefault("tasks.power_sample_interval", "5s")
	v.SetDefault("tasks.history_prune_cron", "0 3 * * *")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	return v
}

// LoadConfig reads gfxd_config.json from the first search path that has one, falling back to
// defaults. Environment variables prefixed with GFXD_ override file values.
func LoadConfig() {
	mu.Lock()
	defer mu.Unlock()
	loadConfig()
}

func loadConfig() {
	// the env file is optional
	_ = godotenv.Load(envFile)

	paths := []string{
		".",
		home + "/.gfxd",
		"/etc/gfxd",
	}
	v := setDefaultConfig()

	config, err := findConfig(paths, configName+".json")
	if err == nil {
		modifiedConfig := removeComments(config)
		// Viper only reads buffer, keeping comments in original config
		if err = v.ReadConfig(bytes.NewBuffer(modifiedConfig)); err != nil {
			v = setDefaultConfig()
		}
	}

	if err = v.Unmarshal(&cfg); err != nil {
		_ = setDefaultConfig().Unmarshal(&cfg)
	}
}

// SetConfig overrides a single key on top of the loaded configuration.
func SetConfig(key string, value interface{}) {
	mu.Lock()
	defer mu.Unlock()

	v := setDefaultConfig()
	_ = v.MergeConfigMap(asMap(cfg))
	v.Set(key, value)
	if err := v.Unmarshal(&cfg); err != nil {
		_ = setDefaultConfig().Unmarshal(&cfg)
	}
}

func GetConfig() *Config {
	mu.Lock()
	defer mu.Unlock()
	if reflect.DeepEqual(cfg, Config{}) {
		loadConfig()
	}
	return &cfg
}

func findConfig(paths []string, filename string) ([]byte, error) {
	for _, path := range paths {
		fullPath := filepath.Join(path, filename)
		if _, err := os.Stat(fullPath); err == nil {
			return os.ReadFile(fullPath)
		}
	}

	return nil, fmt.Errorf("file not found in any of the paths")
}

func removeComments(configBytes []byte) []byte {
	re := regexp.MustCompile("(?m)^\\s*//.*$") // whole-line '//' comments
	return re.ReplaceAll(configBytes, nil)
}

// asMap flattens the current config into viper keys so SetConfig keeps earlier values.
func asMap(c Config) map[string]interface{} {
	return map[string]interface{}{
		"general": map[string]interface{}{
			"debug":             c.General.Debug,
			"database_path":     c.General.DatabasePath,
			"history_retention": c.General.HistoryRetention.String(),
		},
		"rest": map[string]interface{}{
			"port": c.Rest.Port,
		},
		"paths": map[string]interface{}{
			"pci_root":      c.Paths.PciRoot,
			"xorg_conf":     c.Paths.XorgConf,
			"modprobe_conf": c.Paths.ModprobeConf,
			"power_status":  c.Paths.PowerStatus,
			"mux_switch":    c.Paths.MuxSwitch,
		},
		"services": map[string]interface{}{
			"display_manager": c.Services.DisplayManager,
			"nvidia_fallback": c.Services.NvidiaFallback,
		},
		"timing": map[string]interface{}{
			"session_poll":            c.Timing.SessionPoll.String(),
			"session_timeout":         c.Timing.SessionTimeout.String(),
			"display_manager_poll":    c.Timing.DisplayManagerPoll.String(),
			"display_manager_timeout": c.Timing.DisplayManagerTimeout.String(),
			"driver_attempts":         c.Timing.DriverAttempts,
			"driver_backoff":          c.Timing.DriverBackoff.String(),
		},
		"tasks": map[string]interface{}{
			"power_sample_interval": c.Tasks.PowerSampleInterval.String(),
			"history_prune_cron":    c.Tasks.HistoryPruneCron,
		},
		"tracing": map[string]interface{}{
			"endpoint": c.Tracing.Endpoint,
			"insecure": c.Tracing.Insecure,
		},
	}
}
