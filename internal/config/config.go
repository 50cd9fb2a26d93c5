package config

import "time"

type Config struct {
	General  `mapstructure:"general"`
	Rest     `mapstructure:"rest"`
	Paths    `mapstructure:"paths"`
	Services `mapstructure:"services"`
	Timing   `mapstructure:"timing"`
	Tasks    `mapstructure:"tasks"`
	Tracing  `mapstructure:"tracing"`
}

type General struct {
	Debug            bool          `mapstructure:"debug"`
	DatabasePath     string        `mapstructure:"database_path"`
	HistoryRetention time.Duration `mapstructure:"history_retention"`
}

type Rest struct {
	Port int `mapstructure:"port"`
}

// Paths are the sysfs attributes and generated files the daemon touches.
type Paths struct {
	PciRoot      string `mapstructure:"pci_root"`
	XorgConf     string `mapstructure:"xorg_conf"`
	ModprobeConf string `mapstructure:"modprobe_conf"`
	PowerStatus  string `mapstructure:"power_status"`
	MuxSwitch    string `mapstructure:"mux_switch"`
}

type Services struct {
	DisplayManager string `mapstructure:"display_manager"`
	NvidiaFallback string `mapstructure:"nvidia_fallback"`
}

type Timing struct {
	SessionPoll           time.Duration `mapstructure:"session_poll"`
	SessionTimeout        time.Duration `mapstructure:"session_timeout"`
	DisplayManagerPoll    time.Duration `mapstructure:"display_manager_poll"`
	DisplayManagerTimeout time.Duration `mapstructure:"display_manager_timeout"`
	DriverAttempts        int           `mapstructure:"driver_attempts"`
	DriverBackoff         time.Duration `mapstructure:"driver_backoff"`
}

type Tasks struct {
	PowerSampleInterval time.Duration `mapstructure:"power_sample_interval"`
	HistoryPruneCron    string        `mapstructure:"history_prune_cron"`
}

type Tracing struct {
	Endpoint string `mapstructure:"endpoint"` // empty disables the exporter
	Insecure bool   `mapstructure:"insecure"`
}
