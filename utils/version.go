package utils

// Version is set at build time with -ldflags "-X gitlab.com/gfxd/gpu-mode-service/utils.Version=...".
var Version = "0.1.0-dev"
