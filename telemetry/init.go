package telemetry

import "gitlab.com/gfxd/gpu-mode-service/internal/logger"

var zlog *logger.Logger

func init() {
	zlog = logger.New("telemetry")
}
