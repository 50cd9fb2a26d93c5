package gfx

import (
	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"gitlab.com/gfxd/gpu-mode-service/internal/logger"
)

var zlog otelzap.Logger

func init() {
	zlog = logger.OtelZapLogger("gfx")
}
