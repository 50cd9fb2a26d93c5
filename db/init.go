package db

import (
	"gitlab.com/gfxd/gpu-mode-service/internal/logger"
)

var zlog *logger.Logger

func init() {
	zlog = logger.New("db")
}
