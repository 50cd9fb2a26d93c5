package repositories_gorm

import (
	"gitlab.com/gfxd/gpu-mode-service/internal/logger"
)

var zlog *logger.Logger

func init() {
	zlog = logger.New("db.repositories.gorm")
}
