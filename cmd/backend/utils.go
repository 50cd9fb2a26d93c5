package backend

import "gitlab.com/gfxd/gpu-mode-service/utils"

type Utils struct{}

func (u *Utils) ResponseBody(method, endpoint, query string, body []byte) ([]byte, error) {
	return utils.ResponseBody(method, endpoint, query, body)
}
