package main

import (
	"gitlab.com/gfxd/gpu-mode-service/cmd"
)

func main() {
	// Execute command-line interface; should be the last call in main()
	cmd.Execute()
}
