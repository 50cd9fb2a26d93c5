package gfx

import (
	"bytes"

	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/pci"
)

var (
	NvidiaModules = []string{"nvidia_drm", "nvidia_modeset", "nvidia_uvm", "nvidia"}
	VfioModules   = []string{"vfio-pci", "vfio_iommu_type1", "vfio_virqfd", "vfio_mdev", "vfio"}
)

const (
	nouveauModule = "nouveau"
	vfioPciModule = "vfio-pci"
)

var modprobeBase = []byte(`# Automatically generated by gfxd
blacklist i2c_nvidia_gpu
alias i2c_nvidia_gpu off
options nvidia NVreg_DynamicPowerManagement=0x02
`)

var modprobeDrmModeset = []byte(`options nvidia-drm modeset=1
`)

var modprobeIntegrated = []byte(`# Automatically generated by gfxd
blacklist i2c_nvidia_gpu
blacklist nouveau
blacklist nvidia
blacklist nvidia-drm
blacklist nvidia-modeset
alias i2c_nvidia_gpu off
alias nouveau off
alias nvidia off
alias nvidia-drm off
alias nvidia-modeset off
`)

var modprobeVfio = []byte("options vfio-pci ids=")

var xorgBegin = []byte(`# Automatically generated by gfxd
Section "OutputClass"
    Identifier "nvidia"
    MatchDriver "nvidia-drm"
    Driver "nvidia"
    Option "AllowEmptyInitialConfiguration"
    Option "AllowExternalGpus"`)

var xorgPrimaryGpu = []byte(`
    Option "PrimaryGPU" "true"`)

var xorgEnd = []byte(`
EndSection
`)

// XorgConf renders the OutputClass fragment. Only Nvidia mode makes the dGPU primary.
func XorgConf(mode models.GpuMode) []byte {
	if mode == models.GpuModeNvidia {
		return concat(xorgBegin, xorgPrimaryGpu, xorgEnd)
	}
	return concat(xorgBegin, xorgEnd)
}

// ModprobeConf renders the module policy file for mode. devices only matter for Vfio.
func ModprobeConf(mode models.GpuMode, devices []pci.GraphicsDevice) []byte {
	switch mode {
	case models.GpuModeNvidia, models.GpuModeHybrid:
		return concat(modprobeBase, modprobeDrmModeset)
	case models.GpuModeCompute:
		return concat(modprobeBase)
	case models.GpuModeVfio:
		return concat(modprobeIntegrated, vfioIDs(devices))
	default:
		return concat(modprobeIntegrated)
	}
}

func vfioIDs(devices []pci.GraphicsDevice) []byte {
	var ids [][]byte
	for _, dev := range devices {
		for _, fn := range dev.Functions {
			ids = append(ids, []byte(fn.ID()))
		}
	}
	line := concat(modprobeVfio, bytes.Join(ids, []byte(",")))
	return append(line, '\n')
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}
