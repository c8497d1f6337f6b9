package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// Device represents the compute device a tensor is placed on.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// ParseDevice converts a location string such as "cpu", "cuda" or "cuda:1"
// into a Device. Matching is case-insensitive. The optional ordinal after the
// colon is validated but not kept: placement is per device kind.
func ParseDevice(location string) (Device, error) {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return CPU, nil
	}

	kind, ordinal, hasOrdinal := strings.Cut(loc, ":")
	if hasOrdinal {
		n, err := strconv.Atoi(ordinal)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid device ordinal in %q", location)
		}
	}

	switch kind {
	case "cpu":
		if hasOrdinal {
			return 0, fmt.Errorf("cpu does not take an ordinal: %q", location)
		}
		return CPU, nil
	case "cuda", "gpu":
		return CUDA, nil
	case "vulkan":
		return Vulkan, nil
	case "metal", "mps":
		return Metal, nil
	case "webgpu", "wgpu":
		return WebGPU, nil
	default:
		return 0, fmt.Errorf("unknown device %q", location)
	}
}
