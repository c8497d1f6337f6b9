package nn

import (
	"fmt"

	"github.com/born-ml/pretrained/internal/tensor"
)

// Conv2D holds the parameters of a 2D convolutional layer.
//
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
//
// Speech front-ends commonly subsample with a stack of these:
//
//	conv := nn.NewConv2D(1, 256, 3, 3, 2, 0, true, tensor.CPU)
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int

	weight *Parameter // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter // [out_channels] or nil
}

// NewConv2D creates a new 2D convolutional layer with Xavier initialization.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (number of filters)
//   - kernelH, kernelW: Kernel dimensions
//   - stride: Stride for convolution (commonly 1 or 2)
//   - padding: Zero padding to apply to input (commonly 0, 1, 2)
//   - useBias: Whether to include bias term
//   - device: Placement of the parameters
func NewConv2D(
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	device tensor.Device,
) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	// fan_in = in_channels * kernel_h * kernel_w
	// fan_out = out_channels * kernel_h * kernel_w
	fanIn := inChannels * kernelH * kernelW
	fanOut := outChannels * kernelH * kernelW
	weight := Xavier(fanIn, fanOut, tensor.Shape{outChannels, inChannels, kernelH, kernelW}, device)

	c := &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", weight),
	}
	if useBias {
		c.bias = NewParameter("bias", Zeros(tensor.Shape{outChannels}, device))
	}
	return c
}

// Weight returns the kernel parameter.
func (c *Conv2D) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *Conv2D) Bias() *Parameter {
	return c.bias
}

// KernelSize returns [kernel_h, kernel_w].
func (c *Conv2D) KernelSize() [2]int {
	return c.kernelSize
}

// Stride returns the convolution stride.
func (c *Conv2D) Stride() int {
	return c.stride
}

// Padding returns the zero padding.
func (c *Conv2D) Padding() int {
	return c.padding
}

// Parameters returns [weight, bias] if bias is present, otherwise [weight].
func (c *Conv2D) Parameters() []*Parameter {
	if c.bias != nil {
		return []*Parameter{c.weight, c.bias}
	}
	return []*Parameter{c.weight}
}

// StateDict returns {"weight", "bias"}.
func (c *Conv2D) StateDict() map[string]*tensor.RawTensor {
	return parameterStateDict(c.Parameters())
}

// LoadStateDict loads weight and bias.
func (c *Conv2D) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParameters(c, c.Parameters(), stateDict)
}
