package systems

import (
	"fmt"

	"github.com/spaghettifunk/volumetric/engine/assets"
	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
	"github.com/spaghettifunk/volumetric/engine/renderer/recording"
	"github.com/spaghettifunk/volumetric/engine/renderer/vulkan"
	"github.com/spaghettifunk/volumetric/engine/renderer/webgpu"
)

/** @brief Registers the built-in devices with the renderer registry. */
func RegisterDevices() {
	renderer.RegisterDevice(renderer.PLATFORM_VULKAN, func(native any) (renderer.Device, error) {
		d, err := vulkan.Open(native)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
	renderer.RegisterDevice(renderer.PLATFORM_WEBGPU, func(native any) (renderer.Device, error) {
		d, err := webgpu.Open(native)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
	renderer.RegisterDevice(renderer.PLATFORM_RECORDING, func(native any) (renderer.Device, error) {
		d, err := recording.Open(native)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

/** @brief What a view needs to open its device. */
type DeviceConfig struct {
	Platform string
	Debug    bool
	AppName  string
	/** @brief Resolves shader keys; nil leaves the device unable to draw. */
	Assets *assets.AssetManager
	/** @brief Options of the devices the recording platform opens. nil selects the defaults. */
	Recording *recording.Options
}

/**
 * @brief Opens devices and drives their command recording. The device it
 * opens is passed through PlatformDesc.Device, so the context created on it
 * takes ownership and releases it.
 */
type frameHost interface {
	Device() renderer.Device
	PlatformDesc() *metadata.PlatformDesc
	Begin() (metadata.RenderCtx, error)
	Submit(rc metadata.RenderCtx) error
	/** @brief Frees command objects. Runs before the owning context is released. */
	Release()
}

func openFrameHost(cfg DeviceConfig) (frameHost, error) {
	switch cfg.Platform {
	case renderer.PLATFORM_VULKAN:
		native := &vulkan.Native{AppName: cfg.AppName, Debug: cfg.Debug}
		if cfg.Assets != nil {
			native.Shaders = cfg.Assets.ShaderSource(assets.SHADER_FORMAT_SPIRV)
		}
		d, err := vulkan.Open(native)
		if err != nil {
			return nil, err
		}
		return &vulkanHost{device: d}, nil
	case renderer.PLATFORM_WEBGPU:
		native := &webgpu.Native{}
		if cfg.Assets != nil {
			native.Shaders = cfg.Assets.ShaderSource(assets.SHADER_FORMAT_WGSL)
		}
		d, err := webgpu.Open(native)
		if err != nil {
			return nil, err
		}
		return &webgpuHost{device: d, encoder: &webgpu.Encoder{}}, nil
	case renderer.PLATFORM_RECORDING:
		opts := recording.DefaultOptions()
		if cfg.Recording != nil {
			opts = *cfg.Recording
		}
		return &recordingHost{device: recording.New(opts)}, nil
	default:
		return nil, fmt.Errorf("platform %q has no frame host: %w", cfg.Platform, core.ErrInvalidParameter)
	}
}

type vulkanHost struct {
	device *vulkan.VulkanDevice
	cb     *vulkan.VulkanCommandBuffer
}

func (h *vulkanHost) Device() renderer.Device { return h.device }

func (h *vulkanHost) PlatformDesc() *metadata.PlatformDesc {
	return &metadata.PlatformDesc{Platform: renderer.PLATFORM_VULKAN, Device: h.device}
}

func (h *vulkanHost) Begin() (metadata.RenderCtx, error) {
	if h.cb == nil {
		cb, err := h.device.AllocateCommandBuffer()
		if err != nil {
			return nil, err
		}
		h.cb = cb
	}
	if err := h.device.BeginCommands(h.cb); err != nil {
		return nil, err
	}
	return h.cb, nil
}

func (h *vulkanHost) Submit(rc metadata.RenderCtx) error {
	return h.device.Submit(rc.(*vulkan.VulkanCommandBuffer))
}

func (h *vulkanHost) Release() {
	h.device.FreeCommandBuffer(h.cb)
	h.cb = nil
}

type webgpuHost struct {
	device  *webgpu.WebGPUDevice
	encoder *webgpu.Encoder
}

func (h *webgpuHost) Device() renderer.Device { return h.device }

func (h *webgpuHost) PlatformDesc() *metadata.PlatformDesc {
	return &metadata.PlatformDesc{Platform: renderer.PLATFORM_WEBGPU, Device: h.device}
}

func (h *webgpuHost) Begin() (metadata.RenderCtx, error) {
	if err := h.device.BeginCommands(h.encoder); err != nil {
		return nil, err
	}
	return h.encoder, nil
}

func (h *webgpuHost) Submit(rc metadata.RenderCtx) error {
	return h.device.Submit(rc.(*webgpu.Encoder))
}

func (h *webgpuHost) Release() {
	h.device.FreeEncoder(h.encoder)
}

// The recording device ignores the render context.
type recordingHost struct {
	device *recording.Device
}

func (h *recordingHost) Device() renderer.Device { return h.device }

func (h *recordingHost) PlatformDesc() *metadata.PlatformDesc {
	return &metadata.PlatformDesc{Platform: renderer.PLATFORM_RECORDING, Device: h.device}
}

func (h *recordingHost) Begin() (metadata.RenderCtx, error) { return h, nil }

func (h *recordingHost) Submit(metadata.RenderCtx) error { return nil }

func (h *recordingHost) Release() {}
