package renderer

import (
	"sync"

	"golang.org/x/exp/slices"
)

const (
	PLATFORM_VULKAN    = "vulkan"
	PLATFORM_WEBGPU    = "webgpu"
	PLATFORM_RECORDING = "recording"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]DeviceFactory)
)

// RegisterDevice registers a device factory under name, replacing any previous one.
// The engine registers the built-in devices at startup.
func RegisterDevice(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// UnregisterDevice removes a factory. Useful for testing.
func UnregisterDevice(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// AvailableDevices returns the registered platform names, sorted.
func AvailableDevices() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func lookupDevice(name string) (DeviceFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}
