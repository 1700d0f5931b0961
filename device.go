package bass

import "time"

// DeviceOption is an interface which the controller device should implement
// to allow using configuration options
type DeviceOption interface {
	SetTransportHCISocket(id int) error
	SetTransportH4Socket(addr string, timeout time.Duration) error
	SetTransportH4Uart(path string, baudRate uint) error
	SetScanParams(interval, window uint16, active bool) error
	SetAdvHandlerSync(bool) error
	SetErrorHandler(handler func(error)) error
	SetSyncEventHandler(h SyncEventHandler) error
}

// An HCIOption is a configuration function, which configures the device.
type HCIOption func(DeviceOption) error

// OptTransportHCISocket set hci socket transport
func OptTransportHCISocket(id int) HCIOption {
	return func(opt DeviceOption) error {
		return opt.SetTransportHCISocket(id)
	}
}

// OptTransportH4Socket set h4 socket transport
func OptTransportH4Socket(addr string, timeout time.Duration) HCIOption {
	return func(opt DeviceOption) error {
		return opt.SetTransportH4Socket(addr, timeout)
	}
}

// OptTransportH4Uart set h4 uart transport
func OptTransportH4Uart(path string, baudRate uint) HCIOption {
	return func(opt DeviceOption) error {
		return opt.SetTransportH4Uart(path, baudRate)
	}
}

// OptScanParams overrides default scanning parameters. interval and window
// are in units of 0.625 ms.
func OptScanParams(interval, window uint16, active bool) HCIOption {
	return func(opt DeviceOption) error {
		return opt.SetScanParams(interval, window, active)
	}
}

// OptAdvHandlerSync sets sync adv handling
func OptAdvHandlerSync(sync bool) HCIOption {
	return func(opt DeviceOption) error {
		return opt.SetAdvHandlerSync(sync)
	}
}

// OptErrorHandler sets error handler
func OptErrorHandler(handler func(error)) HCIOption {
	return func(opt DeviceOption) error {
		return opt.SetErrorHandler(handler)
	}
}

// OptSyncEventHandler sets the receiver of PA sync and disconnection events.
func OptSyncEventHandler(h SyncEventHandler) HCIOption {
	return func(opt DeviceOption) error {
		return opt.SetSyncEventHandler(h)
	}
}
