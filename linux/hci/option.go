package hci

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bass"
)

// SetTransportHCISocket sets HCI device for hci socket
func (h *HCI) SetTransportHCISocket(id int) error {
	h.transport = transport{
		hci: &transportHci{id},
	}
	return nil
}

// SetTransportH4Socket sets h4 socket server
func (h *HCI) SetTransportH4Socket(addr string, timeout time.Duration) error {
	h.transport = transport{
		h4socket: &transportH4Socket{addr, timeout},
	}
	return nil
}

// SetTransportH4Uart sets h4 uart path and baud rate. A zero rate keeps
// the default.
func (h *HCI) SetTransportH4Uart(path string, baudRate uint) error {
	h.transport = transport{
		h4uart: &transportH4Uart{path, baudRate},
	}
	return nil
}

// SetTransport uses an already open link to the controller.
func (h *HCI) SetTransport(rwc io.ReadWriteCloser) error {
	if rwc == nil {
		return errors.New("nil transport")
	}
	h.transport = transport{rwc: rwc}
	return nil
}

// SetScanParams overrides default scanning parameters.
func (h *HCI) SetScanParams(interval, window uint16, active bool) error {
	h.params.Lock()
	defer h.params.Unlock()

	h.params.scanParams.ScanInterval = interval
	h.params.scanParams.ScanWindow = window
	h.params.scanParams.ScanType = LEScanTypePassive
	if active {
		h.params.scanParams.ScanType = LEScanTypeActive
	}
	return nil
}

// SetAdvHandlerSync overrides default advertising handler behavior (async)
func (h *HCI) SetAdvHandlerSync(sync bool) error {
	h.advHandlerSync = sync
	return nil
}

// SetErrorHandler ...
func (h *HCI) SetErrorHandler(handler func(error)) error {
	h.errorHandler = handler
	return nil
}

// SetSyncEventHandler sets the receiver of PA sync and disconnection
// events, normally the delegator.
func (h *HCI) SetSyncEventHandler(handler bass.SyncEventHandler) error {
	h.muSync.Lock()
	defer h.muSync.Unlock()
	h.syncHandler = handler
	return nil
}

var _ bass.DeviceOption = (*HCI)(nil)
