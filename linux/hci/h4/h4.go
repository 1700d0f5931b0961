// Package h4 carries HCI packets over an H4 (UART framing) link, either a
// serial port or a TCP bridge to one.
package h4

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/rigado/bass"
)

const (
	rxQueueSize = 64
	readTimeout = time.Second
)

// resetCmd is a bare HCI Reset used to flush a controller that was left
// mid-conversation.
var resetCmd = []byte{commandPacket, 0x03, 0x0c, 0x00}

type h4 struct {
	rwc    io.ReadWriteCloser
	logger bass.Logger
	wmu    sync.Mutex

	frame   *frame
	rxQueue chan []byte

	done chan struct{}
	cmu  sync.Mutex
}

// DefaultSerialOptions returns the serial settings of a typical H4 UART
// controller.
func DefaultSerialOptions() serial.OpenOptions {
	return serial.OpenOptions{
		BaudRate:              1000000,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		RTSCTSFlowControl:     true,
		InterCharacterTimeout: 100,
		MinimumReadSize:       0,
	}
}

// NewSerial opens an H4 controller on a serial port.
func NewSerial(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	// force these, the rx loop polls
	opts.MinimumReadSize = 0
	opts.InterCharacterTimeout = 100

	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %v", opts.PortName)
	}

	// drop whatever the controller still had queued
	if _, err := sp.Write(resetCmd); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, "can't flush")
	}
	<-time.After(250 * time.Millisecond)
	b := make([]byte, 2048)
	if _, err := sp.Read(b); err != nil && err != io.EOF {
		sp.Close()
		return nil, errors.Wrap(err, "can't flush")
	}

	h := newH4(sp)
	h.logger.Infof("opened %v at %v baud", opts.PortName, opts.BaudRate)
	return h, nil
}

// NewSocket connects to an H4 controller exposed over TCP. Every read and
// write is bounded by timeout.
func NewSocket(addr string, timeout time.Duration) (io.ReadWriteCloser, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial %v", addr)
	}

	h := newH4(&connWithTimeout{c: c, timeout: timeout})
	h.logger.Infof("connected to %v", addr)
	return h, nil
}

func newH4(rwc io.ReadWriteCloser) *h4 {
	h := &h4{
		rwc:     rwc,
		logger:  bass.GetLogger().ChildLogger(map[string]interface{}{"pkg": "h4"}),
		rxQueue: make(chan []byte, rxQueueSize),
		done:    make(chan struct{}),
	}
	h.frame = newFrame(h.rxQueue)

	go h.rxLoop()
	return h
}

// Read returns one complete H4 packet. It returns 0, nil when nothing
// arrived within the read timeout.
func (h *h4) Read(p []byte) (int, error) {
	if !h.isOpen() {
		return 0, io.EOF
	}

	select {
	case t, ok := <-h.rxQueue:
		if !ok {
			return 0, io.EOF
		}
		if len(p) < len(t) {
			return 0, io.ErrShortBuffer
		}
		n := copy(p, t)
		h.logger.Debugf("read [% 0x]", p[:n])
		return n, nil

	case <-h.done:
		return 0, io.EOF

	case <-time.After(readTimeout):
		return 0, nil
	}
}

func (h *h4) Write(p []byte) (int, error) {
	if !h.isOpen() {
		return 0, io.EOF
	}

	h.wmu.Lock()
	defer h.wmu.Unlock()
	n, err := h.rwc.Write(p)
	h.logger.Debugf("write [% 0x], %v, %v", p, n, err)

	return n, errors.Wrap(err, "can't write h4")
}

func (h *h4) Close() error {
	h.cmu.Lock()
	defer h.cmu.Unlock()

	select {
	case <-h.done:
		return nil

	default:
		close(h.done)
		h.logger.Info("closing h4")
		return errors.Wrap(h.rwc.Close(), "can't close h4")
	}
}

func (h *h4) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *h4) rxLoop() {
	defer close(h.rxQueue)

	tmp := make([]byte, 512)
	for {
		n, err := h.rwc.Read(tmp)

		select {
		case <-h.done:
			return
		default:
		}

		switch {
		case err == io.EOF:
			h.logger.Warn("h4 link closed")
			return
		case isTimeout(err):
			continue
		case err != nil:
			h.logger.Errorf("h4 read: %v", err)
			return
		case n == 0:
			continue
		}

		h.frame.Assemble(tmp[:n])
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
