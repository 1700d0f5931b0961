// Package hci drives a Bluetooth controller over HCI on behalf of the scan
// delegator. It issues the periodic advertising sync commands, turns the
// LE meta events that answer them into bass sync events, and scans for
// broadcast sources.
package hci

import (
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bass"
	"github.com/rigado/bass/linux/hci/cmd"
	"github.com/rigado/bass/linux/hci/evt"
)

// Command ...
type Command interface {
	OpCode() int
	Len() int
	Marshal([]byte) error
}

// CommandRP ...
type CommandRP interface {
	Unmarshal(b []byte) error
}

type handlerFn func(b []byte) error

type pkt struct {
	cmd  Command
	done chan []byte
}

// ErrClosed is returned once the device has been closed.
var ErrClosed = errors.New("hci closed")

// NewHCI returns a hci device.
func NewHCI(opts ...bass.HCIOption) (*HCI, error) {
	h := &HCI{
		chCmdBufs: make(chan []byte, chCmdBufChanSize),
		sent:      make(map[int]*pkt),

		evth: map[int]handlerFn{},
		subh: map[int]handlerFn{},

		requests:  make(chan request, requestQueueSize),
		fragments: make(map[string][]byte),

		logger:    bass.GetLogger().ChildLogger(map[string]interface{}{"pkg": "hci"}),
		done:      make(chan bool),
		sktRxChan: make(chan []byte, 16),
	}
	h.params.init()
	if err := h.Option(opts...); err != nil {
		return nil, errors.Wrap(err, "can't set options")
	}

	return h, nil
}

// HCI ...
type HCI struct {
	params params

	transport transport
	skt       io.ReadWriteCloser

	// Host to Controller command flow control [Vol 2, Part E, 4.4]
	chCmdBufs chan []byte
	muSent    sync.Mutex
	sent      map[int]*pkt

	// evtHub
	evth map[int]handlerFn
	subh map[int]handlerFn

	// requests run the controller's asynchronous surface one at a time
	requests chan request

	// PA sync bookkeeping, see sync.go
	muSync      sync.Mutex
	syncHandler bass.SyncEventHandler
	creating    *createReq
	createQueue []createReq

	// Device information
	addr bass.Addr

	// extended advertising reports arrive in fragments, keyed by
	// address and SID until complete
	muAdv          sync.Mutex
	advHandlerSync bool
	advHandler     bass.AdvHandler
	advFilter      bass.AdvFilter
	fragments      map[string][]byte

	logger bass.Logger

	//error handler
	errorHandler func(error)
	muErr        sync.Mutex
	err          error

	muClose sync.Mutex
	done    chan bool

	sktRxChan chan []byte
}

// Init opens the transport and brings the controller to a known state.
func (h *HCI) Init() error {
	h.evth[evt.LEMetaEventCode] = h.handleLEMeta
	h.evth[evt.CommandCompleteCode] = h.handleCommandComplete
	h.evth[evt.CommandStatusCode] = h.handleCommandStatus
	h.evth[evt.DisconnectionCompleteCode] = h.handleDisconnectionComplete
	h.evth[evt.HardwareErrorCode] = h.handleHardwareError

	h.subh[evt.LEExtendedAdvertisingReportSubCode] = h.handleLEExtendedAdvertisingReport
	h.subh[evt.LEPeriodicAdvertisingSyncEstablishedSubCode] = h.handleLEPeriodicAdvertisingSyncEstablished
	h.subh[evt.LEPeriodicAdvertisingSyncLostSubCode] = h.handleLEPeriodicAdvertisingSyncLost
	h.subh[evt.LEPeriodicAdvertisingSyncTransferSubCode] = h.handleLEPeriodicAdvertisingSyncTransferReceived

	// check params
	if err := h.params.validate(); err != nil {
		return err
	}

	var err error
	h.skt, err = getTransport(h.transport)
	if err != nil {
		return errors.Wrap(err, "can't open transport")
	}
	h.setAllowedCommands(1)

	go h.sktReadLoop()
	go h.sktProcessLoop()
	go h.requestLoop()
	return h.init()
}

func (h *HCI) cleanup() {
	//close the socket
	h.close(nil)

	// clean out all sent commands
	h.muSent.Lock()
	for k := range h.sent {
		delete(h.sent, k)
	}
	h.muSent.Unlock()

	h.muSync.Lock()
	h.creating = nil
	h.createQueue = nil
	h.muSync.Unlock()
}

// Close ...
func (h *HCI) Close() error {
	h.muClose.Lock()
	defer h.muClose.Unlock()

	select {
	case <-h.done:
		//already closed, nothing to do
	default:
		close(h.done)
	}

	return nil
}

// Error ...
func (h *HCI) Error() error {
	h.muErr.Lock()
	defer h.muErr.Unlock()
	return h.err
}

func (h *HCI) setErr(err error) {
	h.muErr.Lock()
	defer h.muErr.Unlock()
	h.err = err
}

// Option sets the options specified.
func (h *HCI) Option(opts ...bass.HCIOption) error {
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return err
		}
	}
	return nil
}

// Addr returns the controller's public address, known after Init.
func (h *HCI) Addr() bass.Addr {
	return h.addr
}

func (h *HCI) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *HCI) init() error {
	h.logger.Info("hci reset")
	if err := h.Send(&cmd.Reset{}, nil); err != nil {
		return errors.Wrap(err, "can't reset")
	}

	ReadBDADDRRP := cmd.ReadBDADDRRP{}
	if err := h.Send(&cmd.ReadBDADDR{}, &ReadBDADDRRP); err != nil {
		return errors.Wrap(err, "can't read address")
	}
	h.addr = bass.AddrFromHCI(ReadBDADDRRP.BDADDR)

	if err := h.Send(&cmd.SetEventMask{EventMask: eventMask}, nil); err != nil {
		return errors.Wrap(err, "can't set event mask")
	}
	if err := h.Send(&cmd.LESetEventMask{LEEventMask: leEventMask}, nil); err != nil {
		return errors.Wrap(err, "can't set LE event mask")
	}

	h.params.RLock()
	sp := h.params.scanParams
	h.params.RUnlock()
	if err := h.Send(&sp, nil); err != nil {
		return errors.Wrap(err, "can't set scan parameters")
	}

	h.logger.Infof("controller %v ready", h.addr)
	return nil
}

// Send issues c and waits for its command complete or command status. A
// non-zero status is returned as ErrCommand; otherwise the return
// parameters are decoded into r when it is not nil.
func (h *HCI) Send(c Command, r CommandRP) error {
	b, err := h.send(c)
	if err != nil {
		return err
	}
	if len(b) > 0 && b[0] != 0x00 {
		return ErrCommand(b[0])
	}
	if r != nil {
		return r.Unmarshal(b)
	}
	return nil
}

func (h *HCI) checkOpCodeFree(opCode int) error {
	h.muSent.Lock()
	defer h.muSent.Unlock()

	_, ok := h.sent[opCode]
	if ok {
		return errors.Errorf("command with opcode 0x%04x pending", opCode)
	}

	return nil
}

func (h *HCI) send(c Command) ([]byte, error) {
	if err := h.Error(); err != nil {
		return nil, err
	}

	p := &pkt{c, make(chan []byte, 1)}

	//verify opcode is free before asking for the command buffer
	//this ensures that the command buffer is only taken if
	//the command can be sent
	if err := h.checkOpCodeFree(c.OpCode()); err != nil {
		return nil, err
	}

	// get buffer w/timeout
	var b []byte
	select {
	case <-h.done:
		return nil, ErrClosed
	case b = <-h.chCmdBufs:
		//ok
	case <-time.After(chCmdBufTimeout):
		err := errors.New("chCmdBufs get timeout")
		h.dispatchError(err)
		return nil, err
	}

	//HCI header
	b[0] = pktTypeCommand
	b[1] = byte(c.OpCode())
	b[2] = byte(c.OpCode() >> 8)
	b[3] = byte(c.Len())
	if err := c.Marshal(b[4:]); err != nil {
		return nil, errors.Wrap(err, "can't marshal cmd")
	}

	h.muSent.Lock()
	h.sent[c.OpCode()] = p
	h.muSent.Unlock()

	// clear sent table when done, we sometimes get command complete or
	// command status messages with no matching send
	defer func() {
		h.muSent.Lock()
		delete(h.sent, c.OpCode())
		h.muSent.Unlock()
	}()

	if !h.isOpen() {
		return nil, ErrClosed
	} else if n, err := h.skt.Write(b[:4+c.Len()]); err != nil {
		h.close(errors.Wrap(err, "failed to send cmd"))
		return nil, h.Error()
	} else if n != 4+c.Len() {
		h.close(errors.New("failed to send whole cmd pkt to hci socket"))
		return nil, h.Error()
	}

	// emergency timeout to prevent calls from locking up if the HCI
	// interface doesn't respond
	select {
	case <-time.After(cmdResponseTimeout):
		err := errors.Errorf("no response to command 0x%04x, pkt %s", c.OpCode(), hex.EncodeToString(b[:4+c.Len()]))
		h.dispatchError(err)
		return nil, err
	case <-h.done:
		return nil, ErrClosed
	case ret := <-p.done:
		return ret, nil
	}
}

func (h *HCI) sktProcessLoop() {
	defer h.cleanup()

	for {
		var p []byte
		var ok bool

		select {
		case <-h.done:
			h.logger.Debug("close requested")
			return

		case p, ok = <-h.sktRxChan:
			if !ok {
				h.logger.Debug("socket rx closed")
				h.dispatchError(h.Error())
				return
			}
			// will process the bytes below
		}

		if err := h.handlePkt(p); err != nil {
			h.logger.Warnf("skt: %v", err)
		}
	}
}

func (h *HCI) sktReadLoop() {
	defer close(h.sktRxChan)

	b := make([]byte, 4096)

	for {
		n, err := h.skt.Read(b)

		switch {
		case n == 0 && err == nil:
			// read timeout
			select {
			case <-h.done:
				//exit!
				return
			default:
				continue
			}

		//callers depend on detecting io.EOF, don't wrap it.
		case err == io.EOF:
			h.setErr(err)
			return

		case err != nil:
			h.setErr(errors.Wrap(err, "skt read error"))
			return

		default:
			p := make([]byte, n)
			copy(p, b)
			select {
			case h.sktRxChan <- p:
			case <-h.done:
				return
			}
		}
	}
}

func (h *HCI) close(err error) error {
	if err != nil {
		h.setErr(err)
	}
	return h.skt.Close()
}

func (h *HCI) handlePkt(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty packet")
	}

	// Strip the 1-byte HCI header and pass down the rest of the packet.
	t, b := b[0], b[1:]
	switch t {
	case pktTypeEvent:
		return h.handleEvt(b)

	//no connections are held here, ACL data is not ours
	case pktTypeACLData:
		return nil

	//unhandled stuff
	case pktTypeCommand:
		return errors.Errorf("unmanaged cmd: % X", b)
	case pktTypeSCOData:
		return errors.Errorf("unsupported sco packet: % X", b)
	case pktTypeVendor:
		return errors.Errorf("unsupported vendor packet: % X", b)
	default:
		return errors.Errorf("invalid packet: 0x%02X % X", t, b)
	}
}

func (h *HCI) handleEvt(b []byte) error {
	if len(b) < 2 {
		return errors.Errorf("short event packet: % X", b)
	}
	code, plen := int(b[0]), int(b[1])
	if plen != len(b[2:]) {
		return errors.Errorf("invalid event packet: % X", b)
	}

	if f := h.evth[code]; f != nil {
		return f(b[2:])
	}
	if code == 0xff { // Ignore vendor events
		return nil
	}
	h.logger.Debugf("unhandled event packet: % X", b)
	return nil
}

func (h *HCI) handleLEMeta(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty LE meta event")
	}
	subcode := int(b[0])
	if f := h.subh[subcode]; f != nil {
		return f(b)
	}
	h.logger.Debugf("unhandled LE event: % X", b)
	return nil
}

func (h *HCI) handleCommandComplete(b []byte) error {
	e := evt.CommandComplete(b)
	n, err := e.NumHCICommandPacketsWErr()
	if err != nil {
		return errors.Wrap(err, "command complete")
	}
	h.setAllowedCommands(int(n))

	// NOP command, used for flow control purpose [Vol 2, Part E, 4.4]
	// no handling other than setAllowedCommands needed
	op, err := e.CommandOpcodeWErr()
	if err != nil || op == 0x0000 {
		return err
	}
	rp, err := e.ReturnParametersWErr()
	if err != nil {
		return errors.Wrap(err, "command complete")
	}

	return h.complete(int(op), rp)
}

func (h *HCI) handleCommandStatus(b []byte) error {
	e := evt.CommandStatus(b)
	st, err := e.StatusWErr()
	if err != nil {
		return errors.Wrap(err, "command status")
	}
	op, err := e.CommandOpcodeWErr()
	if err != nil {
		return errors.Wrap(err, "command status")
	}

	h.setAllowedCommands(int(e.NumHCICommandPackets()))
	if op == 0x0000 {
		return nil
	}
	return h.complete(int(op), []byte{st})
}

// complete hands the response of a command to its sender.
func (h *HCI) complete(op int, rp []byte) error {
	h.muSent.Lock()
	p, found := h.sent[op]
	h.muSent.Unlock()
	if !found {
		return errors.Errorf("can't find the cmd for opcode 0x%04x: % X", op, rp)
	}

	out := make([]byte, len(rp))
	copy(out, rp)
	select {
	case p.done <- out:
		return nil
	default:
		return errors.Errorf("duplicate response to 0x%04x", op)
	}
}

func (h *HCI) handleDisconnectionComplete(b []byte) error {
	e := evt.DisconnectionComplete(b)
	st, err := e.StatusWErr()
	if err != nil {
		return errors.Wrap(err, "disconnection complete")
	}
	if st != 0 {
		return nil
	}
	reason, err := e.ReasonWErr()
	if err != nil {
		return errors.Wrap(err, "disconnection complete")
	}

	ch := e.ConnectionHandle()
	if sh := h.syncEventHandler(); sh != nil {
		sh.HandleDisconnected(ch, reason)
	}
	return nil
}

func (h *HCI) handleHardwareError(b []byte) error {
	code := byte(0)
	if len(b) > 0 {
		code = b[0]
	}
	err := errors.Errorf("controller hardware error 0x%02x", code)
	h.dispatchError(err)
	return err
}

func (h *HCI) setAllowedCommands(n int) {
	if n > chCmdBufChanSize {
		h.logger.Warnf("setAllowedCommands: defaulting %d -> %d", n, chCmdBufChanSize)
		n = chCmdBufChanSize
	}

	//put with timeout
	for len(h.chCmdBufs) < n {
		select {
		case <-h.done:
			//closed
			return
		case h.chCmdBufs <- make([]byte, chCmdBufElementSize):
			//ok
		case <-time.After(chCmdBufTimeout):
			h.dispatchError(errors.New("chCmdBufs put timeout"))
			return
		}
	}
}

func (h *HCI) dispatchError(e error) {
	if e == nil {
		return
	}
	switch {
	case h.errorHandler == nil:
		h.logger.Error(e)
	case !h.isOpen():
		//don't dispatch
		h.logger.Debugf("hci closing: %v", e)
	default:
		h.errorHandler(e)
	}
}
