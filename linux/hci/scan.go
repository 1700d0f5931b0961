package hci

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rigado/bass"
	"github.com/rigado/bass/linux/hci/evt"
	"github.com/rigado/bass/parser"
)

const (
	// maxFragments bounds the advertisers being reassembled at once.
	maxFragments = 64

	// maxAdvDataLen is the largest extended advertising data set
	// [Vol 4, Part E, 7.8.54].
	maxAdvDataLen = 1650
)

// Scan runs an extended scan until ctx is done and hands every broadcast
// source accepted by f to ah. A nil f accepts all.
func (h *HCI) Scan(ctx context.Context, allowDup bool, ah bass.AdvHandler, f bass.AdvFilter) error {
	if ah == nil {
		return errors.New("nil adv handler")
	}

	h.muAdv.Lock()
	h.advHandler = ah
	h.advFilter = f
	h.fragments = make(map[string][]byte)
	h.muAdv.Unlock()

	if err := h.startScanning(allowDup); err != nil {
		return errors.Wrap(err, "can't start scan")
	}

	select {
	case <-ctx.Done():
	case <-h.done:
		return ErrClosed
	}

	if err := h.stopScanning(); err != nil {
		return errors.Wrap(err, "can't stop scan")
	}
	return ctx.Err()
}

func (h *HCI) startScanning(allowDup bool) error {
	h.params.Lock()
	h.params.scanEnable.FilterDuplicates = 1
	if allowDup {
		h.params.scanEnable.FilterDuplicates = 0
	}
	h.params.scanEnable.Enable = 1
	se := h.params.scanEnable
	h.params.Unlock()

	return h.Send(&se, nil)
}

func (h *HCI) stopScanning() error {
	h.params.Lock()
	h.params.scanEnable.Enable = 0
	se := h.params.scanEnable
	h.params.Unlock()

	err := h.Send(&se, nil)

	h.muAdv.Lock()
	h.advHandler = nil
	h.advFilter = nil
	h.muAdv.Unlock()
	return err
}

func (h *HCI) makeAdvError(e error, b []byte, dispatch bool) error {
	err := fmt.Errorf("%v, bytes % X", e, b)
	if dispatch {
		h.dispatchError(err)
	}
	return err
}

func fragmentKey(a [6]byte, sid uint8) string {
	return fmt.Sprintf("%x/%d", a, sid)
}

func (h *HCI) handleLEExtendedAdvertisingReport(b []byte) error {
	h.muAdv.Lock()
	defer h.muAdv.Unlock()

	if h.advHandler == nil {
		return nil
	}

	e := evt.LEExtendedAdvertisingReport(b)
	nr, err := e.NumReportsWErr()
	if err != nil {
		return h.makeAdvError(errors.Wrap(err, "advRep numReports"), e, true)
	}

	for i := 0; i < int(nr); i++ {
		a, ok, err := h.assemble(e, i)
		if err != nil {
			h.makeAdvError(err, e, true)
			continue
		}
		if !ok {
			continue
		}
		if h.advFilter != nil && !h.advFilter(a) {
			continue
		}

		//dispatch
		if h.advHandlerSync {
			h.advHandler(a)
		} else {
			go h.advHandler(a)
		}
	}

	return nil
}

// assemble collects report i into the fragment buffer of its advertiser.
// It returns a broadcast advertisement once the data is complete and
// carries a Broadcast Audio Announcement.
func (h *HCI) assemble(e evt.LEExtendedAdvertisingReport, i int) (bass.BroadcastAdvertisement, bool, error) {
	var none bass.BroadcastAdvertisement

	et, err := e.EventTypeWErr(i)
	if err != nil {
		return none, false, errors.Wrap(err, "advRep eventType")
	}
	if et&evtTypLegacy != 0 {
		// legacy PDUs carry no SID, never a broadcast source
		return none, false, nil
	}
	addr, err := e.AddressWErr(i)
	if err != nil {
		return none, false, errors.Wrap(err, "advRep addr")
	}
	sid, err := e.AdvertisingSIDWErr(i)
	if err != nil {
		return none, false, errors.Wrap(err, "advRep sid")
	}
	data, err := e.DataWErr(i)
	if err != nil {
		return none, false, errors.Wrap(err, "advRep data")
	}

	key := fragmentKey(addr, sid)
	switch et & evtTypDataStatusMask {
	case dataStatusIncomplete:
		if _, ok := h.fragments[key]; !ok && len(h.fragments) >= maxFragments {
			return none, false, errors.Errorf("too many advertisers in reassembly, dropping %v", key)
		}
		if len(h.fragments[key])+len(data) > maxAdvDataLen {
			delete(h.fragments, key)
			return none, false, errors.Errorf("advertising data of %v exceeds %d bytes, dropped", key, maxAdvDataLen)
		}
		h.fragments[key] = append(h.fragments[key], data...)
		return none, false, nil
	case dataStatusTruncated:
		delete(h.fragments, key)
		return none, false, nil
	case dataStatusComplete:
	default:
		return none, false, errors.Errorf("invalid data status 0x%04x", et)
	}

	if prev, ok := h.fragments[key]; ok {
		delete(h.fragments, key)
		if len(prev)+len(data) > maxAdvDataLen {
			return none, false, errors.Errorf("advertising data of %v exceeds %d bytes, dropped", key, maxAdvDataLen)
		}
		data = append(prev, data...)
	}

	bc, err := parser.ParseBroadcast(data)
	switch {
	case errors.Cause(err) == parser.ErrNotBroadcast, errors.Cause(err) == parser.ErrEmptyPdu:
		return none, false, nil
	case err != nil:
		return none, false, errors.Wrap(err, "advRep parse")
	}

	at, err := e.AddressTypeWErr(i)
	if err != nil {
		return none, false, errors.Wrap(err, "advRep addrType")
	}
	rssi, err := e.RSSIWErr(i)
	if err != nil {
		return none, false, errors.Wrap(err, "advRep rssi")
	}
	iv, err := e.PeriodicAdvertisingIntervalWErr(i)
	if err != nil {
		return none, false, errors.Wrap(err, "advRep interval")
	}
	return bass.BroadcastAdvertisement{
		Addr:        bass.AddrFromHCI(addr),
		AddrType:    bass.AddrType(at & 0x01),
		SID:         sid,
		BroadcastID: bc.BroadcastID,
		Name:        bc.Name,
		RSSI:        rssi,
		PAInterval:  iv,
	}, true, nil
}
