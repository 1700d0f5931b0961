package hci

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/bass/linux/hci/cmd"
)

const (
	AddressTypePublic     = 0
	AddressTypeRandom     = 1
	FilterPolicyAcceptAll = 0
	LEScanTypePassive     = 0
	LEScanTypeActive      = 1
	LEPHY1M               = 1 << 0

	LEScanIntervalMin = 0x0004
	LEScanIntervalMax = 0xFFFF
	LEScanWindowMin   = 0x0004
	LEScanWindowMax   = 0xFFFF
)

type params struct {
	sync.RWMutex

	scanParams cmd.LESetExtendedScanParameters
	scanEnable cmd.LESetExtendedScanEnable
}

func (p *params) init() {
	p.scanParams = cmd.LESetExtendedScanParameters{
		OwnAddressType:       AddressTypePublic,
		ScanningFilterPolicy: FilterPolicyAcceptAll,
		ScanningPHYs:         LEPHY1M,
		ScanType:             LEScanTypePassive, // broadcast sources need no scan response
		ScanInterval:         0x0060,            // N * 0.625msec
		ScanWindow:           0x0030,            // N * 0.625msec
	}
	p.scanEnable = cmd.LESetExtendedScanEnable{
		Enable:           0,
		FilterDuplicates: 1,
	}
}

func (p *params) validate() error {
	p.RLock()
	defer p.RUnlock()

	sp := p.scanParams
	switch {
	case sp.ScanInterval < LEScanIntervalMin:
		return errors.Errorf("scan interval 0x%04x out of range", sp.ScanInterval)
	case sp.ScanWindow < LEScanWindowMin:
		return errors.Errorf("scan window 0x%04x out of range", sp.ScanWindow)
	case sp.ScanWindow > sp.ScanInterval:
		return errors.Errorf("scan window 0x%04x exceeds interval 0x%04x", sp.ScanWindow, sp.ScanInterval)
	case sp.ScanType > LEScanTypeActive:
		return errors.Errorf("invalid scan type %d", sp.ScanType)
	}
	return nil
}
