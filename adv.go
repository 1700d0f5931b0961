package bass

// AdvHandler handles a discovered broadcast source.
type AdvHandler func(a BroadcastAdvertisement)

// AdvFilter returns true if the advertisement matches specified condition.
type AdvFilter func(a BroadcastAdvertisement) bool

// BroadcastAdvertisement is an extended advertisement carrying a Broadcast
// Audio Announcement.
type BroadcastAdvertisement struct {
	Addr        Addr
	AddrType    AddrType
	SID         uint8
	BroadcastID uint32
	Name        string
	RSSI        int8
	PAInterval  uint16
}

// SourceParams returns Add Source parameters that target a.
func (a BroadcastAdvertisement) SourceParams(pa PASyncRequest, subgroups ...SubgroupParams) SourceParams {
	return SourceParams{
		Addr:        a.Addr,
		AddrType:    a.AddrType,
		SID:         a.SID,
		BroadcastID: a.BroadcastID,
		PASync:      pa,
		PAInterval:  a.PAInterval,
		Subgroups:   subgroups,
	}
}
