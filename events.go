package bass

// Controller events delivered to the delegator. Field names follow the HCI
// LE meta events they are decoded from [Vol 4, Part E, 7.7.65].

// SyncEstablished reports the outcome of a direct PA sync attempt.
type SyncEstablished struct {
	Status     uint8
	SyncHandle uint16
	SID        uint8
	Addr       Addr
	AddrType   AddrType
	Interval   uint16
}

// SyncLost reports that an established PA sync is gone.
type SyncLost struct {
	SyncHandle uint16
}

// PASTReceived reports a PA sync handed over by a connected peer.
type PASTReceived struct {
	Status      uint8
	ConnHandle  uint16
	ServiceData uint16
	SyncHandle  uint16
	SID         uint8
	Addr        Addr
	AddrType    AddrType
	Interval    uint16
}

// SrcID returns the src_id a BASS client places in the PAST service data.
func (p PASTReceived) SrcID() SrcID {
	return SrcID(p.ServiceData >> 8)
}

// SyncEventHandler consumes controller events. Implementations must not
// block.
type SyncEventHandler interface {
	HandleSyncEstablished(SyncEstablished)
	HandleSyncLost(SyncLost)
	HandlePASTReceived(PASTReceived)
	HandleDisconnected(connHandle uint16, reason uint8)
}
