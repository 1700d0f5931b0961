package bass

// Conn is the ACL connection a control point write arrived on.
type Conn interface {
	// Handle returns the HCI connection handle.
	Handle() uint16

	// RemoteAddr returns remote device's address.
	RemoteAddr() Addr
}
