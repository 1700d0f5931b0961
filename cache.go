package bass

// SourceCache persists receive state snapshots between runs.
type SourceCache interface {
	Store([]ReceiveState) error
	Load() ([]ReceiveState, error)
	Clear() error
}
