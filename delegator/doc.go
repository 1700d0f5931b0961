// Package delegator implements the scan delegator role of the Broadcast
// Audio Scan Service.
//
// A Delegator keeps the receive state table of one BASS server. Control
// point operations written by a client (Add Source, Modify Source, Set
// Broadcast_Code, Remove Source) are applied through the corresponding
// methods; every resulting receive state change is reported once to the
// configured bass.Notifier. Periodic advertising sync is driven through a
// bass.Controller, either directly or by waiting for a PAST from the
// client, and controller outcomes are fed back through the
// bass.SyncEventHandler methods.
//
// All state is owned by one goroutine. Options, notifier and authorizer
// callbacks run on that goroutine and must not call back into the
// Delegator.
package delegator
