// Package midi implements a USB MIDI 1.0 class-compliant device function:
// up to 16 virtual MIDI cables per direction carried over bulk endpoints
// as 4-byte event packets.
//
// A Config selects the cable counts and one of three endpoint topologies.
// ResolveTopology turns it into an immutable Topology holding the jack
// layout, endpoint assignment, and per-cable routes; the same Topology
// drives both the descriptor builder and the runtime data path, so the
// wire format always matches what was declared to the host.
//
// At runtime a Device binds to a stack.DeviceStack. Outbound messages are
// encoded into event packets, queued in lock-free rings, and drained by a
// transfer pump that keeps at most one transfer in flight per endpoint.
// Inbound packets are buffered in completion context and decoded in a
// deferred task, so application handlers never run inside a controller
// callback.
package midi
