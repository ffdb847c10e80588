// Package stack defines the contract between the MIDI engine and an external
// USB device stack.
//
// The engine is deliberately ignorant of Chapter-9 enumeration, control
// transfers, and controller hardware. It drives data endpoints exclusively
// through the [DeviceStack] interface: submitting one asynchronous transfer
// per endpoint direction, querying whether a transfer is pending, and
// deferring decode work out of the completion context via [DeviceStack.Defer].
//
// Stack implementors must uphold three guarantees:
//
//   - at most one outstanding transfer per endpoint address
//   - completion lengths are byte-accurate for the bytes moved on the bus
//   - deferred tasks never run inside a transfer completion
//
// [StringTable] carries the shared string descriptor indices: the stack seeds
// device-level strings, class drivers append port names lazily, and index 0
// always means "no string".
//
// An in-memory implementation for tests and simulation is available in
// [github.com/HLammers/usb-midi/midi/stack/mem].
package stack
