package stack

import (
	"github.com/HLammers/usb-midi/pkg"
)

// CompletionFunc is invoked by the device stack when a submitted transfer
// completes. It runs in the stack's completion context, which must not block
// and must not call into arbitrary application code. Status is non-success
// when the transfer failed; n is the number of bytes actually transferred.
type CompletionFunc func(ep uint8, status pkg.TransferStatus, n int)

// DeviceStack defines the contract the MIDI engine requires from an external
// USB device stack. The stack owns Chapter-9 enumeration, control transfers,
// and endpoint hardware; the engine only submits data transfers and defers
// work through it.
//
// Implementations must guarantee that at most one transfer per endpoint
// address is outstanding, that completions report byte-accurate lengths, and
// that deferred tasks run outside any completion context.
type DeviceStack interface {
	// Submit starts an asynchronous transfer on the given endpoint address.
	// For IN endpoints (bit 7 set) buf holds data to send to the host; for
	// OUT endpoints buf receives data from the host. done is invoked once
	// when the transfer completes. Returns pkg.ErrBusy if a transfer is
	// already pending on the endpoint.
	Submit(ep uint8, buf []byte, done CompletionFunc) error

	// Pending reports whether a transfer is outstanding on the endpoint.
	Pending(ep uint8) bool

	// Defer schedules task to run later in the stack's normal scheduling
	// context, never inside a transfer completion.
	Defer(task func())
}

// MaxStrings is the maximum number of string descriptor indices.
const MaxStrings = 32

// StringTable allocates string descriptor indices shared between the device
// stack and class drivers. Index 0 means "no string". The stack seeds the
// table with its device-level strings (manufacturer, product, serial) before
// handing it to class descriptor builders.
type StringTable struct {
	strings [MaxStrings]string
	next    uint8
}

// NewStringTable creates a string table whose first allocated index is next.
// Passing 1 yields a table with only index 0 reserved.
func NewStringTable(next uint8) *StringTable {
	if next == 0 {
		next = 1
	}
	return &StringTable{next: next}
}

// Add allocates the next free index for s and returns it.
// An empty string or a full table yields index 0.
func (t *StringTable) Add(s string) uint8 {
	if s == "" || t.next == 0 || int(t.next) >= MaxStrings {
		return 0
	}
	idx := t.next
	t.strings[idx] = s
	t.next++
	return idx
}

// Lookup returns the string registered at idx, or "" if none.
func (t *StringTable) Lookup(idx uint8) string {
	if int(idx) >= MaxStrings {
		return ""
	}
	return t.strings[idx]
}

// Len returns the number of allocated indices, including index 0.
func (t *StringTable) Len() int {
	return int(t.next)
}
