package mem

import (
	"sync"

	"github.com/HLammers/usb-midi/midi/stack"
	"github.com/HLammers/usb-midi/pkg"
)

// MaxEndpointAddresses is the number of possible endpoint addresses
// (0x00-0x0F OUT and 0x80-0x8F IN).
const MaxEndpointAddresses = 32

// endpointIndex converts an endpoint address to an array index.
func endpointIndex(addr uint8) int {
	// OUT endpoints: 0x00-0x0F -> 0-15
	// IN endpoints: 0x80-0x8F -> 16-31
	if addr&0x80 != 0 {
		return int(addr&0x0F) + 16
	}
	return int(addr & 0x0F)
}

// slot holds one outstanding transfer on an endpoint address.
type slot struct {
	buf    []byte
	done   stack.CompletionFunc
	active bool
}

// Stack is an in-memory device stack for tests and simulation. It holds at
// most one outstanding transfer per endpoint address and queues deferred
// tasks until the test drains them with [Stack.RunTasks], modeling the
// cooperative scheduler of a real firmware stack.
//
// The host side of the bus is driven explicitly: [Stack.CompleteIn] consumes
// a pending device-to-host transfer and [Stack.CompleteOut] delivers
// host-to-device bytes into one.
type Stack struct {
	mutex      sync.Mutex
	slots      [MaxEndpointAddresses]slot
	nextStatus [MaxEndpointAddresses]pkg.TransferStatus
	tasks      []func()

	// Submit counters for assertions on re-arm behavior
	submits [MaxEndpointAddresses]int
}

// New creates an empty in-memory stack.
func New() *Stack {
	return &Stack{}
}

// Submit registers a transfer on the endpoint. It completes only when the
// host side consumes or fills it via CompleteIn/CompleteOut.
func (s *Stack) Submit(ep uint8, buf []byte, done stack.CompletionFunc) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	idx := endpointIndex(ep)
	if s.slots[idx].active {
		return pkg.ErrBusy
	}
	s.slots[idx] = slot{buf: buf, done: done, active: true}
	s.submits[idx]++
	return nil
}

// Pending reports whether a transfer is outstanding on the endpoint.
func (s *Stack) Pending(ep uint8) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.slots[endpointIndex(ep)].active
}

// Defer queues a task for RunTasks.
func (s *Stack) Defer(task func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tasks = append(s.tasks, task)
}

// RunTasks drains the deferred task queue, including tasks enqueued while
// draining. Returns the number of tasks executed.
func (s *Stack) RunTasks() int {
	count := 0
	for {
		s.mutex.Lock()
		if len(s.tasks) == 0 {
			s.mutex.Unlock()
			return count
		}
		task := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.mutex.Unlock()

		task()
		count++
	}
}

// SubmitCount returns the number of Submit calls seen on the endpoint.
func (s *Stack) SubmitCount(ep uint8) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.submits[endpointIndex(ep)]
}

// FailNext forces the next completion on the endpoint to report status
// instead of success.
func (s *Stack) FailNext(ep uint8, status pkg.TransferStatus) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.nextStatus[endpointIndex(ep)] = status
}

// take removes and returns the outstanding transfer on ep along with the
// status its completion should report.
func (s *Stack) take(ep uint8) (slot, pkg.TransferStatus, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	idx := endpointIndex(ep)
	sl := s.slots[idx]
	if !sl.active {
		return slot{}, pkg.TransferStatusSuccess, false
	}
	s.slots[idx] = slot{}
	status := s.nextStatus[idx]
	s.nextStatus[idx] = pkg.TransferStatusSuccess
	return sl, status, true
}

// CompleteIn acts as the host reading an IN endpoint: it consumes the
// pending transfer, returns a copy of its payload, and invokes the
// completion callback. Returns false if no transfer is pending. On a forced
// failure the payload is nil and the completion reports zero bytes.
func (s *Stack) CompleteIn(ep uint8) ([]byte, bool) {
	sl, status, ok := s.take(ep)
	if !ok {
		return nil, false
	}
	if status != pkg.TransferStatusSuccess {
		sl.done(ep, status, 0)
		return nil, true
	}
	data := make([]byte, len(sl.buf))
	copy(data, sl.buf)
	sl.done(ep, status, len(data))
	return data, true
}

// CompleteOut acts as the host writing an OUT endpoint: it copies data into
// the pending transfer's buffer and invokes the completion callback.
// Returns the number of bytes delivered, or -1 if no transfer is pending.
func (s *Stack) CompleteOut(ep uint8, data []byte) int {
	sl, status, ok := s.take(ep)
	if !ok {
		return -1
	}
	if status != pkg.TransferStatusSuccess {
		sl.done(ep, status, 0)
		return 0
	}
	n := copy(sl.buf, data)
	sl.done(ep, status, n)
	return n
}

// PendingLen returns the buffer length of the transfer outstanding on ep,
// or -1 if none is pending.
func (s *Stack) PendingLen(ep uint8) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sl := s.slots[endpointIndex(ep)]
	if !sl.active {
		return -1
	}
	return len(sl.buf)
}

// Compile-time interface check
var _ stack.DeviceStack = (*Stack)(nil)
