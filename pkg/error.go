package pkg

import "errors"

// Configuration errors, detected at construction or descriptor-build time.
var (
	// ErrCableCount indicates an invalid number of virtual cables.
	ErrCableCount = errors.New("cable count out of range")

	// ErrInvalidPacketSize indicates an endpoint packet size that is not a multiple of 4.
	ErrInvalidPacketSize = errors.New("invalid endpoint packet size")

	// ErrInvalidBufferSize indicates an unusable ring buffer capacity.
	ErrInvalidBufferSize = errors.New("invalid buffer size")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrInvalidStrategy indicates an unknown topology strategy.
	ErrInvalidStrategy = errors.New("invalid topology strategy")
)

// Runtime errors, surfaced as result values.
var (
	// ErrBufferFull indicates a send failed because the outbound ring buffer is full.
	ErrBufferFull = errors.New("buffer full")

	// ErrInvalidCable indicates a cable number outside the configured range.
	ErrInvalidCable = errors.New("invalid cable number")

	// ErrInvalidCIN indicates a Code Index Number that does not fit 4 bits.
	ErrInvalidCIN = errors.New("invalid code index number")

	// ErrInvalidMessage indicates a MIDI message with an unusable length or status.
	ErrInvalidMessage = errors.New("invalid midi message")

	// ErrNotOpen indicates the device is not open.
	ErrNotOpen = errors.New("device not open")

	// ErrAlreadyOpen indicates the device is already open.
	ErrAlreadyOpen = errors.New("device already open")

	// ErrBusy indicates a transfer is already pending on the endpoint.
	ErrBusy = errors.New("transfer pending")

	// ErrInvalidEndpoint indicates an invalid endpoint address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrCancelled indicates a cancelled transfer.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrTimeout indicates a transfer timeout.
	ErrTimeout = errors.New("transfer timeout")

	// ErrProtocol indicates a protocol error.
	ErrProtocol = errors.New("protocol error")
)

// TransferStatus represents the completion status of a USB transfer.
type TransferStatus int

// Transfer status values.
const (
	TransferStatusSuccess   TransferStatus = iota // Transfer completed successfully
	TransferStatusError                           // Transfer failed with error
	TransferStatusStall                           // Endpoint stalled
	TransferStatusTimeout                         // Transfer timed out
	TransferStatusCancelled                       // Transfer was cancelled
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusSuccess:
		return "success"
	case TransferStatusError:
		return "error"
	case TransferStatusStall:
		return "stall"
	case TransferStatusTimeout:
		return "timeout"
	case TransferStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status.
func (s TransferStatus) Error() error {
	switch s {
	case TransferStatusSuccess:
		return nil
	case TransferStatusStall:
		return ErrStall
	case TransferStatusTimeout:
		return ErrTimeout
	case TransferStatusCancelled:
		return ErrCancelled
	default:
		return ErrProtocol
	}
}
