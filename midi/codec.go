package midi

import (
	"fmt"

	"github.com/HLammers/usb-midi/pkg"
)

// EventPacket is a 4-byte USB-MIDI event packet. Byte 0 carries the cable
// number in the high nibble and the Code Index Number in the low nibble;
// bytes 1..3 hold the MIDI message, zero padded.
type EventPacket [4]byte

// Cable returns the packet's cable nibble.
func (p EventPacket) Cable() uint8 {
	return p[0] >> 4
}

// CIN returns the packet's Code Index Number.
func (p EventPacket) CIN() uint8 {
	return p[0] & 0x0F
}

// Message returns the MIDI bytes carried by the packet, sized by the CIN.
// CINs with no defined payload length return all three bytes.
func (p EventPacket) Message() []byte {
	return p[1 : 1+cinMessageLength(p.CIN())]
}

// String formats the packet for logs.
func (p EventPacket) String() string {
	return fmt.Sprintf("cable=%d cin=%X msg=% X", p.Cable(), p.CIN(), p.Message())
}

// cinMessageLength returns the MIDI byte count a CIN carries.
func cinMessageLength(cin uint8) int {
	switch cin {
	case CINSystemCommon2, CINSysExEnd2, CINProgramChange, CINChannelPressure:
		return 2
	case CINSysExEnd1, CINSingleByte:
		return 1
	default:
		return 3
	}
}

// DeriveCIN classifies a MIDI message by its status byte and length and
// returns the Code Index Number for its event packet (USB MIDI 1.0
// section 4). SysEx fragments are recognized by their framing bytes:
// a fragment ending in 0xF7 maps to the end CIN for its length, any
// other fragment continues the stream.
func DeriveCIN(msg []byte) (uint8, error) {
	if len(msg) < 1 || len(msg) > 3 {
		return 0, fmt.Errorf("%w: %d bytes", pkg.ErrInvalidMessage, len(msg))
	}
	status := msg[0]

	// Realtime messages are a single byte regardless of surrounding traffic.
	if status >= 0xF8 {
		if len(msg) != 1 {
			return 0, fmt.Errorf("%w: realtime message with %d bytes", pkg.ErrInvalidMessage, len(msg))
		}
		return CINSingleByte, nil
	}

	// SysEx stream fragments. A start or continuation fragment is three
	// bytes; a trailing fragment ends with EOX.
	if msg[len(msg)-1] == StatusSysExEnd {
		switch len(msg) {
		case 1:
			return CINSysExEnd1, nil
		case 2:
			return CINSysExEnd2, nil
		default:
			return CINSysExEnd3, nil
		}
	}
	if status == StatusSysExStart || status < 0x80 {
		if len(msg) != 3 {
			return 0, fmt.Errorf("%w: sysex fragment with %d bytes", pkg.ErrInvalidMessage, len(msg))
		}
		return CINSysExStart, nil
	}

	// System common.
	if status >= 0xF0 {
		switch len(msg) {
		case 1:
			return CINSingleByte, nil
		case 2:
			return CINSystemCommon2, nil
		default:
			return CINSystemCommon3, nil
		}
	}

	// Channel voice: the CIN equals the status high nibble.
	cin := status >> 4
	if cinMessageLength(cin) != len(msg) {
		return 0, fmt.Errorf("%w: status %02X with %d bytes", pkg.ErrInvalidMessage, status, len(msg))
	}
	return cin, nil
}

// NewEventPacket assembles a packet from explicit fields without deriving
// the CIN, for callers that already speak the packet format. Both cable
// and cin must fit 4 bits.
func NewEventPacket(cable, cin uint8, msg []byte) (EventPacket, error) {
	var p EventPacket
	if cable >= MaxCables {
		return p, fmt.Errorf("%w: %d", pkg.ErrInvalidCable, cable)
	}
	if cin > 0x0F {
		return p, fmt.Errorf("%w: %d", pkg.ErrInvalidCIN, cin)
	}
	if len(msg) > 3 {
		return p, fmt.Errorf("%w: %d bytes", pkg.ErrInvalidMessage, len(msg))
	}
	p[0] = cable<<4 | cin
	copy(p[1:], msg)
	return p, nil
}

// MakeEventPacket builds the event packet for msg on the given cable
// nibble. The message must be 1 to 3 bytes; unused payload bytes are zero.
func MakeEventPacket(cable uint8, msg []byte) (EventPacket, error) {
	var p EventPacket
	if cable >= MaxCables {
		return p, fmt.Errorf("%w: %d", pkg.ErrInvalidCable, cable)
	}
	cin, err := DeriveCIN(msg)
	if err != nil {
		return p, err
	}
	p[0] = cable<<4 | cin
	copy(p[1:], msg)
	return p, nil
}
