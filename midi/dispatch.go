package midi

import (
	"sync"

	"github.com/HLammers/usb-midi/pkg"
)

// Handler receives decoded MIDI messages from the host. The cable is the
// input cable index; msg holds the MIDI bytes without USB framing. The
// message slice is only valid for the duration of the call.
type Handler func(cable uint8, msg []byte)

// PacketHandler receives raw event packets before message decoding, USB
// framing included.
type PacketHandler func(pkt EventPacket)

// dispatcher routes decoded packets to registered handlers. Handlers run
// in deferred-task context, never inside a transfer completion. A panic
// in one handler is logged and does not disturb delivery of later events.
type dispatcher struct {
	mu      sync.RWMutex
	handler Handler
	cable   [MaxCables]Handler
	packet  PacketHandler
}

func (d *dispatcher) setHandler(h Handler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

func (d *dispatcher) setCableHandler(cable uint8, h Handler) {
	d.mu.Lock()
	d.cable[cable] = h
	d.mu.Unlock()
}

func (d *dispatcher) setPacketHandler(h PacketHandler) {
	d.mu.Lock()
	d.packet = h
	d.mu.Unlock()
}

// dispatch delivers one decoded packet. A cable-specific handler takes
// precedence; the catch-all handler sees everything else.
func (d *dispatcher) dispatch(cable uint8, pkt EventPacket) {
	d.mu.RLock()
	ph := d.packet
	h := d.cable[cable]
	if h == nil {
		h = d.handler
	}
	d.mu.RUnlock()

	if ph != nil {
		callPacketHandler(ph, pkt)
	}
	if h != nil {
		callHandler(h, cable, pkt)
	}
}

func callPacketHandler(ph PacketHandler, pkt EventPacket) {
	defer func() {
		if r := recover(); r != nil {
			pkg.LogError(pkg.ComponentDispatch, "packet handler panic",
				"panic", r, "packet", pkt.String())
		}
	}()
	ph(pkt)
}

func callHandler(h Handler, cable uint8, pkt EventPacket) {
	defer func() {
		if r := recover(); r != nil {
			pkg.LogError(pkg.ComponentDispatch, "handler panic",
				"panic", r, "cable", cable, "packet", pkt.String())
		}
	}()
	h(cable, pkt.Message())
}
