package midi

import (
	"fmt"
	"sync"

	"github.com/HLammers/usb-midi/midi/stack"
	"github.com/HLammers/usb-midi/pkg"
)

// Device is a USB MIDI function: a set of virtual cables multiplexed over
// bulk endpoints according to the configured topology. A Device is built
// once from a Config, contributes its descriptors to the device stack,
// and then moves data between the application and the host.
//
// Send and the handler callbacks are safe for concurrent use.
type Device struct {
	topo *Topology
	disp dispatcher

	mu   sync.RWMutex
	st   stack.DeviceStack
	tx   map[uint8]*txPump // keyed by endpoint address
	rx   map[uint8]*rxPump
	open bool
}

// New validates cfg, resolves the topology, and returns an unopened
// Device.
func New(cfg Config) (*Device, error) {
	topo, err := ResolveTopology(cfg)
	if err != nil {
		return nil, err
	}
	return &Device{topo: topo}, nil
}

// Topology returns the resolved topology.
func (d *Device) Topology() *Topology {
	return d.topo
}

// Descriptors writes the function's interface descriptor block into buf,
// registering port names in strings (which may be nil). See
// Topology.ConfigDescriptorTo.
func (d *Device) Descriptors(buf []byte, strings *stack.StringTable) (int, error) {
	return d.topo.ConfigDescriptorTo(buf, strings)
}

// DescriptorLen returns the byte length of the descriptor block.
func (d *Device) DescriptorLen() int {
	return d.topo.ConfigDescriptorLen()
}

// Open binds the device to a stack, builds the transfer pumps, and arms
// the receive endpoints. The stack must already have the endpoints
// configured per the descriptor block.
func (d *Device) Open(st stack.DeviceStack) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return pkg.ErrAlreadyOpen
	}

	d.st = st
	d.tx = make(map[uint8]*txPump)
	d.rx = make(map[uint8]*rxPump)
	packetSize := int(d.topo.PacketSize)

	for c := 0; c < d.topo.NumOut; c++ {
		route, _ := d.topo.OutRoute(uint8(c))
		if _, ok := d.tx[route.Endpoint]; ok {
			continue
		}
		ring, err := NewRing(d.topo.BufferSize)
		if err != nil {
			return err
		}
		d.tx[route.Endpoint] = newTxPump(st, route.Endpoint, ring, packetSize)
	}

	for c := 0; c < d.topo.NumIn; c++ {
		route, _ := d.topo.InRoute(uint8(c))
		if _, ok := d.rx[route.Endpoint]; ok {
			continue
		}
		ring, err := NewRing(d.topo.BufferSize)
		if err != nil {
			return err
		}
		deliver := d.deliverFunc(route)
		d.rx[route.Endpoint] = newRxPump(st, route.Endpoint, ring, packetSize, deliver)
	}

	d.open = true
	for _, p := range d.rx {
		p.kick()
	}

	pkg.LogInfo(pkg.ComponentStack, "midi function opened",
		"strategy", d.topo.Strategy.String(),
		"in", d.topo.NumIn, "out", d.topo.NumOut)
	return nil
}

// deliverFunc builds the decode callback for one receive endpoint. A
// multiplexed endpoint trusts the packet's cable nibble after range
// checking it; a dedicated endpoint carries exactly one cable and the
// nibble is ignored.
func (d *Device) deliverFunc(route CableRoute) func(EventPacket) {
	if route.Muxed {
		return func(pkt EventPacket) {
			c := pkt.Cable()
			if int(c) >= d.topo.NumIn {
				pkg.LogDebug(pkg.ComponentDispatch, "packet for unconfigured cable dropped",
					"cable", c)
				return
			}
			d.disp.dispatch(c, pkt)
		}
	}
	cable := routeCable(d.topo, route)
	return func(pkt EventPacket) {
		d.disp.dispatch(cable, pkt)
	}
}

// routeCable finds the input cable an unmultiplexed route belongs to.
func routeCable(t *Topology, route CableRoute) uint8 {
	for c := 0; c < t.NumIn; c++ {
		if t.inRoutes[c].Endpoint == route.Endpoint {
			return uint8(c)
		}
	}
	return 0
}

// Close detaches the device from the stack. Buffered data is discarded;
// completions for transfers already in flight are ignored by the stack
// once its endpoints are torn down.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return pkg.ErrNotOpen
	}
	d.open = false
	for _, p := range d.tx {
		p.stop()
	}
	for _, p := range d.rx {
		p.stop()
	}
	d.st = nil
	d.tx = nil
	d.rx = nil
	pkg.LogInfo(pkg.ComponentStack, "midi function closed")
	return nil
}

// SetHandler registers the catch-all message handler. Cable-specific
// handlers registered with SetCableHandler take precedence.
func (d *Device) SetHandler(h Handler) {
	d.disp.setHandler(h)
}

// SetCableHandler registers a handler for one input cable.
func (d *Device) SetCableHandler(cable uint8, h Handler) error {
	if int(cable) >= d.topo.NumIn {
		return fmt.Errorf("%w: %d", pkg.ErrInvalidCable, cable)
	}
	d.disp.setCableHandler(cable, h)
	return nil
}

// SetPacketHandler registers a raw event packet handler, called for every
// received packet before message dispatch.
func (d *Device) SetPacketHandler(h PacketHandler) {
	d.disp.setPacketHandler(h)
}

// Send queues a MIDI message of 1 to 3 bytes on an output cable and
// returns without blocking. ErrBufferFull means the host has not drained
// earlier data; the message is not queued and may be retried.
func (d *Device) Send(cable uint8, msg []byte) error {
	cin, err := DeriveCIN(msg)
	if err != nil {
		return err
	}
	var pkt EventPacket
	pkt[0] = cin
	copy(pkt[1:], msg)
	return d.SendEvent(cable, pkt)
}

// SendEvent queues one event packet on an output cable. The packet's
// cable nibble is overwritten according to the cable's route.
func (d *Device) SendEvent(cable uint8, pkt EventPacket) error {
	route, ok := d.topo.OutRoute(cable)
	if !ok {
		return fmt.Errorf("%w: %d", pkg.ErrInvalidCable, cable)
	}

	if route.Muxed {
		pkt[0] = route.Nibble<<4 | pkt[0]&0x0F
	} else {
		pkt[0] &= 0x0F
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.open {
		return pkg.ErrNotOpen
	}
	return d.tx[route.Endpoint].enqueue(pkt[:])
}

// NoteOn sends a note-on message.
func (d *Device) NoteOn(cable, channel, note, velocity uint8) error {
	return d.Send(cable, []byte{StatusNoteOn | channel&0x0F, note & 0x7F, velocity & 0x7F})
}

// NoteOff sends a note-off message.
func (d *Device) NoteOff(cable, channel, note, velocity uint8) error {
	return d.Send(cable, []byte{StatusNoteOff | channel&0x0F, note & 0x7F, velocity & 0x7F})
}

// ControlChange sends a controller change message.
func (d *Device) ControlChange(cable, channel, controller, value uint8) error {
	return d.Send(cable, []byte{StatusControlChange | channel&0x0F, controller & 0x7F, value & 0x7F})
}

// ProgramChange sends a program change message.
func (d *Device) ProgramChange(cable, channel, program uint8) error {
	return d.Send(cable, []byte{StatusProgramChange | channel&0x0F, program & 0x7F})
}
