package midi

import (
	"sync"

	"github.com/HLammers/usb-midi/midi/stack"
	"github.com/HLammers/usb-midi/pkg"
)

// txPump drains one outbound ring into one IN endpoint. At most one
// transfer is in flight; completions re-arm the pump until the ring is
// empty. Data is staged into a private buffer so a packet group never
// straddles the ring's wrap point inside a submission.
type txPump struct {
	st         stack.DeviceStack
	ep         uint8
	ring       *Ring
	packetSize int

	mu       sync.Mutex
	staging  [MaxPacketSize]byte
	inFlight int
	stopped  bool
}

func newTxPump(st stack.DeviceStack, ep uint8, ring *Ring, packetSize int) *txPump {
	return &txPump{st: st, ep: ep, ring: ring, packetSize: packetSize}
}

// kick arms a transfer if data is queued and none is in flight. Safe to
// call redundantly; the pending query makes it idempotent.
func (p *txPump) kick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arm()
}

// enqueue queues one packet and arms the endpoint. The pump mutex
// serializes concurrent senders onto the ring's single producer cursor.
func (p *txPump) enqueue(pkt []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ring.Write(pkt); err != nil {
		return err
	}
	p.arm()
	return nil
}

// stop keeps completions from re-arming the endpoint. In-flight transfers
// are not cancelled here; stack teardown resolves them.
func (p *txPump) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *txPump) arm() {
	if p.stopped || p.st.Pending(p.ep) {
		return
	}
	n := p.ring.Peek(p.staging[:p.packetSize])
	n -= n % 4 // whole event packets only
	if n == 0 {
		return
	}
	p.inFlight = n
	if err := p.st.Submit(p.ep, p.staging[:n], p.done); err != nil {
		p.inFlight = 0
		pkg.LogWarn(pkg.ComponentPump, "transmit submit failed",
			"ep", p.ep, "error", err)
	}
}

func (p *txPump) done(ep uint8, status pkg.TransferStatus, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == pkg.TransferStatusSuccess {
		if n > p.inFlight {
			n = p.inFlight
		}
		p.ring.Consume(n)
	} else {
		// Keep the queued data; the next transfer retries it.
		pkg.LogWarn(pkg.ComponentPump, "transmit failed",
			"ep", ep, "status", status.String())
	}
	p.inFlight = 0
	p.arm()
}

// rxPump feeds one OUT endpoint into an inbound ring. Received bytes are
// copied into the ring in completion context; decoding runs later in a
// deferred task so handlers never execute inside the controller callback.
type rxPump struct {
	st         stack.DeviceStack
	ep         uint8
	ring       *Ring
	packetSize int
	deliver    func(EventPacket)

	mu      sync.Mutex
	staging [MaxPacketSize]byte
	stopped bool
}

func newRxPump(st stack.DeviceStack, ep uint8, ring *Ring, packetSize int, deliver func(EventPacket)) *rxPump {
	return &rxPump{st: st, ep: ep, ring: ring, packetSize: packetSize, deliver: deliver}
}

// kick arms a receive if the ring has room and none is in flight.
func (p *rxPump) kick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arm()
}

func (p *rxPump) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *rxPump) arm() {
	if p.stopped || p.st.Pending(p.ep) {
		return
	}
	// Request no more than the ring can absorb. Free space only grows
	// between here and the completion, so the write cannot fail. A full
	// ring leaves the endpoint idle until drain consumes and re-arms.
	n := p.ring.Free()
	if n > p.packetSize {
		n = p.packetSize
	}
	if n == 0 {
		return
	}
	if err := p.st.Submit(p.ep, p.staging[:n], p.done); err != nil {
		pkg.LogWarn(pkg.ComponentPump, "receive submit failed",
			"ep", p.ep, "error", err)
	}
}

func (p *rxPump) done(ep uint8, status pkg.TransferStatus, n int) {
	p.mu.Lock()
	if status == pkg.TransferStatusSuccess && n > 0 {
		if n > p.packetSize {
			n = p.packetSize
		}
		if err := p.ring.Write(p.staging[:n]); err != nil {
			pkg.LogWarn(pkg.ComponentPump, "receive overrun, packets dropped",
				"ep", ep, "bytes", n)
		}
	} else if status != pkg.TransferStatusSuccess {
		pkg.LogWarn(pkg.ComponentPump, "receive failed",
			"ep", ep, "status", status.String())
	}
	p.arm()
	p.mu.Unlock()
	p.st.Defer(p.drain)
}

// drain decodes buffered packets and hands them to the dispatcher. Bytes
// short of a whole packet stay queued until the rest arrives. It runs as
// a deferred task and finishes by re-arming, so a ring that was full
// during completion does not leave the endpoint idle.
func (p *rxPump) drain() {
	var buf [4]byte
	for p.ring.Peek(buf[:]) == 4 {
		p.ring.Consume(4)
		p.deliver(EventPacket(buf))
	}
	p.kick()
}
