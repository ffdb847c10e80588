package midi

import (
	"fmt"

	"github.com/HLammers/usb-midi/pkg"
)

// Strategy selects how virtual cables map onto physical endpoints and
// interfaces. The strategy is fixed at configuration time and shapes both
// the emitted descriptors and the event packet framing.
type Strategy uint8

// Topology strategies.
const (
	// StrategyShared multiplexes all cables over a single OUT/IN endpoint
	// pair, demultiplexed by the 4-bit cable field. Most portable.
	StrategyShared Strategy = iota

	// StrategyPerCable assigns a dedicated endpoint to every cable. No
	// demultiplexing, but bounded by the hardware endpoint count.
	StrategyPerCable

	// StrategyPerInterface gives every port its own MIDIStreaming
	// interface and endpoint pair. Best for hosts that enumerate ports
	// by interface name.
	StrategyPerInterface
)

// String returns a human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyShared:
		return "shared"
	case StrategyPerCable:
		return "per-cable"
	case StrategyPerInterface:
		return "per-interface"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Config describes a MIDI function at construction time.
type Config struct {
	// NumIn and NumOut are the virtual cable counts per direction (1-16).
	NumIn  int
	NumOut int

	// PortNames holds optional display names, indexed by jack set. Names
	// beyond max(NumIn, NumOut) are ignored; missing entries get no string.
	PortNames []string

	// Strategy selects the endpoint topology.
	Strategy Strategy

	// ExternalJacks adds external jack descriptors mirroring the embedded
	// ones. Whether hosts require them varies by operating system, so the
	// choice is explicit rather than assumed.
	ExternalJacks bool

	// InterfaceAssociation emits an interface association descriptor in
	// front of the function. Some Windows versions stop recognizing the
	// ports when it is present, so it defaults to off.
	InterfaceAssociation bool

	// PacketSize is the endpoint max packet size. Zero selects
	// DefaultPacketSize. Must be a multiple of 4.
	PacketSize uint16

	// BufferSize is the per-direction ring buffer capacity in bytes.
	// Zero selects DefaultBufferSize. Must be a power of two and at
	// least 8.
	BufferSize int

	// FirstInterface is the interface number of the AudioControl
	// interface; MIDIStreaming interfaces follow sequentially.
	FirstInterface uint8

	// FirstEndpoint is the first data endpoint number to allocate.
	// Zero selects endpoint 1.
	FirstEndpoint uint8
}

// Jack is one routing point in the resolved topology.
type Jack struct {
	ID       uint8  // Unique device-wide identifier
	Subtype  uint8  // SubtypeMIDIInJack or SubtypeMIDIOutJack
	Type     uint8  // JackTypeEmbedded or JackTypeExternal
	SourceID uint8  // OUT jacks: entity feeding the single input pin
	Set      int    // Jack set (port) index
	Name     string // Display name, empty for none (dummy jacks stay empty)
}

// EndpointDef is one data endpoint in the resolved topology.
type EndpointDef struct {
	Address    uint8   // Endpoint address including direction bit
	AssocJacks []uint8 // Embedded jack IDs routed through this endpoint, in cable order
}

// IsIn returns true if this is an IN endpoint (device to host).
func (e *EndpointDef) IsIn() bool {
	return e.Address&EndpointDirectionIn != 0
}

// Number returns the endpoint number (0-15).
func (e *EndpointDef) Number() uint8 {
	return e.Address & 0x0F
}

// InterfaceDef is one MIDIStreaming interface in the resolved topology.
type InterfaceDef struct {
	Number    uint8
	Jacks     []Jack
	Endpoints []EndpointDef
	Set       int // Port index for per-interface naming, -1 otherwise
}

// CableRoute is the resolved carrier for one virtual cable: the physical
// endpoint it travels on and, for multiplexed endpoints, the cable nibble
// carried in each event packet. The descriptor builder and the packet codec
// use the same route.
type CableRoute struct {
	Endpoint uint8 // Endpoint address including direction bit
	Nibble   uint8 // Cable nibble, meaningful only when Muxed
	Muxed    bool  // Nibble is carried in event packet byte 0
	JackID   uint8 // Embedded jack backing this cable
}

// Topology is the immutable result of resolving a Config: interface and
// jack layout, endpoint assignment, and per-cable routes. Built once at
// configuration time.
type Topology struct {
	Strategy             Strategy
	NumIn                int
	NumOut               int
	ExternalJacks        bool
	InterfaceAssociation bool
	PacketSize           uint16
	BufferSize           int

	// ACInterface is the AudioControl interface number; the streaming
	// interfaces follow it.
	ACInterface uint8

	// Streaming holds the MIDIStreaming interfaces in descriptor order.
	Streaming []InterfaceDef

	inRoutes  [MaxCables]CableRoute
	outRoutes [MaxCables]CableRoute
	portNames []string
}

// jackSets returns the number of embedded jack pairs. Every set carries
// both an IN and an OUT jack; sets past a direction's cable count are
// dummies required for descriptor validity on some hosts.
func jackSets(numIn, numOut int) int {
	if numIn > numOut {
		return numIn
	}
	return numOut
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// ResolveTopology validates cfg and resolves the jack layout, endpoint
// assignment, and cable routes for the selected strategy. All configuration
// errors surface here; nothing fails at runtime.
func ResolveTopology(cfg Config) (*Topology, error) {
	if cfg.NumIn < 1 || cfg.NumIn > MaxCables {
		return nil, fmt.Errorf("%w: num_in %d", pkg.ErrCableCount, cfg.NumIn)
	}
	if cfg.NumOut < 1 || cfg.NumOut > MaxCables {
		return nil, fmt.Errorf("%w: num_out %d", pkg.ErrCableCount, cfg.NumOut)
	}
	if cfg.Strategy > StrategyPerInterface {
		return nil, pkg.ErrInvalidStrategy
	}

	packetSize := cfg.PacketSize
	if packetSize == 0 {
		packetSize = DefaultPacketSize
	}
	if packetSize%4 != 0 || packetSize > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d", pkg.ErrInvalidPacketSize, packetSize)
	}

	bufferSize := cfg.BufferSize
	if bufferSize == 0 {
		bufferSize = DefaultBufferSize
	}
	if !isPowerOfTwo(bufferSize) || bufferSize < 8 {
		return nil, fmt.Errorf("%w: %d", pkg.ErrInvalidBufferSize, bufferSize)
	}

	firstEP := cfg.FirstEndpoint
	if firstEP == 0 {
		firstEP = 1
	}

	sets := jackSets(cfg.NumIn, cfg.NumOut)
	names := make([]string, sets)
	copy(names, cfg.PortNames)

	t := &Topology{
		Strategy:             cfg.Strategy,
		NumIn:                cfg.NumIn,
		NumOut:               cfg.NumOut,
		ExternalJacks:        cfg.ExternalJacks,
		InterfaceAssociation: cfg.InterfaceAssociation,
		PacketSize:           packetSize,
		BufferSize:           bufferSize,
		ACInterface:          cfg.FirstInterface,
		portNames:            names,
	}

	var err error
	switch cfg.Strategy {
	case StrategyShared:
		err = t.resolveShared(firstEP)
	case StrategyPerCable:
		err = t.resolvePerCable(firstEP)
	case StrategyPerInterface:
		err = t.resolvePerInterface(firstEP)
	}
	if err != nil {
		return nil, err
	}

	pkg.LogDebug(pkg.ComponentTopology, "topology resolved",
		"strategy", t.Strategy.String(),
		"in", t.NumIn,
		"out", t.NumOut,
		"interfaces", t.NumInterfaces())

	return t, nil
}

// allocateJackSets allocates jack IDs for sets embedded pairs starting at
// firstID: embedded IN jacks for every set, then embedded OUT jacks, then,
// when external jacks are enabled, external OUT jacks mirroring the inputs
// and external IN jacks mirroring the outputs. The returned slice is in
// descriptor emission order.
func (t *Topology) allocateJackSets(firstID uint8, sets int, names []string) []Jack {
	count := 2 * sets
	if t.ExternalJacks {
		count = 4 * sets
	}
	jacks := make([]Jack, 0, count)

	embIn := func(s int) uint8 { return firstID + uint8(s) }
	embOut := func(s int) uint8 { return firstID + uint8(sets+s) }
	extOut := func(s int) uint8 { return firstID + uint8(2*sets+s) }
	extIn := func(s int) uint8 { return firstID + uint8(3*sets+s) }

	for s := 0; s < sets; s++ {
		name := ""
		if s < t.NumIn {
			name = names[s]
		}
		jacks = append(jacks, Jack{
			ID:      embIn(s),
			Subtype: SubtypeMIDIInJack,
			Type:    JackTypeEmbedded,
			Set:     s,
			Name:    name,
		})
	}
	for s := 0; s < sets; s++ {
		name := ""
		if s < t.NumOut {
			name = names[s]
		}
		source := embIn(s)
		if t.ExternalJacks {
			source = extIn(s)
		}
		jacks = append(jacks, Jack{
			ID:       embOut(s),
			Subtype:  SubtypeMIDIOutJack,
			Type:     JackTypeEmbedded,
			SourceID: source,
			Set:      s,
			Name:     name,
		})
	}
	if t.ExternalJacks {
		for s := 0; s < sets; s++ {
			jacks = append(jacks, Jack{
				ID:       extOut(s),
				Subtype:  SubtypeMIDIOutJack,
				Type:     JackTypeExternal,
				SourceID: embIn(s),
				Set:      s,
			})
		}
		for s := 0; s < sets; s++ {
			jacks = append(jacks, Jack{
				ID:      extIn(s),
				Subtype: SubtypeMIDIInJack,
				Type:    JackTypeExternal,
				Set:     s,
			})
		}
	}
	return jacks
}

// resolveShared maps every cable onto one shared OUT/IN endpoint pair,
// demultiplexed by cable nibble.
func (t *Topology) resolveShared(firstEP uint8) error {
	if firstEP > MaxEndpointNumber {
		return fmt.Errorf("%w: endpoint %d", pkg.ErrInvalidEndpoint, firstEP)
	}

	sets := jackSets(t.NumIn, t.NumOut)
	jacks := t.allocateJackSets(1, sets, t.portNames)

	outEP := EndpointDef{Address: firstEP}
	for c := 0; c < t.NumIn; c++ {
		id := jacks[c].ID // embedded IN jacks lead the slice
		outEP.AssocJacks = append(outEP.AssocJacks, id)
		t.inRoutes[c] = CableRoute{Endpoint: outEP.Address, Nibble: uint8(c), Muxed: true, JackID: id}
	}
	inEP := EndpointDef{Address: firstEP | EndpointDirectionIn}
	for c := 0; c < t.NumOut; c++ {
		id := jacks[sets+c].ID // embedded OUT jacks follow the IN jacks
		inEP.AssocJacks = append(inEP.AssocJacks, id)
		t.outRoutes[c] = CableRoute{Endpoint: inEP.Address, Nibble: uint8(c), Muxed: true, JackID: id}
	}

	t.Streaming = []InterfaceDef{{
		Number:    t.ACInterface + 1,
		Jacks:     jacks,
		Endpoints: []EndpointDef{outEP, inEP},
		Set:       -1,
	}}
	return nil
}

// resolvePerCable gives each cable a dedicated endpoint on a single
// MIDIStreaming interface. No demultiplexing is needed.
func (t *Topology) resolvePerCable(firstEP uint8) error {
	needed := t.NumIn + t.NumOut
	if int(firstEP)+needed-1 > MaxEndpointNumber {
		return fmt.Errorf("%w: %d endpoints from %d", pkg.ErrInvalidEndpoint, needed, firstEP)
	}

	sets := jackSets(t.NumIn, t.NumOut)
	jacks := t.allocateJackSets(1, sets, t.portNames)

	eps := make([]EndpointDef, 0, needed)
	num := firstEP
	for c := 0; c < t.NumIn; c++ {
		id := jacks[c].ID
		ep := EndpointDef{Address: num, AssocJacks: []uint8{id}}
		t.inRoutes[c] = CableRoute{Endpoint: ep.Address, JackID: id}
		eps = append(eps, ep)
		num++
	}
	for c := 0; c < t.NumOut; c++ {
		id := jacks[sets+c].ID
		ep := EndpointDef{Address: num | EndpointDirectionIn, AssocJacks: []uint8{id}}
		t.outRoutes[c] = CableRoute{Endpoint: ep.Address, JackID: id}
		eps = append(eps, ep)
		num++
	}

	t.Streaming = []InterfaceDef{{
		Number:    t.ACInterface + 1,
		Jacks:     jacks,
		Endpoints: eps,
		Set:       -1,
	}}
	return nil
}

// resolvePerInterface gives each port its own MIDIStreaming interface with
// an endpoint number shared by both directions.
func (t *Topology) resolvePerInterface(firstEP uint8) error {
	sets := jackSets(t.NumIn, t.NumOut)
	if int(firstEP)+sets-1 > MaxEndpointNumber {
		return fmt.Errorf("%w: %d endpoints from %d", pkg.ErrInvalidEndpoint, sets, firstEP)
	}

	t.Streaming = make([]InterfaceDef, 0, sets)
	id := uint8(1)
	for s := 0; s < sets; s++ {
		name := t.portNames[s]

		embIn := Jack{ID: id, Subtype: SubtypeMIDIInJack, Type: JackTypeEmbedded, Set: s}
		if s < t.NumIn {
			embIn.Name = name
		}
		id++
		embOut := Jack{ID: id, Subtype: SubtypeMIDIOutJack, Type: JackTypeEmbedded, SourceID: embIn.ID, Set: s}
		if s < t.NumOut {
			embOut.Name = name
		}
		id++

		jacks := []Jack{embIn, embOut}
		if t.ExternalJacks {
			extOut := Jack{ID: id, Subtype: SubtypeMIDIOutJack, Type: JackTypeExternal, SourceID: embIn.ID, Set: s}
			id++
			extIn := Jack{ID: id, Subtype: SubtypeMIDIInJack, Type: JackTypeExternal, Set: s}
			id++
			jacks[1].SourceID = extIn.ID
			jacks = append(jacks, extOut, extIn)
		}

		epNum := firstEP + uint8(s)
		var eps []EndpointDef
		if s < t.NumIn {
			ep := EndpointDef{Address: epNum, AssocJacks: []uint8{embIn.ID}}
			t.inRoutes[s] = CableRoute{Endpoint: ep.Address, JackID: embIn.ID}
			eps = append(eps, ep)
		}
		if s < t.NumOut {
			ep := EndpointDef{Address: epNum | EndpointDirectionIn, AssocJacks: []uint8{embOut.ID}}
			t.outRoutes[s] = CableRoute{Endpoint: ep.Address, JackID: embOut.ID}
			eps = append(eps, ep)
		}

		t.Streaming = append(t.Streaming, InterfaceDef{
			Number:    t.ACInterface + 1 + uint8(s),
			Jacks:     jacks,
			Endpoints: eps,
			Set:       s,
		})
	}
	return nil
}

// NumInterfaces returns the total interface count, including AudioControl.
func (t *Topology) NumInterfaces() int {
	return 1 + len(t.Streaming)
}

// InRoute returns the route for an input cable (host to device).
func (t *Topology) InRoute(cable uint8) (CableRoute, bool) {
	if int(cable) >= t.NumIn {
		return CableRoute{}, false
	}
	return t.inRoutes[cable], true
}

// OutRoute returns the route for an output cable (device to host).
func (t *Topology) OutRoute(cable uint8) (CableRoute, bool) {
	if int(cable) >= t.NumOut {
		return CableRoute{}, false
	}
	return t.outRoutes[cable], true
}

// PortName returns the display name for a jack set, or "" if none.
func (t *Topology) PortName(set int) string {
	if set < 0 || set >= len(t.portNames) {
		return ""
	}
	return t.portNames[set]
}
