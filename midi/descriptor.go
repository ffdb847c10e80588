package midi

import (
	"encoding/binary"

	"github.com/HLammers/usb-midi/midi/stack"
	"github.com/HLammers/usb-midi/pkg"
)

// Descriptor sizes in bytes.
const (
	interfaceAssocLength = 8
	interfaceLength      = 9
	acHeaderBaseLength   = 8 // plus one byte per streaming interface
	msHeaderLength       = 7
	midiInJackLength     = 6
	midiOutJackLength    = 9 // single input pin
	endpointLength       = 9 // audio-class form with bRefresh, bSynchAddress
	csEndpointBaseLength = 4 // plus one byte per associated jack
)

// interfaceAssocDescriptor groups the AudioControl and MIDIStreaming
// interfaces into one function.
type interfaceAssocDescriptor struct {
	FirstInterface uint8
	InterfaceCount uint8
}

func (d *interfaceAssocDescriptor) MarshalTo(buf []byte) int {
	buf[0] = interfaceAssocLength
	buf[1] = DescriptorTypeInterfaceAssociation
	buf[2] = d.FirstInterface
	buf[3] = d.InterfaceCount
	buf[4] = ClassAudio
	buf[5] = SubclassAudioControl
	buf[6] = 0 // bFunctionProtocol
	buf[7] = 0 // iFunction
	return interfaceAssocLength
}

// interfaceDescriptor is a standard interface descriptor.
type interfaceDescriptor struct {
	InterfaceNumber uint8
	NumEndpoints    uint8
	InterfaceSub    uint8
	Interface       uint8 // string index
}

func (d *interfaceDescriptor) MarshalTo(buf []byte) int {
	buf[0] = interfaceLength
	buf[1] = DescriptorTypeInterface
	buf[2] = d.InterfaceNumber
	buf[3] = 0 // bAlternateSetting
	buf[4] = d.NumEndpoints
	buf[5] = ClassAudio
	buf[6] = d.InterfaceSub
	buf[7] = 0 // bInterfaceProtocol
	buf[8] = d.Interface
	return interfaceLength
}

// acHeaderDescriptor is the class-specific AudioControl header. It names
// every MIDIStreaming interface belonging to the function.
type acHeaderDescriptor struct {
	StreamingInterfaces []uint8
}

func (d *acHeaderDescriptor) Length() int {
	return acHeaderBaseLength + len(d.StreamingInterfaces)
}

func (d *acHeaderDescriptor) MarshalTo(buf []byte) int {
	n := d.Length()
	buf[0] = uint8(n)
	buf[1] = DescriptorTypeCSInterface
	buf[2] = SubtypeMSHeader
	binary.LittleEndian.PutUint16(buf[3:], MIDIVersion)
	binary.LittleEndian.PutUint16(buf[5:], uint16(n))
	buf[7] = uint8(len(d.StreamingInterfaces))
	copy(buf[8:], d.StreamingInterfaces)
	return n
}

// msHeaderDescriptor is the class-specific MIDIStreaming header.
// TotalLength counts this header plus every descriptor that follows it
// within the interface, standard endpoint descriptors included.
type msHeaderDescriptor struct {
	TotalLength uint16
}

func (d *msHeaderDescriptor) MarshalTo(buf []byte) int {
	buf[0] = msHeaderLength
	buf[1] = DescriptorTypeCSInterface
	buf[2] = SubtypeMSHeader
	binary.LittleEndian.PutUint16(buf[3:], MIDIVersion)
	binary.LittleEndian.PutUint16(buf[5:], d.TotalLength)
	return msHeaderLength
}

// midiInJackDescriptor describes one MIDI IN jack.
type midiInJackDescriptor struct {
	JackType uint8
	JackID   uint8
	Jack     uint8 // string index
}

func (d *midiInJackDescriptor) MarshalTo(buf []byte) int {
	buf[0] = midiInJackLength
	buf[1] = DescriptorTypeCSInterface
	buf[2] = SubtypeMIDIInJack
	buf[3] = d.JackType
	buf[4] = d.JackID
	buf[5] = d.Jack
	return midiInJackLength
}

// midiOutJackDescriptor describes one MIDI OUT jack with a single input pin.
type midiOutJackDescriptor struct {
	JackType uint8
	JackID   uint8
	SourceID uint8
	Jack     uint8 // string index
}

func (d *midiOutJackDescriptor) MarshalTo(buf []byte) int {
	buf[0] = midiOutJackLength
	buf[1] = DescriptorTypeCSInterface
	buf[2] = SubtypeMIDIOutJack
	buf[3] = d.JackType
	buf[4] = d.JackID
	buf[5] = 1 // bNrInputPins
	buf[6] = d.SourceID
	buf[7] = 1 // BaSourcePin(1)
	buf[8] = d.Jack
	return midiOutJackLength
}

// endpointDescriptor is the audio-class standard bulk endpoint descriptor.
type endpointDescriptor struct {
	EndpointAddress uint8
	MaxPacketSize   uint16
}

func (d *endpointDescriptor) MarshalTo(buf []byte) int {
	buf[0] = endpointLength
	buf[1] = DescriptorTypeEndpoint
	buf[2] = d.EndpointAddress
	buf[3] = EndpointTypeBulk
	binary.LittleEndian.PutUint16(buf[4:], d.MaxPacketSize)
	buf[6] = 0 // bInterval
	buf[7] = 0 // bRefresh
	buf[8] = 0 // bSynchAddress
	return endpointLength
}

// csEndpointDescriptor is the class-specific bulk endpoint descriptor
// listing the embedded jacks reachable through the endpoint.
type csEndpointDescriptor struct {
	AssocJacks []uint8
}

func (d *csEndpointDescriptor) Length() int {
	return csEndpointBaseLength + len(d.AssocJacks)
}

func (d *csEndpointDescriptor) MarshalTo(buf []byte) int {
	n := d.Length()
	buf[0] = uint8(n)
	buf[1] = DescriptorTypeCSEndpoint
	buf[2] = SubtypeMSGeneral
	buf[3] = uint8(len(d.AssocJacks))
	copy(buf[4:], d.AssocJacks)
	return n
}

// jackLength returns the descriptor size for one jack.
func jackLength(j *Jack) int {
	if j.Subtype == SubtypeMIDIInJack {
		return midiInJackLength
	}
	return midiOutJackLength
}

// msBodyLength returns the MIDIStreaming header wTotalLength for one
// interface: the header plus all jack and endpoint descriptors.
func msBodyLength(iface *InterfaceDef) int {
	n := msHeaderLength
	for i := range iface.Jacks {
		n += jackLength(&iface.Jacks[i])
	}
	for i := range iface.Endpoints {
		n += endpointLength
		n += csEndpointBaseLength + len(iface.Endpoints[i].AssocJacks)
	}
	return n
}

// ConfigDescriptorLen returns the exact byte length of the descriptor
// block emitted by ConfigDescriptorTo.
func (t *Topology) ConfigDescriptorLen() int {
	n := 0
	if t.InterfaceAssociation {
		n += interfaceAssocLength
	}
	n += interfaceLength                       // AudioControl interface
	n += acHeaderBaseLength + len(t.Streaming) // AC class header
	for i := range t.Streaming {
		n += interfaceLength
		n += msBodyLength(&t.Streaming[i])
	}
	return n
}

// ConfigDescriptorTo writes the function's complete interface descriptor
// block into buf and returns the byte count. Port names are registered in
// strings on first use; a nil table leaves all string indices zero. The
// buffer must hold at least ConfigDescriptorLen bytes.
func (t *Topology) ConfigDescriptorTo(buf []byte, strings *stack.StringTable) (int, error) {
	total := t.ConfigDescriptorLen()
	if len(buf) < total {
		return 0, pkg.ErrBufferTooSmall
	}

	// One string index per name, shared by the jacks of a set.
	indexed := make(map[string]uint8)
	strIndex := func(name string) uint8 {
		if name == "" || strings == nil {
			return 0
		}
		if idx, ok := indexed[name]; ok {
			return idx
		}
		idx := strings.Add(name)
		indexed[name] = idx
		return idx
	}

	pos := 0
	if t.InterfaceAssociation {
		iad := interfaceAssocDescriptor{
			FirstInterface: t.ACInterface,
			InterfaceCount: uint8(t.NumInterfaces()),
		}
		pos += iad.MarshalTo(buf[pos:])
	}

	ac := interfaceDescriptor{
		InterfaceNumber: t.ACInterface,
		InterfaceSub:    SubclassAudioControl,
	}
	pos += ac.MarshalTo(buf[pos:])

	acHdr := acHeaderDescriptor{StreamingInterfaces: make([]uint8, len(t.Streaming))}
	for i := range t.Streaming {
		acHdr.StreamingInterfaces[i] = t.Streaming[i].Number
	}
	pos += acHdr.MarshalTo(buf[pos:])

	for i := range t.Streaming {
		iface := &t.Streaming[i]

		std := interfaceDescriptor{
			InterfaceNumber: iface.Number,
			NumEndpoints:    uint8(len(iface.Endpoints)),
			InterfaceSub:    SubclassMIDIStreaming,
		}
		if iface.Set >= 0 {
			std.Interface = strIndex(t.PortName(iface.Set))
		}
		pos += std.MarshalTo(buf[pos:])

		hdr := msHeaderDescriptor{TotalLength: uint16(msBodyLength(iface))}
		pos += hdr.MarshalTo(buf[pos:])

		for j := range iface.Jacks {
			jack := &iface.Jacks[j]
			idx := strIndex(jack.Name)
			if jack.Subtype == SubtypeMIDIInJack {
				d := midiInJackDescriptor{JackType: jack.Type, JackID: jack.ID, Jack: idx}
				pos += d.MarshalTo(buf[pos:])
			} else {
				d := midiOutJackDescriptor{JackType: jack.Type, JackID: jack.ID, SourceID: jack.SourceID, Jack: idx}
				pos += d.MarshalTo(buf[pos:])
			}
		}

		for e := range iface.Endpoints {
			ep := &iface.Endpoints[e]
			std := endpointDescriptor{EndpointAddress: ep.Address, MaxPacketSize: t.PacketSize}
			pos += std.MarshalTo(buf[pos:])
			cs := csEndpointDescriptor{AssocJacks: ep.AssocJacks}
			pos += cs.MarshalTo(buf[pos:])
		}
	}

	if pos != total {
		return pos, pkg.ErrProtocol
	}
	pkg.LogDebug(pkg.ComponentDescriptor, "descriptor block built",
		"bytes", pos, "interfaces", t.NumInterfaces())
	return pos, nil
}
