package midi

// USB descriptor types used by the MIDI function.
const (
	DescriptorTypeInterface            = 0x04
	DescriptorTypeEndpoint             = 0x05
	DescriptorTypeInterfaceAssociation = 0x0B
	DescriptorTypeCSInterface          = 0x24 // Class-specific interface
	DescriptorTypeCSEndpoint           = 0x25 // Class-specific endpoint
)

// Audio class codes (USB MIDI devices are Audio-class functions).
const (
	ClassAudio            = 0x01
	SubclassAudioControl  = 0x01
	SubclassMIDIStreaming = 0x03
)

// Class-specific interface descriptor subtypes (USB MIDI 1.0 Table A-1).
const (
	SubtypeMSHeader    = 0x01
	SubtypeMIDIInJack  = 0x02
	SubtypeMIDIOutJack = 0x03
	SubtypeElement     = 0x04
)

// Class-specific endpoint descriptor subtype (USB MIDI 1.0 Table A-2).
const SubtypeMSGeneral = 0x01

// MIDI jack types (USB MIDI 1.0 Table A-3).
const (
	JackTypeEmbedded = 0x01
	JackTypeExternal = 0x02
)

// Endpoint address direction bits.
const (
	EndpointDirectionOut = 0x00 // Host to device
	EndpointDirectionIn  = 0x80 // Device to host
)

// EndpointTypeBulk is the transfer type used for MIDIStreaming endpoints.
const EndpointTypeBulk = 0x02

// MIDIVersion is the bcdADC/bcdMSC revision for USB MIDI 1.0.
const MIDIVersion = 0x0100

// MaxCables is the maximum number of virtual cables per direction.
// The cable field in an event packet is 4 bits wide.
const MaxCables = 16

// MaxEndpointNumber is the highest usable data endpoint number.
const MaxEndpointNumber = 15

// MaxPacketSize is the maximum endpoint packet size supported by the engine.
const MaxPacketSize = 512

// Defaults applied by ResolveTopology when the configuration leaves a field zero.
const (
	DefaultPacketSize = 64 // Endpoint max packet size
	DefaultBufferSize = 64 // Ring buffer capacity per direction
)

// Code Index Numbers (USB MIDI 1.0 Table 4-1). The CIN occupies the low
// nibble of an event packet's first byte and encodes the message category
// and byte count.
const (
	CINMisc            = 0x0 // Reserved / unrecognized
	CINCableEvent      = 0x1 // Reserved for cable events
	CINSystemCommon2   = 0x2 // 2-byte system common
	CINSystemCommon3   = 0x3 // 3-byte system common
	CINSysExStart      = 0x4 // SysEx starts or continues
	CINSysExEnd1       = 0x5 // SysEx ends with 1 byte
	CINSysExEnd2       = 0x6 // SysEx ends with 2 bytes
	CINSysExEnd3       = 0x7 // SysEx ends with 3 bytes
	CINNoteOff         = 0x8
	CINNoteOn          = 0x9
	CINPolyKeyPress    = 0xA
	CINControlChange   = 0xB
	CINProgramChange   = 0xC
	CINChannelPressure = 0xD
	CINPitchBend       = 0xE
	CINSingleByte      = 0xF // Single-byte realtime or system message
)

// MIDI status bytes used by the codec and convenience helpers.
const (
	StatusNoteOff       = 0x80
	StatusNoteOn        = 0x90
	StatusPolyKeyPress  = 0xA0
	StatusControlChange = 0xB0
	StatusProgramChange = 0xC0
	StatusSysExStart    = 0xF0
	StatusTimeCode      = 0xF1
	StatusSongPosition  = 0xF2
	StatusSongSelect    = 0xF3
	StatusTuneRequest   = 0xF6
	StatusSysExEnd      = 0xF7
)
