package midi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/HLammers/usb-midi/midi/stack"
	"github.com/HLammers/usb-midi/pkg"
)

// TestConfigDescriptorGolden checks the full descriptor block for the
// single-port layout against the reference bytes from the USB MIDI 1.0
// class definition (Appendix B), adjusted for this builder's jack order.
func TestConfigDescriptorGolden(t *testing.T) {
	topo, err := ResolveTopology(Config{NumIn: 1, NumOut: 1, ExternalJacks: true})
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{
		// Standard AC interface descriptor
		0x09, 0x04, 0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00,
		// Class-specific AC header, pointing at MS interface 1
		0x09, 0x24, 0x01, 0x00, 0x01, 0x09, 0x00, 0x01, 0x01,
		// Standard MS interface descriptor, 2 endpoints
		0x09, 0x04, 0x01, 0x00, 0x02, 0x01, 0x03, 0x00, 0x00,
		// Class-specific MS header, wTotalLength 0x0041
		0x07, 0x24, 0x01, 0x00, 0x01, 0x41, 0x00,
		// Embedded IN jack 1
		0x06, 0x24, 0x02, 0x01, 0x01, 0x00,
		// Embedded OUT jack 2, sourced from external IN jack 4
		0x09, 0x24, 0x03, 0x01, 0x02, 0x01, 0x04, 0x01, 0x00,
		// External OUT jack 3, sourced from embedded IN jack 1
		0x09, 0x24, 0x03, 0x02, 0x03, 0x01, 0x01, 0x01, 0x00,
		// External IN jack 4
		0x06, 0x24, 0x02, 0x02, 0x04, 0x00,
		// Bulk OUT endpoint 1, 64-byte packets
		0x09, 0x05, 0x01, 0x02, 0x40, 0x00, 0x00, 0x00, 0x00,
		// CS endpoint, 1 jack: embedded IN jack 1
		0x05, 0x25, 0x01, 0x01, 0x01,
		// Bulk IN endpoint 1
		0x09, 0x05, 0x81, 0x02, 0x40, 0x00, 0x00, 0x00, 0x00,
		// CS endpoint, 1 jack: embedded OUT jack 2
		0x05, 0x25, 0x01, 0x01, 0x02,
	}

	if got := topo.ConfigDescriptorLen(); got != len(want) {
		t.Fatalf("ConfigDescriptorLen = %d, want %d", got, len(want))
	}
	buf := make([]byte, len(want))
	n, err := topo.ConfigDescriptorTo(buf, nil)
	if err != nil {
		t.Fatalf("ConfigDescriptorTo: %v", err)
	}
	if n != len(want) {
		t.Fatalf("wrote %d bytes, want %d", n, len(want))
	}
	if !bytes.Equal(buf, want) {
		for i := range want {
			if buf[i] != want[i] {
				t.Errorf("byte %d = %02X, want %02X", i, buf[i], want[i])
			}
		}
	}
}

// TestConfigDescriptorLengths sweeps every cable count pair, asymmetric
// ones included, across all strategies and checks three properties: the
// predicted length matches the bytes written, every descriptor's bLength
// walks the block exactly, and each MS header's wTotalLength spans its
// own interface body. Asymmetric pairs exercise the dummy jack sets.
func TestConfigDescriptorLengths(t *testing.T) {
	for _, strategy := range []Strategy{StrategyShared, StrategyPerCable, StrategyPerInterface} {
		for _, external := range []bool{false, true} {
			for numIn := 1; numIn <= MaxCables; numIn++ {
				for numOut := 1; numOut <= MaxCables; numOut++ {
					if strategy == StrategyPerCable && numIn+numOut > MaxEndpointNumber {
						continue
					}
					topo, err := ResolveTopology(Config{
						NumIn:         numIn,
						NumOut:        numOut,
						Strategy:      strategy,
						ExternalJacks: external,
					})
					if err != nil {
						t.Fatalf("%v/%dx%d/ext=%v: %v", strategy, numIn, numOut, external, err)
					}

					buf := make([]byte, topo.ConfigDescriptorLen())
					n, err := topo.ConfigDescriptorTo(buf, nil)
					if err != nil {
						t.Fatalf("%v/%dx%d/ext=%v: ConfigDescriptorTo: %v", strategy, numIn, numOut, external, err)
					}
					if n != len(buf) {
						t.Fatalf("%v/%dx%d/ext=%v: wrote %d, predicted %d", strategy, numIn, numOut, external, n, len(buf))
					}
					checkDescriptorWalk(t, buf, strategy, numIn, numOut)
				}
			}
		}
	}
}

// checkDescriptorWalk verifies the block's internal structure.
func checkDescriptorWalk(t *testing.T, buf []byte, strategy Strategy, numIn, numOut int) {
	t.Helper()
	pos := 0
	for pos < len(buf) {
		l := int(buf[pos])
		if l < 2 || pos+l > len(buf) {
			t.Fatalf("%v/%dx%d: bad bLength %d at offset %d", strategy, numIn, numOut, l, pos)
		}
		if buf[pos+1] == DescriptorTypeCSInterface && buf[pos+2] == SubtypeMSHeader && l == msHeaderLength {
			total := int(buf[pos+5]) | int(buf[pos+6])<<8
			end := pos + total
			if end > len(buf) {
				t.Fatalf("%v/%dx%d: MS wTotalLength %d overruns block at offset %d", strategy, numIn, numOut, total, pos)
			}
			// The span must end at the block's end or at the next
			// standard interface descriptor.
			if end != len(buf) && buf[end+1] != DescriptorTypeInterface {
				t.Fatalf("%v/%dx%d: MS wTotalLength %d does not end on an interface boundary", strategy, numIn, numOut, total)
			}
		}
		pos += l
	}
	if pos != len(buf) {
		t.Fatalf("%v/%dx%d: descriptor walk ended at %d of %d", strategy, numIn, numOut, pos, len(buf))
	}
}

func TestConfigDescriptorTooSmall(t *testing.T) {
	topo, err := ResolveTopology(Config{NumIn: 1, NumOut: 1})
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, topo.ConfigDescriptorLen()-1)
	if _, err := topo.ConfigDescriptorTo(buf, nil); !errors.Is(err, pkg.ErrBufferTooSmall) {
		t.Errorf("error = %v, want ErrBufferTooSmall", err)
	}
}

func TestConfigDescriptorInterfaceAssociation(t *testing.T) {
	topo, err := ResolveTopology(Config{
		NumIn:                2,
		NumOut:               2,
		Strategy:             StrategyPerInterface,
		InterfaceAssociation: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, topo.ConfigDescriptorLen())
	if _, err := topo.ConfigDescriptorTo(buf, nil); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x08, 0x0B, 0x00, 0x03, 0x01, 0x01, 0x00, 0x00}
	if !bytes.Equal(buf[:8], want) {
		t.Errorf("IAD = % X, want % X", buf[:8], want)
	}
}

func TestConfigDescriptorPortNames(t *testing.T) {
	topo, err := ResolveTopology(Config{
		NumIn:     2,
		NumOut:    2,
		Strategy:  StrategyPerInterface,
		PortNames: []string{"Keys", "Pads"},
	})
	if err != nil {
		t.Fatal(err)
	}

	strings := stack.NewStringTable(4) // stack already allocated 1-3
	buf := make([]byte, topo.ConfigDescriptorLen())
	if _, err := topo.ConfigDescriptorTo(buf, strings); err != nil {
		t.Fatal(err)
	}

	// One index per distinct name, shared by the interface and its jacks.
	if got := strings.Len(); got != 6 {
		t.Errorf("string table Len = %d, want 6", got)
	}
	if got := strings.Lookup(4); got != "Keys" {
		t.Errorf("Lookup(4) = %q, want %q", got, "Keys")
	}
	if got := strings.Lookup(5); got != "Pads" {
		t.Errorf("Lookup(5) = %q, want %q", got, "Pads")
	}

	// The second MS interface descriptor carries the "Pads" index.
	idx := bytes.Index(buf, []byte{0x09, 0x04, 0x02, 0x00, 0x02, 0x01, 0x03, 0x00})
	if idx < 0 {
		t.Fatal("second MS interface descriptor not found")
	}
	if got := buf[idx+8]; got != 5 {
		t.Errorf("iInterface = %d, want 5", got)
	}
}
