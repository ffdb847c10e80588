package midi

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/HLammers/usb-midi/midi/stack/mem"
	"github.com/HLammers/usb-midi/pkg"
)

func openTestDevice(t *testing.T, cfg Config) (*Device, *mem.Stack) {
	t.Helper()
	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	st := mem.New()
	if err := d.Open(st); err != nil {
		t.Fatal(err)
	}
	return d, st
}

func TestSendSharedStrategy(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 3, NumOut: 2, Strategy: StrategyShared})

	if err := d.NoteOn(1, 0, 0x3C, 0x64); err != nil {
		t.Fatalf("NoteOn: %v", err)
	}

	// All output cables share the IN endpoint; the cable travels in the
	// packet's high nibble.
	data, ok := st.CompleteIn(0x81)
	if !ok {
		t.Fatal("no transfer on shared IN endpoint")
	}
	want := []byte{0x19, 0x90, 0x3C, 0x64}
	if !bytes.Equal(data, want) {
		t.Errorf("transfer = % X, want % X", data, want)
	}
}

func TestReceiveSharedStrategy(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 3, NumOut: 2, Strategy: StrategyShared})

	var gotCable uint8
	var gotMsg []byte
	calls := 0
	if err := d.SetCableHandler(2, func(cable uint8, msg []byte) {
		gotCable = cable
		gotMsg = append([]byte(nil), msg...)
		calls++
	}); err != nil {
		t.Fatal(err)
	}

	st.CompleteOut(0x01, []byte{0x28, 0x80, 0x3C, 0x00})
	st.RunTasks()

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if gotCable != 2 {
		t.Errorf("cable = %d, want 2", gotCable)
	}
	if want := []byte{0x80, 0x3C, 0x00}; !bytes.Equal(gotMsg, want) {
		t.Errorf("msg = % X, want % X", gotMsg, want)
	}
}

func TestSendBufferFull(t *testing.T) {
	d, _ := openTestDevice(t, Config{NumIn: 1, NumOut: 1, BufferSize: 64})

	// With the host never draining, the ring holds 16 packets.
	for i := 0; i < 16; i++ {
		if err := d.NoteOn(0, 0, uint8(i), 0x40); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := d.NoteOn(0, 0, 16, 0x40); !errors.Is(err, pkg.ErrBufferFull) {
		t.Errorf("send 17 error = %v, want ErrBufferFull", err)
	}
}

func TestSendPerCableStrategy(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 2, NumOut: 2, Strategy: StrategyPerCable})

	if err := d.NoteOn(1, 0, 0x3C, 0x64); err != nil {
		t.Fatal(err)
	}

	// Cable 1's dedicated endpoint carries nibble 0.
	route, _ := d.Topology().OutRoute(1)
	data, ok := st.CompleteIn(route.Endpoint)
	if !ok {
		t.Fatalf("no transfer on endpoint %02X", route.Endpoint)
	}
	want := []byte{0x09, 0x90, 0x3C, 0x64}
	if !bytes.Equal(data, want) {
		t.Errorf("transfer = % X, want % X", data, want)
	}
	// The other cable's endpoint stays idle.
	other, _ := d.Topology().OutRoute(0)
	if st.Pending(other.Endpoint) {
		t.Error("cable 0 endpoint armed without data")
	}
}

func TestReceivePerInterfaceStrategy(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 2, NumOut: 2, Strategy: StrategyPerInterface})

	var got []uint8
	d.SetHandler(func(cable uint8, msg []byte) {
		got = append(got, cable)
	})

	// The endpoint identifies the cable; the nibble is zero on the wire.
	route, _ := d.Topology().InRoute(1)
	st.CompleteOut(route.Endpoint, []byte{0x09, 0x90, 0x3C, 0x64})
	st.RunTasks()

	if len(got) != 1 || got[0] != 1 {
		t.Errorf("dispatched cables = %v, want [1]", got)
	}
}

func TestReceiveUnknownCableDropped(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 1, NumOut: 1, Strategy: StrategyShared})

	calls := 0
	d.SetHandler(func(uint8, []byte) { calls++ })

	st.CompleteOut(0x01, []byte{
		0x59, 0x90, 0x3C, 0x64, // cable 5, not configured
		0x09, 0x90, 0x3C, 0x64,
	})
	st.RunTasks()

	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestHandlerPrecedence(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 2, NumOut: 1, Strategy: StrategyShared})

	var catchAll, specific int
	d.SetHandler(func(uint8, []byte) { catchAll++ })
	d.SetCableHandler(1, func(uint8, []byte) { specific++ })

	st.CompleteOut(0x01, []byte{
		0x09, 0x90, 0x3C, 0x64, // cable 0: catch-all
		0x19, 0x90, 0x3C, 0x64, // cable 1: specific
	})
	st.RunTasks()

	if catchAll != 1 || specific != 1 {
		t.Errorf("catchAll=%d specific=%d, want 1/1", catchAll, specific)
	}
}

func TestPacketHandler(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 1, NumOut: 1})

	var pkts []EventPacket
	d.SetPacketHandler(func(pkt EventPacket) { pkts = append(pkts, pkt) })

	st.CompleteOut(0x01, []byte{0x0F, 0xF8, 0x00, 0x00})
	st.RunTasks()

	if len(pkts) != 1 || pkts[0] != (EventPacket{0x0F, 0xF8, 0x00, 0x00}) {
		t.Errorf("packets = %v", pkts)
	}
}

func TestHandlerPanicIsolated(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 1, NumOut: 1})

	calls := 0
	d.SetHandler(func(uint8, []byte) {
		calls++
		if calls == 1 {
			panic("handler failure")
		}
	})

	st.CompleteOut(0x01, []byte{
		0x09, 0x90, 0x3C, 0x64,
		0x08, 0x80, 0x3C, 0x00,
	})
	st.RunTasks()

	if calls != 2 {
		t.Errorf("handler calls = %d, want 2 despite panic", calls)
	}
}

func TestDeviceLifecycle(t *testing.T) {
	d, err := New(Config{NumIn: 1, NumOut: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Send(0, []byte{0xF8}); !errors.Is(err, pkg.ErrNotOpen) {
		t.Errorf("Send before open error = %v, want ErrNotOpen", err)
	}
	if err := d.Close(); !errors.Is(err, pkg.ErrNotOpen) {
		t.Errorf("Close before open error = %v, want ErrNotOpen", err)
	}

	st := mem.New()
	if err := d.Open(st); err != nil {
		t.Fatal(err)
	}
	if err := d.Open(st); !errors.Is(err, pkg.ErrAlreadyOpen) {
		t.Errorf("second Open error = %v, want ErrAlreadyOpen", err)
	}
	// Open arms every receive endpoint.
	if !st.Pending(0x01) {
		t.Error("receive endpoint not armed after Open")
	}

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Send(0, []byte{0xF8}); !errors.Is(err, pkg.ErrNotOpen) {
		t.Errorf("Send after close error = %v, want ErrNotOpen", err)
	}
}

func TestConcurrentSendsLoseNothing(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 1, NumOut: 1, BufferSize: 8192})

	// Two senders race onto the shared outbound ring. The buffer holds
	// every packet, so each accepted send must surface on the wire.
	const perSender = 512
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				if err := d.NoteOn(0, uint8(g), uint8(i%128), 0x40); err != nil {
					t.Errorf("sender %d send %d: %v", g, i, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for {
		data, ok := st.CompleteIn(0x81)
		if !ok {
			break
		}
		total += len(data)
	}
	if want := 2 * perSender * 4; total != want {
		t.Errorf("drained %d bytes, want %d", total, want)
	}
}

func TestCloseStopsPumps(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 1, NumOut: 1})

	d.NoteOn(0, 0, 0x3C, 0x64)
	d.NoteOn(0, 0, 0x3D, 0x64) // queued behind the in-flight transfer
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	// Completions for transfers that were in flight at close must not
	// re-arm the endpoints.
	st.CompleteIn(0x81)
	if st.Pending(0x81) {
		t.Error("transmit pump re-armed after close")
	}
	st.CompleteOut(0x01, []byte{0x09, 0x90, 0x3C, 0x64})
	st.RunTasks()
	if st.Pending(0x01) {
		t.Error("receive pump re-armed after close")
	}
}

func TestSendInvalidCable(t *testing.T) {
	d, _ := openTestDevice(t, Config{NumIn: 1, NumOut: 2})
	if err := d.Send(2, []byte{0xF8}); !errors.Is(err, pkg.ErrInvalidCable) {
		t.Errorf("Send(2) error = %v, want ErrInvalidCable", err)
	}
	if err := d.SetCableHandler(1, func(uint8, []byte) {}); !errors.Is(err, pkg.ErrInvalidCable) {
		t.Errorf("SetCableHandler(1) error = %v, want ErrInvalidCable", err)
	}
}

func TestMessageHelpers(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 1, NumOut: 1})

	tests := []struct {
		name string
		send func() error
		want []byte
	}{
		{"note on", func() error { return d.NoteOn(0, 1, 0x40, 0x7F) }, []byte{0x09, 0x91, 0x40, 0x7F}},
		{"note off", func() error { return d.NoteOff(0, 1, 0x40, 0x00) }, []byte{0x08, 0x81, 0x40, 0x00}},
		{"control change", func() error { return d.ControlChange(0, 0, 0x07, 0x64) }, []byte{0x0B, 0xB0, 0x07, 0x64}},
		{"program change", func() error { return d.ProgramChange(0, 2, 0x05) }, []byte{0x0C, 0xC2, 0x05, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); err != nil {
				t.Fatal(err)
			}
			data, ok := st.CompleteIn(0x81)
			if !ok {
				t.Fatal("no transfer")
			}
			if !bytes.Equal(data, tt.want) {
				t.Errorf("transfer = % X, want % X", data, tt.want)
			}
		})
	}
}

func TestSendEventOverridesNibble(t *testing.T) {
	d, st := openTestDevice(t, Config{NumIn: 2, NumOut: 2, Strategy: StrategyShared})

	// The caller's nibble is replaced by the cable's route.
	pkt := EventPacket{0xF9, 0x90, 0x3C, 0x64}
	if err := d.SendEvent(1, pkt); err != nil {
		t.Fatal(err)
	}
	data, _ := st.CompleteIn(0x81)
	if want := []byte{0x19, 0x90, 0x3C, 0x64}; !bytes.Equal(data, want) {
		t.Errorf("transfer = % X, want % X", data, want)
	}
}
