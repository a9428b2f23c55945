package audio

import (
	"encoding/binary"
	"io"
	"testing"
)

// memProducer serves a fixed number of identical frames.
type memProducer struct {
	frame  []byte
	left   int
	closed bool
}

func (p *memProducer) ReadFrame() ([]byte, error) {
	if p.left <= 0 {
		return nil, io.EOF
	}
	p.left--
	out := make([]byte, len(p.frame))
	copy(out, p.frame)
	return out, nil
}

func (p *memProducer) Close() error {
	p.closed = true
	return nil
}

func silenceFrames(n int) *memProducer {
	return &memProducer{frame: make([]byte, FrameBytes), left: n}
}

func constFrames(n int, sample int16) *memProducer {
	frame := make([]byte, FrameBytes)
	for i := 0; i+1 < len(frame); i += 2 {
		binary.LittleEndian.PutUint16(frame[i:], uint16(sample))
	}
	return &memProducer{frame: frame, left: n}
}

func sampleAt(frame []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(frame[2*i:]))
}

func TestCrossfade_SilenceStaysSilent(t *testing.T) {
	const window = 2 // seconds
	n := window * FramesPerSecond
	xf := NewCrossfade(silenceFrames(2*n), silenceFrames(2*n), window)

	frames := 0
	for {
		frame, err := xf.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		frames++
		for i := range frame {
			if frame[i] != 0 {
				t.Fatalf("non-zero byte at frame %d offset %d", frames, i)
			}
		}
	}
	if frames != 2*n {
		t.Fatalf("total frames: got %d want %d", frames, 2*n)
	}
}

func TestCrossfade_MidpointIsHalfAmplitude(t *testing.T) {
	const window = 1
	n := window * FramesPerSecond
	xf := NewCrossfade(constFrames(2*n, 32767), silenceFrames(2*n), window)

	var mid []byte
	for i := 0; i <= n/2; i++ {
		frame, err := xf.ReadFrame()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		mid = frame
	}
	got := sampleAt(mid, 0)
	want := int16(32767 / 2)
	if got < want-400 || got > want+400 {
		t.Fatalf("midpoint amplitude: got %d want ~%d", got, want)
	}
}

func TestCrossfade_RampReachesIncomingVerbatim(t *testing.T) {
	const window = 1
	n := window * FramesPerSecond
	xf := NewCrossfade(silenceFrames(3*n), constFrames(3*n, 1000), window)

	// Consume the ramp plus the boundary frame.
	var frame []byte
	var err error
	for i := 0; i <= n; i++ {
		frame, err = xf.ReadFrame()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	if got := sampleAt(frame, 0); got != 1000 {
		t.Fatalf("boundary frame not incoming verbatim: %d", got)
	}

	// Past the window: pass-through, outgoing no longer consulted.
	frame, err = xf.ReadFrame()
	if err != nil {
		t.Fatalf("pass-through read: %v", err)
	}
	if got := sampleAt(frame, 0); got != 1000 {
		t.Fatalf("pass-through frame: %d", got)
	}
}

func TestCrossfade_OutgoingEndsEarly(t *testing.T) {
	const window = 2
	xf := NewCrossfade(silenceFrames(3), constFrames(10, 500), window)

	for i := 0; i < 3; i++ {
		if _, err := xf.ReadFrame(); err != nil {
			t.Fatalf("ramp read %d: %v", i, err)
		}
	}
	// Outgoing exhausted: the ramp aborts and incoming passes through.
	frame, err := xf.ReadFrame()
	if err != nil {
		t.Fatalf("handover read: %v", err)
	}
	if got := sampleAt(frame, 0); got != 500 {
		t.Fatalf("expected incoming verbatim after early end, got %d", got)
	}
}

func TestCrossfade_CloseReleasesBothProducers(t *testing.T) {
	out := silenceFrames(1)
	in := silenceFrames(1)
	xf := NewCrossfade(out, in, 1)
	if err := xf.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !out.closed || !in.closed {
		t.Fatalf("producers not released: out=%v in=%v", out.closed, in.closed)
	}
}

func TestMixS16LE_ClampsOverflow(t *testing.T) {
	loud := make([]byte, 4)
	binary.LittleEndian.PutUint16(loud, uint16(int16(32767)))
	negFull := int16(-32768)
	binary.LittleEndian.PutUint16(loud[2:], uint16(negFull))

	mixed := MixS16LE(loud, loud, 1.0, 1.0)
	if got := sampleAt(mixed, 0); got != 32767 {
		t.Fatalf("positive clamp: %d", got)
	}
	if got := sampleAt(mixed, 1); got != -32768 {
		t.Fatalf("negative clamp: %d", got)
	}
}

func TestMixS16LE_PadsShorterInput(t *testing.T) {
	long := make([]byte, 8)
	binary.LittleEndian.PutUint16(long, uint16(int16(1000)))
	short := []byte{}

	mixed := MixS16LE(long, short, 1.0, 1.0)
	if len(mixed) != 8 {
		t.Fatalf("mixed length: %d", len(mixed))
	}
	if got := sampleAt(mixed, 0); got != 1000 {
		t.Fatalf("padded mix sample: %d", got)
	}
}
