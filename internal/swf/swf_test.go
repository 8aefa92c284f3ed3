package swf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"reflect"
	"strings"
	"testing"

	"github.com/ulikunitz/xz/lzma"
)

func le16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }

func tag(code TagCode, body []byte) []byte {
	if len(body) < 0x3f {
		return append(le16(uint16(code)<<6|uint16(len(body))), body...)
	}
	out := le16(uint16(code)<<6 | 0x3f)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...)
}

// bitWriter packs fields MSB first.
type bitWriter struct {
	out []byte
	n   uint
}

func (w *bitWriter) write(v uint32, count uint) {
	for i := int(count) - 1; i >= 0; i-- {
		if w.n%8 == 0 {
			w.out = append(w.out, 0)
		}
		if v>>uint(i)&1 != 0 {
			w.out[len(w.out)-1] |= 1 << (7 - w.n%8)
		}
		w.n++
	}
}

func rectBytes(r Rect, nbits uint) []byte {
	w := &bitWriter{}
	w.write(uint32(nbits), 5)
	for _, v := range []int32{r.XMin, r.XMax, r.YMin, r.YMax} {
		w.write(uint32(v), nbits)
	}
	return w.out
}

func body(frameSize Rect, tags ...[]byte) []byte {
	out := rectBytes(frameSize, 16)
	out = append(out, le16(24<<8)...)
	out = append(out, le16(3)...)
	for _, t := range tags {
		out = append(out, t...)
	}
	return append(out, tag(TagEnd, nil)...)
}

func fileBytes(sig string, version uint8, b []byte, packed []byte) []byte {
	out := []byte(sig)
	out = append(out, version)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b)+8))
	return append(out, packed...)
}

func sampleBody() []byte {
	sprite := append(le16(5), le16(2)...)
	sprite = append(sprite, tag(TagDoAction, []byte{0x06, 0x00})...)
	sprite = append(sprite, tag(TagShowFrame, nil)...)
	sprite = append(sprite, tag(TagEnd, nil)...)

	// DefineButton with one record: flags, char id, depth, empty matrix.
	button := append(le16(7), 0x08)
	button = append(button, le16(1)...)
	button = append(button, le16(1)...)
	button = append(button, 0x00) // matrix: no scale, no rotate, 0 translate bits
	button = append(button, 0x00) // end of records
	button = append(button, 0x07, 0x00)

	// DefineButton2 with one record, then two condition actions.
	records := []byte{0x08, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00}
	button2 := append(le16(9), 0x01)
	button2 = append(button2, le16(uint16(2+len(records)))...)
	button2 = append(button2, records...)
	first := []byte{0x06, 0x00}
	button2 = append(button2, le16(uint16(4+len(first)))...)
	button2 = append(button2, le16(uint16(CondOverDownToOverUp))...)
	button2 = append(button2, first...)
	button2 = append(button2, le16(0)...)
	button2 = append(button2, le16(uint16(CondIdleToOverUp)|13<<9)...)
	button2 = append(button2, 0x07, 0x00)

	initTag := append(le16(5), 0x06, 0x00)
	long := bytes.Repeat([]byte{0x17}, 80)
	long = append(long, 0x00)

	return body(Rect{XMax: 11000, YMax: 8000},
		tag(TagDoAction, []byte{0x07, 0x00}),
		tag(TagShowFrame, nil),
		tag(TagDefineSprite, sprite),
		tag(TagDoInitAction, initTag),
		tag(TagDefineButton, button),
		tag(TagDefineButton2, button2),
		tag(TagCode(9), []byte{0xff, 0xff, 0xff}),
		tag(TagDoAction, long),
		tag(TagShowFrame, nil),
	)
}

func checkSample(t *testing.T, f *File) {
	t.Helper()
	if f.Version != 8 {
		t.Errorf("expected version 8, got %d", f.Version)
	}
	if f.FrameSize != (Rect{XMax: 11000, YMax: 8000}) {
		t.Errorf("unexpected frame size %+v", f.FrameSize)
	}
	if f.FrameRate != 24 || f.FrameCount != 3 {
		t.Errorf("unexpected rate %v or count %d", f.FrameRate, f.FrameCount)
	}

	var codes []TagCode
	for _, tg := range f.Tags {
		codes = append(codes, tg.Code())
	}
	wantCodes := []TagCode{TagDoAction, TagShowFrame, TagDefineSprite, TagDoInitAction,
		TagDefineButton, TagDefineButton2, 9, TagDoAction, TagShowFrame}
	if !reflect.DeepEqual(codes, wantCodes) {
		t.Fatalf("unexpected tag codes %v", codes)
	}

	sprite := f.Tags[2].(*DefineSprite)
	if sprite.ID != 5 || sprite.FrameCount != 2 || len(sprite.Tags) != 2 {
		t.Errorf("unexpected sprite %+v", sprite)
	}
	if ia := f.Tags[3].(*DoInitAction); ia.SpriteID != 5 || !bytes.Equal(ia.Data, []byte{0x06, 0x00}) {
		t.Errorf("unexpected init action %+v", ia)
	}

	b1 := f.Tags[4].(*DefineButton)
	if b1.ID != 7 || len(b1.Actions) != 1 || b1.Actions[0].Conditions != CondOverDownToOverUp {
		t.Errorf("unexpected button %+v", b1)
	}
	if !bytes.Equal(b1.Actions[0].Data, []byte{0x07, 0x00}) {
		t.Errorf("unexpected button actions % x", b1.Actions[0].Data)
	}

	b2 := f.Tags[5].(*DefineButton)
	if b2.ID != 9 || !b2.TrackAsMenu || len(b2.Actions) != 2 {
		t.Fatalf("unexpected button2 %+v", b2)
	}
	if !bytes.Equal(b2.Actions[0].Data, []byte{0x06, 0x00}) || !bytes.Equal(b2.Actions[1].Data, []byte{0x07, 0x00}) {
		t.Errorf("unexpected button2 actions %+v", b2.Actions)
	}
	if b2.Actions[1].Conditions.KeyCode() != 13 {
		t.Errorf("expected key code 13, got %d", b2.Actions[1].Conditions.KeyCode())
	}

	if long := f.Tags[7].(*DoAction); len(long.Data) != 81 {
		t.Errorf("expected 81 byte long tag, got %d", len(long.Data))
	}
}

func TestParseUncompressed(t *testing.T) {
	b := sampleBody()
	f, err := Parse(fileBytes("FWS", 8, b, b))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if f.Compression != CompressionNone {
		t.Errorf("expected no compression, got %s", f.Compression)
	}
	checkSample(t, f)
}

func TestParseZlib(t *testing.T) {
	b := sampleBody()
	var packed bytes.Buffer
	zw := zlib.NewWriter(&packed)
	if _, err := zw.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := Read(bytes.NewReader(fileBytes("CWS", 8, b, packed.Bytes())))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if f.Compression != CompressionZlib {
		t.Errorf("expected zlib, got %s", f.Compression)
	}
	checkSample(t, f)
}

func TestParseLZMA(t *testing.T) {
	b := sampleBody()
	var classic bytes.Buffer
	cfg := lzma.WriterConfig{SizeInHeader: true, Size: int64(len(b))}
	lw, err := cfg.NewWriter(&classic)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lw.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := lw.Close(); err != nil {
		t.Fatal(err)
	}

	// Classic header is 5 property bytes and an 8-byte size.
	raw := classic.Bytes()
	packed := binary.LittleEndian.AppendUint32(nil, uint32(len(raw)-13))
	packed = append(packed, raw[:5]...)
	packed = append(packed, raw[13:]...)

	f, err := Parse(fileBytes("ZWS", 8, b, packed))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if f.Compression != CompressionLZMA {
		t.Errorf("expected lzma, got %s", f.Compression)
	}
	checkSample(t, f)
}

func TestParseErrors(t *testing.T) {
	good := body(Rect{})
	truncated := body(Rect{}, le16(uint16(TagDoAction)<<6|10))
	truncated = truncated[:len(truncated)-2]

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"short header", []byte("FWS"), "too short"},
		{"bad signature", fileBytes("XYZ", 8, good, good), "invalid swf signature"},
		{"tag past end", fileBytes("FWS", 8, truncated, truncated), "exceeds data"},
		{"bad zlib", fileBytes("CWS", 8, good, []byte{1, 2, 3}), "zlib"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestButtonConditionsString(t *testing.T) {
	tests := []struct {
		cond ButtonConditions
		want string
	}{
		{CondOverDownToOverUp, "[OverDownToOverUp]"},
		{CondIdleToOverUp | CondOverDownToIdle, "[IdleToOverUp OverDownToIdle]"},
		{ButtonConditions(32 << 9), "[KeyPress(32)]"},
		{0, "[]"},
	}
	for _, tt := range tests {
		if got := tt.cond.String(); got != tt.want {
			t.Errorf("%#x: expected %q, got %q", uint16(tt.cond), tt.want, got)
		}
	}
}

func TestTagCodeString(t *testing.T) {
	for code, want := range map[TagCode]string{TagDoAction: "DoAction", TagDefineButton2: "DefineButton2", 9: "Tag(9)"} {
		if got := code.String(); got != want {
			t.Errorf("%d: expected %q, got %q", uint16(code), want, got)
		}
	}
}
