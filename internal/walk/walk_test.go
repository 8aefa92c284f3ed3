package walk

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"avm1dump/internal/avm1"
	"avm1dump/internal/disasm"
	"avm1dump/internal/swf"
)

var (
	play = []byte{0x06, 0x00}
	stop = []byte{0x07, 0x00}
)

func sampleFile() *swf.File {
	pool := []byte{0x88, 0x04, 0x00, 0x01, 0x00, 'h', 0x00}
	push := []byte{0x96, 0x02, 0x00, 0x08, 0x00}
	frameOne := append(append(append([]byte{}, pool...), push...), 0x00)

	return &swf.File{
		Header: swf.Header{Version: 8},
		Tags: []swf.Tag{
			&swf.DoAction{Data: frameOne},
			swf.ShowFrame{},
			swf.ShowFrame{},
			&swf.DoAction{Data: stop},
			&swf.DefineSprite{ID: 3, Tags: []swf.Tag{
				swf.ShowFrame{},
				&swf.DoAction{Data: play},
			}},
			&swf.DoInitAction{SpriteID: 3, Data: play},
			&swf.DefineButton{ID: 5, Version: 2, Actions: []swf.ButtonAction{
				{Conditions: swf.CondOverDownToOverUp, Data: stop},
				{Conditions: swf.CondIdleToOverUp, Data: play},
			}},
			&swf.Unknown{TagCode: 9},
		},
	}
}

func TestSections(t *testing.T) {
	sections := Sections(sampleFile())

	var labels [][]string
	for _, s := range sections {
		row := []string{s.Label}
		for _, e := range s.Entries {
			row = append(row, e.Label())
		}
		labels = append(labels, row)
	}
	want := [][]string{
		{"root_mc", "frame 1", "frame 3", "init sprite=3"},
		{"sprite id=3", "frame 2"},
		{"button id=5", "button cond=[OverDownToOverUp]", "button cond=[IdleToOverUp]"},
	}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("unexpected sections\nwant: %q\ngot:  %q", want, labels)
	}
}

func TestRunText(t *testing.T) {
	res, err := New(avm1.DefaultMaxDepth).Run(sampleFile())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	var buf bytes.Buffer
	if err := res.WriteText(&buf); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	want := `root_mc
  frame 1
    0: ConstantPool
    1: Push ["h"]
    2: End
  frame 3
    0: Stop
    1: End
  init sprite=3
    0: Play
    1: End
sprite id=3
  frame 2
    0: Play
    1: End
button id=5
  button cond=[OverDownToOverUp]
    0: Stop
    1: End
  button cond=[IdleToOverUp]
    0: Play
    1: End
`
	if buf.String() != want {
		t.Errorf("unexpected output\nwant:\n%s\ngot:\n%s", want, buf.String())
	}
	if res.LineCount() != 13 {
		t.Errorf("expected 13 lines, got %d", res.LineCount())
	}
}

func TestRunEmptyDefinitions(t *testing.T) {
	f := &swf.File{Tags: []swf.Tag{
		&swf.DefineSprite{ID: 1},
		&swf.DefineButton{ID: 2, Version: 2},
	}}
	res, err := New(0).Run(f)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	var buf bytes.Buffer
	if err := res.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	if want := "root_mc\nsprite id=1\nbutton id=2\n"; buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestRunFreshPoolPerEntry(t *testing.T) {
	pool := []byte{0x88, 0x04, 0x00, 0x01, 0x00, 'h', 0x00}
	push := []byte{0x96, 0x02, 0x00, 0x08, 0x00}
	f := &swf.File{Tags: []swf.Tag{
		&swf.DoAction{Data: pool},
		&swf.DoAction{Data: push},
	}}
	_, err := New(0).Run(f)
	if !errors.Is(err, disasm.ErrPoolIndex) {
		t.Fatalf("expected ErrPoolIndex, got %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		check func(error) bool
	}{
		{"decode failure", []byte{0x96, 0x09, 0x00}, func(err error) bool {
			var de *avm1.DecodeError
			return errors.As(err, &de)
		}},
		{"bad branch", []byte{0x99, 0x02, 0x00, 0x02, 0x00, 0x06}, func(err error) bool {
			return errors.Is(err, disasm.ErrBranchTarget)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &swf.File{Tags: []swf.Tag{
				&swf.DoAction{Data: play},
				&swf.DefineSprite{ID: 4, Tags: []swf.Tag{&swf.DoAction{Data: tt.data}}},
			}}
			res, err := New(0).Run(f)
			if res != nil {
				t.Error("a failed run must not return partial output")
			}
			if !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

type recordingDecoder struct {
	versions []uint8
}

func (d *recordingDecoder) Decode(data []byte, version uint8) (avm1.List, error) {
	d.versions = append(d.versions, version)
	return avm1.List{{Action: &avm1.Simple{Op: avm1.OpPlay}, Size: len(data)}}, nil
}

func TestRunUsesDecoder(t *testing.T) {
	dec := &recordingDecoder{}
	w := &Walker{Decoder: dec, Renderer: disasm.NewRenderer()}
	f := sampleFile()
	f.Version = 5
	if _, err := w.Run(f); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !reflect.DeepEqual(dec.versions, []uint8{5, 5, 5, 5, 5, 5}) {
		t.Errorf("unexpected decode calls %v", dec.versions)
	}
}
