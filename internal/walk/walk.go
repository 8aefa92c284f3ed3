// Package walk locates every action list in a decoded SWF file and runs the
// disassembler over each of them.
package walk

import (
	"fmt"
	"io"
	"log/slog"

	"avm1dump/internal/avm1"
	"avm1dump/internal/disasm"
	"avm1dump/internal/swf"
)

// RootLabel names the main timeline.
const RootLabel = "root_mc"

// EntryKind says where an action list came from.
type EntryKind string

const (
	KindFrame  EntryKind = "frame"
	KindInit   EntryKind = "init"
	KindButton EntryKind = "button"
)

// Entry is one action buffer and the context it belongs to.
type Entry struct {
	Kind EntryKind
	// Frame is the 1-based frame for frame and init entries.
	Frame int
	// SpriteID is the target of an init entry.
	SpriteID uint16
	// Conditions triggers a button entry.
	Conditions swf.ButtonConditions
	Data       []byte
}

// Label is the context header printed above the entry's trace.
func (e Entry) Label() string {
	switch e.Kind {
	case KindInit:
		return fmt.Sprintf("init sprite=%d", e.SpriteID)
	case KindButton:
		return fmt.Sprintf("button cond=%s", e.Conditions)
	}
	return fmt.Sprintf("frame %d", e.Frame)
}

// Section groups the entries of one timeline or button.
type Section struct {
	Label   string
	Entries []Entry
}

// Sections returns the root timeline followed by every sprite and button
// definition in tag order.
func Sections(f *swf.File) []Section {
	sections := []Section{{Label: RootLabel, Entries: timeline(f.Tags)}}
	return appendDefinitions(sections, f.Tags)
}

func appendDefinitions(sections []Section, tags []swf.Tag) []Section {
	for _, tag := range tags {
		switch t := tag.(type) {
		case *swf.DefineSprite:
			sections = append(sections, Section{
				Label:   fmt.Sprintf("sprite id=%d", t.ID),
				Entries: timeline(t.Tags),
			})
			sections = appendDefinitions(sections, t.Tags)
		case *swf.DefineButton:
			s := Section{Label: fmt.Sprintf("button id=%d", t.ID)}
			for _, a := range t.Actions {
				s.Entries = append(s.Entries, Entry{Kind: KindButton, Conditions: a.Conditions, Data: a.Data})
			}
			sections = append(sections, s)
		}
	}
	return sections
}

// timeline collects the frame action lists of one tag sequence. Frames are
// counted from 1 and advance on every ShowFrame.
func timeline(tags []swf.Tag) []Entry {
	var entries []Entry
	frame := 1
	for _, tag := range tags {
		switch t := tag.(type) {
		case swf.ShowFrame:
			frame++
		case *swf.DoAction:
			entries = append(entries, Entry{Kind: KindFrame, Frame: frame, Data: t.Data})
		case *swf.DoInitAction:
			entries = append(entries, Entry{Kind: KindInit, Frame: frame, SpriteID: t.SpriteID, Data: t.Data})
		}
	}
	return entries
}

// Decoder turns an action buffer into an instruction list.
type Decoder interface {
	Decode(data []byte, version uint8) (avm1.List, error)
}

// EntryTrace is the rendered trace of one entry.
type EntryTrace struct {
	Label string        `json:"label"`
	Lines []disasm.Line `json:"lines"`
}

// SectionTrace is the rendered traces of one section.
type SectionTrace struct {
	Label   string       `json:"label"`
	Entries []EntryTrace `json:"entries"`
}

// Result is the complete disassembly of a file.
type Result struct {
	Version  uint8          `json:"version"`
	Sections []SectionTrace `json:"sections"`
}

// Walker decodes and renders every action list of a file.
type Walker struct {
	Decoder  Decoder
	Renderer *disasm.Renderer
}

// New returns a Walker using the AVM1 decoder. Both the decoder and the
// renderer are limited to maxDepth nested functions.
func New(maxDepth int) *Walker {
	return &Walker{
		Decoder:  &avm1.Decoder{MaxDepth: maxDepth},
		Renderer: &disasm.Renderer{MaxDepth: maxDepth},
	}
}

// Run disassembles the whole file. Any failure aborts the run, so a Result
// is either complete or nil.
func (w *Walker) Run(f *swf.File) (*Result, error) {
	res := &Result{Version: f.Version}
	for _, s := range Sections(f) {
		st := SectionTrace{Label: s.Label, Entries: []EntryTrace{}}
		for _, e := range s.Entries {
			lines, err := w.Entry(e, f.Version)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", s.Label, e.Label(), err)
			}
			st.Entries = append(st.Entries, EntryTrace{Label: e.Label(), Lines: lines})
		}
		res.Sections = append(res.Sections, st)
	}
	return res, nil
}

// Entry decodes and renders one entry with an empty constant pool.
func (w *Walker) Entry(e Entry, version uint8) ([]disasm.Line, error) {
	list, err := w.Decoder.Decode(e.Data, version)
	if err != nil {
		return nil, err
	}
	slog.Debug("Decoded action list", "entry", e.Label(), "bytes", len(e.Data), "actions", len(list))
	return w.Renderer.Disassemble(list)
}

// WriteText writes the result in the plain trace format.
func (r *Result) WriteText(w io.Writer) error {
	for _, s := range r.Sections {
		if _, err := fmt.Fprintln(w, s.Label); err != nil {
			return err
		}
		for _, e := range s.Entries {
			if _, err := fmt.Fprintf(w, "  %s\n", e.Label); err != nil {
				return err
			}
			if err := disasm.WriteLines(w, e.Lines); err != nil {
				return err
			}
		}
	}
	return nil
}

// LineCount is the number of trace lines across all entries.
func (r *Result) LineCount() int {
	n := 0
	for _, s := range r.Sections {
		for _, e := range s.Entries {
			n += len(e.Lines)
		}
	}
	return n
}
