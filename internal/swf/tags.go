package swf

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// TagCode is the numeric tag type.
type TagCode uint16

const (
	TagEnd           TagCode = 0
	TagShowFrame     TagCode = 1
	TagDefineButton  TagCode = 7
	TagDoAction      TagCode = 12
	TagDefineButton2 TagCode = 34
	TagDefineSprite  TagCode = 39
	TagDoInitAction  TagCode = 59
)

var tagNames = map[TagCode]string{
	TagEnd:           "End",
	TagShowFrame:     "ShowFrame",
	TagDefineButton:  "DefineButton",
	TagDoAction:      "DoAction",
	TagDefineButton2: "DefineButton2",
	TagDefineSprite:  "DefineSprite",
	TagDoInitAction:  "DoInitAction",
}

func (c TagCode) String() string {
	if name, ok := tagNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", uint16(c))
}

// maxSpriteDepth bounds DefineSprite nesting. Players reject nested sprites
// entirely, but the reader tolerates a few levels.
const maxSpriteDepth = 8

// Tag is one decoded SWF tag.
type Tag interface {
	Code() TagCode
}

type ShowFrame struct{}

// DoAction carries a frame action buffer.
type DoAction struct {
	Data []byte
}

// DoInitAction carries the one-time initialization actions of a sprite.
type DoInitAction struct {
	SpriteID uint16
	Data     []byte
}

// DefineSprite is a nested timeline.
type DefineSprite struct {
	ID         uint16
	FrameCount uint16
	Tags       []Tag
}

// DefineButton covers both DefineButton and DefineButton2.
type DefineButton struct {
	ID          uint16
	Version     int
	TrackAsMenu bool
	Actions     []ButtonAction
}

// ButtonAction is an action buffer run when any of its conditions occur.
type ButtonAction struct {
	Conditions ButtonConditions
	Data       []byte
}

// Unknown is any tag this package does not interpret.
type Unknown struct {
	TagCode TagCode
	Data    []byte
}

func (ShowFrame) Code() TagCode       { return TagShowFrame }
func (*DoAction) Code() TagCode       { return TagDoAction }
func (*DoInitAction) Code() TagCode   { return TagDoInitAction }
func (*DefineSprite) Code() TagCode   { return TagDefineSprite }
func (u *Unknown) Code() TagCode      { return u.TagCode }
func (b *DefineButton) Code() TagCode {
	if b.Version == 2 {
		return TagDefineButton2
	}
	return TagDefineButton
}

// ButtonConditions is the BUTTONCONDACTION condition word: state
// transitions in the low nine bits and a key code in the top seven.
type ButtonConditions uint16

const (
	CondIdleToOverUp      ButtonConditions = 0x0001
	CondOverUpToIdle      ButtonConditions = 0x0002
	CondOverUpToOverDown  ButtonConditions = 0x0004
	CondOverDownToOverUp  ButtonConditions = 0x0008
	CondOverDownToOutDown ButtonConditions = 0x0010
	CondOutDownToOverDown ButtonConditions = 0x0020
	CondOutDownToIdle     ButtonConditions = 0x0040
	CondIdleToOverDown    ButtonConditions = 0x0080
	CondOverDownToIdle    ButtonConditions = 0x0100
)

var conditionNames = []struct {
	cond ButtonConditions
	name string
}{
	{CondIdleToOverUp, "IdleToOverUp"},
	{CondOverUpToIdle, "OverUpToIdle"},
	{CondOverUpToOverDown, "OverUpToOverDown"},
	{CondOverDownToOverUp, "OverDownToOverUp"},
	{CondOverDownToOutDown, "OverDownToOutDown"},
	{CondOutDownToOverDown, "OutDownToOverDown"},
	{CondOutDownToIdle, "OutDownToIdle"},
	{CondIdleToOverDown, "IdleToOverDown"},
	{CondOverDownToIdle, "OverDownToIdle"},
}

// KeyCode returns the key press code, or 0 if none is set.
func (c ButtonConditions) KeyCode() uint8 {
	return uint8(c >> 9)
}

func (c ButtonConditions) String() string {
	var names []string
	for _, cn := range conditionNames {
		if c&cn.cond != 0 {
			names = append(names, cn.name)
		}
	}
	if key := c.KeyCode(); key != 0 {
		names = append(names, fmt.Sprintf("KeyPress(%d)", key))
	}
	return "[" + strings.Join(names, " ") + "]"
}

func readTags(r *byteReader, depth int) ([]Tag, error) {
	if depth > maxSpriteDepth {
		return nil, fmt.Errorf("sprites nested deeper than %d", maxSpriteDepth)
	}
	var tags []Tag
	for r.remaining() > 0 {
		start := r.pos
		code, body, err := r.tagHeader()
		if err != nil {
			return nil, fmt.Errorf("failed to read tag header at offset %d: %w", start, err)
		}
		if code == TagEnd {
			break
		}
		tag, err := parseTag(code, body, depth)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tag %d at offset %d: %w", code, start, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func parseTag(code TagCode, body []byte, depth int) (Tag, error) {
	r := &byteReader{data: body}
	switch code {
	case TagShowFrame:
		return ShowFrame{}, nil

	case TagDoAction:
		return &DoAction{Data: body}, nil

	case TagDoInitAction:
		id, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("failed to read sprite id: %w", err)
		}
		return &DoInitAction{SpriteID: id, Data: r.rest()}, nil

	case TagDefineSprite:
		id, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("failed to read sprite id: %w", err)
		}
		frames, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("failed to read sprite frame count: %w", err)
		}
		tags, err := readTags(r, depth+1)
		if err != nil {
			return nil, fmt.Errorf("sprite %d: %w", id, err)
		}
		return &DefineSprite{ID: id, FrameCount: frames, Tags: tags}, nil

	case TagDefineButton:
		return parseButton(r)

	case TagDefineButton2:
		return parseButton2(r)
	}
	return &Unknown{TagCode: code, Data: body}, nil
}

// parseButton reads a DefineButton tag. Its single action list runs on
// release, which is the OverDownToOverUp transition.
func parseButton(r *byteReader) (*DefineButton, error) {
	id, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("failed to read button id: %w", err)
	}
	for {
		flags, err := r.u8()
		if err != nil {
			return nil, fmt.Errorf("failed to read button record: %w", err)
		}
		if flags == 0 {
			break
		}
		// character id, depth
		if err := r.skip(4); err != nil {
			return nil, fmt.Errorf("failed to read button record: %w", err)
		}
		if err := r.matrix(); err != nil {
			return nil, fmt.Errorf("failed to read button record matrix: %w", err)
		}
	}
	return &DefineButton{
		ID:      id,
		Version: 1,
		Actions: []ButtonAction{{Conditions: CondOverDownToOverUp, Data: r.rest()}},
	}, nil
}

func parseButton2(r *byteReader) (*DefineButton, error) {
	id, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("failed to read button id: %w", err)
	}
	flags, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("failed to read button flags: %w", err)
	}
	offsetPos := r.pos
	actionOffset, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("failed to read action offset: %w", err)
	}
	b := &DefineButton{ID: id, Version: 2, TrackAsMenu: flags&0x01 != 0}
	if actionOffset == 0 {
		return b, nil
	}

	// The action offset counts from its own field and skips the records.
	r.pos = offsetPos
	if err := r.skip(int(actionOffset)); err != nil {
		return nil, fmt.Errorf("action offset %d past end of tag: %w", actionOffset, err)
	}
	for {
		start := r.pos
		size, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("failed to read condition action size: %w", err)
		}
		cond, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("failed to read conditions: %w", err)
		}
		var data []byte
		if size == 0 {
			data = r.rest()
		} else {
			n := int(size) - (r.pos - start)
			if n < 0 || n > r.remaining() {
				return nil, fmt.Errorf("condition action size %d out of range: %w", size, io.ErrUnexpectedEOF)
			}
			data = r.data[r.pos : r.pos+n]
			r.pos += n
		}
		b.Actions = append(b.Actions, ButtonAction{Conditions: ButtonConditions(cond), Data: data})
		if size == 0 {
			break
		}
	}
	return b, nil
}

// byteReader is a little-endian cursor over tag data with bit-field support.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) remaining() int { return len(r.data) - r.pos }

func (r *byteReader) skip(n int) error {
	if n < 0 || r.remaining() < n {
		return io.ErrUnexpectedEOF
	}
	r.pos += n
	return nil
}

func (r *byteReader) rest() []byte {
	b := r.data[r.pos:]
	r.pos = len(r.data)
	return b
}

func (r *byteReader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, io.ErrUnexpectedEOF
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) tagHeader() (TagCode, []byte, error) {
	v, err := r.u16()
	if err != nil {
		return 0, nil, err
	}
	code := TagCode(v >> 6)
	length := uint32(v & 0x3f)
	if length == 0x3f {
		if length, err = r.u32(); err != nil {
			return 0, nil, fmt.Errorf("failed to read long tag length: %w", err)
		}
	}
	if uint64(length) > uint64(r.remaining()) {
		return 0, nil, fmt.Errorf("tag %d length %d exceeds data: %w", code, length, io.ErrUnexpectedEOF)
	}
	body := r.data[r.pos : r.pos+int(length)]
	r.pos += int(length)
	return code, body, nil
}

// bits reads bit-packed fields MSB first starting at the current byte. The
// reader is left byte aligned after the last field.
type bits struct {
	r   *byteReader
	cur uint8
	n   uint
}

func (b *bits) ub(count uint) (uint32, error) {
	var v uint32
	for i := uint(0); i < count; i++ {
		if b.n == 0 {
			c, err := b.r.u8()
			if err != nil {
				return 0, err
			}
			b.cur, b.n = c, 8
		}
		b.n--
		v = v<<1 | uint32(b.cur>>b.n&1)
	}
	return v, nil
}

func (b *bits) sb(count uint) (int32, error) {
	v, err := b.ub(count)
	if err != nil || count == 0 {
		return 0, err
	}
	// Sign extend from the top bit of the field.
	shift := 32 - count
	return int32(v<<shift) >> shift, nil
}

func (r *byteReader) rect() (Rect, error) {
	b := &bits{r: r}
	n, err := b.ub(5)
	if err != nil {
		return Rect{}, err
	}
	var vals [4]int32
	for i := range vals {
		if vals[i], err = b.sb(uint(n)); err != nil {
			return Rect{}, err
		}
	}
	return Rect{XMin: vals[0], XMax: vals[1], YMin: vals[2], YMax: vals[3]}, nil
}

// matrix skips a MATRIX record.
func (r *byteReader) matrix() error {
	b := &bits{r: r}
	for _, optional := range []bool{true, true, false} {
		if optional {
			has, err := b.ub(1)
			if err != nil {
				return err
			}
			if has == 0 {
				continue
			}
		}
		n, err := b.ub(5)
		if err != nil {
			return err
		}
		if _, err := b.ub(2 * uint(n)); err != nil {
			return err
		}
	}
	return nil
}
