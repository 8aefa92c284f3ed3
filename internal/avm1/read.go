package avm1

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxDepth bounds how deeply function bodies may nest.
const DefaultMaxDepth = 64

// ErrNestingLimit is returned when function bodies nest deeper than allowed.
var ErrNestingLimit = errors.New("nesting limit exceeded")

// DecodeError reports a buffer that could not be decoded into actions.
// Offset is relative to the start of the buffer handed to Decode.
type DecodeError struct {
	Offset int
	Op     Opcode
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("avm1: failed to decode %s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder turns action buffers into instruction lists.
type Decoder struct {
	// MaxDepth limits function nesting; 0 uses DefaultMaxDepth.
	MaxDepth int
}

// NewDecoder returns a Decoder with the default nesting limit.
func NewDecoder() *Decoder {
	return &Decoder{MaxDepth: DefaultMaxDepth}
}

func (d *Decoder) maxDepth() int {
	if d.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return d.MaxDepth
}

// Decode decodes data as an action list for the given SWF version. Decoding
// stops after an End action or when data is exhausted.
func (d *Decoder) Decode(data []byte, version uint8) (List, error) {
	r := &reader{data: data, version: version}
	list, err := d.readList(r, len(data), 0)
	if err != nil {
		return nil, err
	}
	if r.pos < len(data) {
		slog.Debug("Ignoring bytes after End action", "offset", r.pos, "trailing", len(data)-r.pos)
	}
	return list, nil
}

// readList decodes actions from r until end or an End action.
func (d *Decoder) readList(r *reader, end int, depth int) (List, error) {
	if depth > d.maxDepth() {
		return nil, fmt.Errorf("%w: function bodies nested deeper than %d", ErrNestingLimit, d.maxDepth())
	}
	var list List
	for r.pos < end {
		start := r.pos
		action, err := d.readAction(r, end, depth)
		if err != nil {
			return nil, err
		}
		list = append(list, Record{Action: action, Size: r.pos - start})
		if action.Opcode() == OpEnd {
			break
		}
	}
	return list, nil
}

func (d *Decoder) readAction(r *reader, end int, depth int) (Action, error) {
	start := r.pos
	code, err := r.u8()
	if err != nil {
		return nil, &DecodeError{Offset: start, Err: err}
	}
	op := Opcode(code)
	if !op.HasPayload() {
		if _, known := opcodeNames[op]; !known {
			return &Unknown{Op: op}, nil
		}
		return &Simple{Op: op}, nil
	}

	length, err := r.u16()
	if err != nil {
		return nil, &DecodeError{Offset: start, Op: op, Err: fmt.Errorf("failed to read length: %w", err)}
	}
	if r.pos+int(length) > end {
		return nil, &DecodeError{Offset: start, Op: op,
			Err: fmt.Errorf("payload length %d exceeds buffer: %w", length, io.ErrUnexpectedEOF)}
	}
	payload := r.sub(int(length))

	action, err := d.readPayload(op, payload)
	if err != nil {
		return nil, &DecodeError{Offset: start, Op: op, Err: err}
	}

	// Function bodies follow the record in the enclosing stream.
	switch fn := action.(type) {
	case *DefineFunction:
		body, err := d.readBody(r, end, depth, payload.codeSize)
		if err != nil {
			return nil, wrapBodyError(err, start, op)
		}
		fn.Body = body
	case *DefineFunction2:
		body, err := d.readBody(r, end, depth, payload.codeSize)
		if err != nil {
			return nil, wrapBodyError(err, start, op)
		}
		fn.Body = body
	}
	return action, nil
}

func wrapBodyError(err error, start int, op Opcode) error {
	var de *DecodeError
	if errors.As(err, &de) || errors.Is(err, ErrNestingLimit) {
		return err
	}
	return &DecodeError{Offset: start, Op: op, Err: err}
}

func (d *Decoder) readBody(r *reader, end int, depth int, codeSize uint16) (List, error) {
	bodyEnd := r.pos + int(codeSize)
	if bodyEnd > end {
		return nil, fmt.Errorf("function body of %d bytes exceeds buffer: %w", codeSize, io.ErrUnexpectedEOF)
	}
	// Body offsets are relative to the body, so decode from a fresh reader.
	base := r.pos
	br := &reader{data: r.data[base:bodyEnd], version: r.version}
	body, err := d.readList(br, len(br.data), depth+1)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Offset += base
		}
		return nil, err
	}
	r.pos = bodyEnd
	return body, nil
}

func (d *Decoder) readPayload(op Opcode, p *reader) (Action, error) {
	switch op {
	case OpConstantPool:
		count, err := p.u16()
		if err != nil {
			return nil, fmt.Errorf("failed to read pool size: %w", err)
		}
		pool := make([]string, 0, count)
		for i := 0; i < int(count); i++ {
			s, err := p.cstring()
			if err != nil {
				return nil, fmt.Errorf("failed to read pool entry %d: %w", i, err)
			}
			pool = append(pool, s)
		}
		return &ConstantPool{Strings: pool}, nil

	case OpPush:
		var values []Value
		for p.remaining() > 0 {
			v, err := p.value()
			if err != nil {
				return nil, fmt.Errorf("failed to read push value %d: %w", len(values), err)
			}
			values = append(values, v)
		}
		return &Push{Values: values}, nil

	case OpIf, OpJump:
		offset, err := p.i16()
		if err != nil {
			return nil, fmt.Errorf("failed to read branch offset: %w", err)
		}
		if op == OpIf {
			return &If{Offset: offset}, nil
		}
		return &Jump{Offset: offset}, nil

	case OpDefineFunction:
		return p.defineFunction()

	case OpDefineFunction2:
		return p.defineFunction2()

	case OpGotoFrame:
		frame, err := p.u16()
		if err != nil {
			return nil, err
		}
		return &GotoFrame{Frame: frame}, nil

	case OpGetURL:
		url, err := p.cstring()
		if err != nil {
			return nil, fmt.Errorf("failed to read url: %w", err)
		}
		target, err := p.cstring()
		if err != nil {
			return nil, fmt.Errorf("failed to read target: %w", err)
		}
		return &GetURL{URL: url, Target: target}, nil

	case OpStoreRegister:
		reg, err := p.u8()
		if err != nil {
			return nil, err
		}
		return &StoreRegister{Register: reg}, nil

	case OpWaitForFrame:
		frame, err := p.u16()
		if err != nil {
			return nil, err
		}
		skip, err := p.u8()
		if err != nil {
			return nil, err
		}
		return &WaitForFrame{Frame: frame, SkipCount: skip}, nil

	case OpSetTarget:
		target, err := p.cstring()
		if err != nil {
			return nil, err
		}
		return &SetTarget{Target: target}, nil

	case OpGotoLabel:
		label, err := p.cstring()
		if err != nil {
			return nil, err
		}
		return &GotoLabel{Label: label}, nil

	case OpWaitForFrame2:
		skip, err := p.u8()
		if err != nil {
			return nil, err
		}
		return &WaitForFrame2{SkipCount: skip}, nil

	case OpTry:
		return p.try()

	case OpWith:
		size, err := p.u16()
		if err != nil {
			return nil, err
		}
		return &With{Size: size}, nil

	case OpGetURL2:
		flags, err := p.u8()
		if err != nil {
			return nil, err
		}
		return &GetURL2{Flags: flags}, nil

	case OpGotoFrame2:
		flags, err := p.u8()
		if err != nil {
			return nil, err
		}
		g := &GotoFrame2{Play: flags&0x01 != 0}
		if flags&0x02 != 0 {
			bias, err := p.u16()
			if err != nil {
				return nil, fmt.Errorf("failed to read scene bias: %w", err)
			}
			g.SceneBias, g.HasBias = bias, true
		}
		return g, nil

	case OpCall:
		return &Simple{Op: op}, nil
	}
	return &Unknown{Op: op, Data: p.rest()}, nil
}

// reader is a little-endian cursor over an action buffer.
type reader struct {
	data    []byte
	pos     int
	version uint8

	// codeSize is set by defineFunction/defineFunction2 on payload readers.
	codeSize uint16
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// sub returns a reader over the next n bytes and advances past them.
func (r *reader) sub(n int) *reader {
	s := &reader{data: r.data[r.pos : r.pos+n], version: r.version}
	r.pos += n
	return s
}

func (r *reader) rest() []byte {
	b := r.data[r.pos:]
	r.pos = len(r.data)
	return b
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) i16() (int16, error) {
	v, err := r.u16()
	return int16(v), err
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// cstring reads a NUL-terminated string. SWF 5 and earlier store strings in
// the player's locale, which is read as Windows-1252.
func (r *reader) cstring() (string, error) {
	for i := r.pos; i < len(r.data); i++ {
		if r.data[i] != 0 {
			continue
		}
		raw := r.data[r.pos:i]
		r.pos = i + 1
		if r.version < 6 {
			decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
			if err != nil {
				return "", fmt.Errorf("failed to decode string: %w", err)
			}
			return string(decoded), nil
		}
		return string(raw), nil
	}
	return "", fmt.Errorf("unterminated string: %w", io.ErrUnexpectedEOF)
}

func (r *reader) value() (Value, error) {
	kind, err := r.u8()
	if err != nil {
		return Value{}, err
	}
	v := Value{Kind: ValueKind(kind)}
	switch v.Kind {
	case ValueString:
		v.Str, err = r.cstring()
	case ValueFloat:
		var bits uint32
		bits, err = r.u32()
		v.Float = float64(math.Float32frombits(bits))
	case ValueNull, ValueUndefined:
	case ValueRegister:
		v.Register, err = r.u8()
	case ValueBool:
		var b uint8
		b, err = r.u8()
		v.Bool = b != 0
	case ValueDouble:
		// Doubles are stored as two little-endian words, high word first.
		var hi, lo uint32
		if hi, err = r.u32(); err == nil {
			lo, err = r.u32()
		}
		v.Float = math.Float64frombits(uint64(hi)<<32 | uint64(lo))
	case ValueInt:
		var i uint32
		i, err = r.u32()
		v.Int = int32(i)
	case ValueConstant8:
		var c uint8
		c, err = r.u8()
		v.Constant = uint16(c)
	case ValueConstant16:
		v.Constant, err = r.u16()
	default:
		return Value{}, fmt.Errorf("unknown value type %d", kind)
	}
	return v, err
}

func (r *reader) defineFunction() (*DefineFunction, error) {
	name, err := r.cstring()
	if err != nil {
		return nil, fmt.Errorf("failed to read function name: %w", err)
	}
	count, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("failed to read param count: %w", err)
	}
	fn := &DefineFunction{Name: name, Params: make([]string, 0, count)}
	for i := 0; i < int(count); i++ {
		param, err := r.cstring()
		if err != nil {
			return nil, fmt.Errorf("failed to read param %d: %w", i, err)
		}
		fn.Params = append(fn.Params, param)
	}
	if r.codeSize, err = r.u16(); err != nil {
		return nil, fmt.Errorf("failed to read code size: %w", err)
	}
	return fn, nil
}

func (r *reader) defineFunction2() (*DefineFunction2, error) {
	name, err := r.cstring()
	if err != nil {
		return nil, fmt.Errorf("failed to read function name: %w", err)
	}
	count, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("failed to read param count: %w", err)
	}
	regs, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("failed to read register count: %w", err)
	}
	flags, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	fn := &DefineFunction2{
		Name:          name,
		RegisterCount: regs,
		Flags:         Function2Flags(flags),
		Params:        make([]FunctionParam, 0, count),
	}
	for i := 0; i < int(count); i++ {
		reg, err := r.u8()
		if err != nil {
			return nil, fmt.Errorf("failed to read param %d register: %w", i, err)
		}
		pname, err := r.cstring()
		if err != nil {
			return nil, fmt.Errorf("failed to read param %d name: %w", i, err)
		}
		fn.Params = append(fn.Params, FunctionParam{Name: pname, Register: reg})
	}
	if r.codeSize, err = r.u16(); err != nil {
		return nil, fmt.Errorf("failed to read code size: %w", err)
	}
	return fn, nil
}

func (r *reader) try() (*Try, error) {
	flags, err := r.u8()
	if err != nil {
		return nil, err
	}
	t := &Try{Flags: flags}
	for _, dst := range []*uint16{&t.TrySize, &t.CatchSize, &t.FinallySize} {
		if *dst, err = r.u16(); err != nil {
			return nil, fmt.Errorf("failed to read block size: %w", err)
		}
	}
	if t.CatchInRegister() {
		t.CatchRegister, err = r.u8()
	} else {
		t.CatchName, err = r.cstring()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catch target: %w", err)
	}
	return t, nil
}
