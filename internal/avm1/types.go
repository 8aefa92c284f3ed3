// Package avm1 decodes AVM1 action bytecode, the instruction set embedded in
// SWF DoAction, DoInitAction and button tags, into typed instruction records.
package avm1

import (
	"fmt"
	"strconv"
	"strings"
)

// Opcode is the first byte of an encoded action.
type Opcode uint8

const (
	OpEnd             Opcode = 0x00
	OpNextFrame       Opcode = 0x04
	OpPreviousFrame   Opcode = 0x05
	OpPlay            Opcode = 0x06
	OpStop            Opcode = 0x07
	OpToggleQuality   Opcode = 0x08
	OpStopSounds      Opcode = 0x09
	OpAdd             Opcode = 0x0A
	OpSubtract        Opcode = 0x0B
	OpMultiply        Opcode = 0x0C
	OpDivide          Opcode = 0x0D
	OpEquals          Opcode = 0x0E
	OpLess            Opcode = 0x0F
	OpAnd             Opcode = 0x10
	OpOr              Opcode = 0x11
	OpNot             Opcode = 0x12
	OpStringEquals    Opcode = 0x13
	OpStringLength    Opcode = 0x14
	OpStringExtract   Opcode = 0x15
	OpPop             Opcode = 0x17
	OpToInteger       Opcode = 0x18
	OpGetVariable     Opcode = 0x1C
	OpSetVariable     Opcode = 0x1D
	OpSetTarget2      Opcode = 0x20
	OpStringAdd       Opcode = 0x21
	OpGetProperty     Opcode = 0x22
	OpSetProperty     Opcode = 0x23
	OpCloneSprite     Opcode = 0x24
	OpRemoveSprite    Opcode = 0x25
	OpTrace           Opcode = 0x26
	OpStartDrag       Opcode = 0x27
	OpEndDrag         Opcode = 0x28
	OpStringLess      Opcode = 0x29
	OpThrow           Opcode = 0x2A
	OpCastOp          Opcode = 0x2B
	OpImplementsOp    Opcode = 0x2C
	OpRandomNumber    Opcode = 0x30
	OpMBStringLength  Opcode = 0x31
	OpCharToAscii     Opcode = 0x32
	OpAsciiToChar     Opcode = 0x33
	OpGetTime         Opcode = 0x34
	OpMBStringExtract Opcode = 0x35
	OpMBCharToAscii   Opcode = 0x36
	OpMBAsciiToChar   Opcode = 0x37
	OpDelete          Opcode = 0x3A
	OpDelete2         Opcode = 0x3B
	OpDefineLocal     Opcode = 0x3C
	OpCallFunction    Opcode = 0x3D
	OpReturn          Opcode = 0x3E
	OpModulo          Opcode = 0x3F
	OpNewObject       Opcode = 0x40
	OpDefineLocal2    Opcode = 0x41
	OpInitArray       Opcode = 0x42
	OpInitObject      Opcode = 0x43
	OpTypeOf          Opcode = 0x44
	OpTargetPath      Opcode = 0x45
	OpEnumerate       Opcode = 0x46
	OpAdd2            Opcode = 0x47
	OpLess2           Opcode = 0x48
	OpEquals2         Opcode = 0x49
	OpToNumber        Opcode = 0x4A
	OpToString        Opcode = 0x4B
	OpPushDuplicate   Opcode = 0x4C
	OpStackSwap       Opcode = 0x4D
	OpGetMember       Opcode = 0x4E
	OpSetMember       Opcode = 0x4F
	OpIncrement       Opcode = 0x50
	OpDecrement       Opcode = 0x51
	OpCallMethod      Opcode = 0x52
	OpNewMethod       Opcode = 0x53
	OpInstanceOf      Opcode = 0x54
	OpEnumerate2      Opcode = 0x55
	OpBitAnd          Opcode = 0x60
	OpBitOr           Opcode = 0x61
	OpBitXor          Opcode = 0x62
	OpBitLShift       Opcode = 0x63
	OpBitRShift       Opcode = 0x64
	OpBitURShift      Opcode = 0x65
	OpStrictEquals    Opcode = 0x66
	OpGreater         Opcode = 0x67
	OpStringGreater   Opcode = 0x68
	OpExtends         Opcode = 0x69

	OpGotoFrame       Opcode = 0x81
	OpGetURL          Opcode = 0x83
	OpStoreRegister   Opcode = 0x87
	OpConstantPool    Opcode = 0x88
	OpWaitForFrame    Opcode = 0x8A
	OpSetTarget       Opcode = 0x8B
	OpGotoLabel       Opcode = 0x8C
	OpWaitForFrame2   Opcode = 0x8D
	OpDefineFunction2 Opcode = 0x8E
	OpTry             Opcode = 0x8F
	OpWith            Opcode = 0x94
	OpPush            Opcode = 0x96
	OpJump            Opcode = 0x99
	OpGetURL2         Opcode = 0x9A
	OpDefineFunction  Opcode = 0x9B
	OpIf              Opcode = 0x9D
	OpCall            Opcode = 0x9E
	OpGotoFrame2      Opcode = 0x9F
)

var opcodeNames = map[Opcode]string{
	OpEnd:             "End",
	OpNextFrame:       "NextFrame",
	OpPreviousFrame:   "PreviousFrame",
	OpPlay:            "Play",
	OpStop:            "Stop",
	OpToggleQuality:   "ToggleQuality",
	OpStopSounds:      "StopSounds",
	OpAdd:             "Add",
	OpSubtract:        "Subtract",
	OpMultiply:        "Multiply",
	OpDivide:          "Divide",
	OpEquals:          "Equals",
	OpLess:            "Less",
	OpAnd:             "And",
	OpOr:              "Or",
	OpNot:             "Not",
	OpStringEquals:    "StringEquals",
	OpStringLength:    "StringLength",
	OpStringExtract:   "StringExtract",
	OpPop:             "Pop",
	OpToInteger:       "ToInteger",
	OpGetVariable:     "GetVariable",
	OpSetVariable:     "SetVariable",
	OpSetTarget2:      "SetTarget2",
	OpStringAdd:       "StringAdd",
	OpGetProperty:     "GetProperty",
	OpSetProperty:     "SetProperty",
	OpCloneSprite:     "CloneSprite",
	OpRemoveSprite:    "RemoveSprite",
	OpTrace:           "Trace",
	OpStartDrag:       "StartDrag",
	OpEndDrag:         "EndDrag",
	OpStringLess:      "StringLess",
	OpThrow:           "Throw",
	OpCastOp:          "CastOp",
	OpImplementsOp:    "ImplementsOp",
	OpRandomNumber:    "RandomNumber",
	OpMBStringLength:  "MBStringLength",
	OpCharToAscii:     "CharToAscii",
	OpAsciiToChar:     "AsciiToChar",
	OpGetTime:         "GetTime",
	OpMBStringExtract: "MBStringExtract",
	OpMBCharToAscii:   "MBCharToAscii",
	OpMBAsciiToChar:   "MBAsciiToChar",
	OpDelete:          "Delete",
	OpDelete2:         "Delete2",
	OpDefineLocal:     "DefineLocal",
	OpCallFunction:    "CallFunction",
	OpReturn:          "Return",
	OpModulo:          "Modulo",
	OpNewObject:       "NewObject",
	OpDefineLocal2:    "DefineLocal2",
	OpInitArray:       "InitArray",
	OpInitObject:      "InitObject",
	OpTypeOf:          "TypeOf",
	OpTargetPath:      "TargetPath",
	OpEnumerate:       "Enumerate",
	OpAdd2:            "Add2",
	OpLess2:           "Less2",
	OpEquals2:         "Equals2",
	OpToNumber:        "ToNumber",
	OpToString:        "ToString",
	OpPushDuplicate:   "PushDuplicate",
	OpStackSwap:       "StackSwap",
	OpGetMember:       "GetMember",
	OpSetMember:       "SetMember",
	OpIncrement:       "Increment",
	OpDecrement:       "Decrement",
	OpCallMethod:      "CallMethod",
	OpNewMethod:       "NewMethod",
	OpInstanceOf:      "InstanceOf",
	OpEnumerate2:      "Enumerate2",
	OpBitAnd:          "BitAnd",
	OpBitOr:           "BitOr",
	OpBitXor:          "BitXor",
	OpBitLShift:       "BitLShift",
	OpBitRShift:       "BitRShift",
	OpBitURShift:      "BitURShift",
	OpStrictEquals:    "StrictEquals",
	OpGreater:         "Greater",
	OpStringGreater:   "StringGreater",
	OpExtends:         "Extends",
	OpGotoFrame:       "GotoFrame",
	OpGetURL:          "GetUrl",
	OpStoreRegister:   "StoreRegister",
	OpConstantPool:    "ConstantPool",
	OpWaitForFrame:    "WaitForFrame",
	OpSetTarget:       "SetTarget",
	OpGotoLabel:       "GotoLabel",
	OpWaitForFrame2:   "WaitForFrame2",
	OpDefineFunction2: "DefineFunction2",
	OpTry:             "Try",
	OpWith:            "With",
	OpPush:            "Push",
	OpJump:            "Jump",
	OpGetURL2:         "GetUrl2",
	OpDefineFunction:  "DefineFunction",
	OpIf:              "If",
	OpCall:            "Call",
	OpGotoFrame2:      "GotoFrame2",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02x)", uint8(op))
}

// HasPayload reports whether the opcode is followed by a u16 length and payload.
func (op Opcode) HasPayload() bool {
	return op >= 0x80
}

// Record is one decoded action together with the number of bytes it
// occupied in its source buffer. For function definitions Size includes the
// nested body.
type Record struct {
	Action Action
	Size   int
}

// List is the decoded form of one contiguous action buffer.
type List []Record

// Size is the total encoded length of the list.
func (l List) Size() int {
	n := 0
	for _, r := range l {
		n += r.Size
	}
	return n
}

// Action is the closed set of decoded action kinds.
type Action interface {
	Opcode() Opcode
	isAction()
}

// ConstantPool replaces the active constant pool.
type ConstantPool struct {
	Strings []string
}

// Push pushes its values onto the stack in order.
type Push struct {
	Values []Value
}

// If branches by Offset bytes when the popped condition is true.
type If struct {
	Offset int16
}

// Jump branches unconditionally by Offset bytes.
type Jump struct {
	Offset int16
}

// DefineFunction declares a function with named parameters.
type DefineFunction struct {
	Name   string
	Params []string
	Body   List
}

// FunctionParam is a DefineFunction2 parameter. Register 0 means the
// parameter is not bound to a register.
type FunctionParam struct {
	Name     string
	Register uint8
}

// Function2Flags are the DefineFunction2 preload and suppress bits.
type Function2Flags uint16

const (
	PreloadThis      Function2Flags = 0x0001
	SuppressThis     Function2Flags = 0x0002
	PreloadArguments Function2Flags = 0x0004
	SuppressArgs     Function2Flags = 0x0008
	PreloadSuper     Function2Flags = 0x0010
	SuppressSuper    Function2Flags = 0x0020
	PreloadRoot      Function2Flags = 0x0040
	PreloadParent    Function2Flags = 0x0080
	PreloadGlobal    Function2Flags = 0x0100
)

// DefineFunction2 declares a function using registers for its locals.
type DefineFunction2 struct {
	Name          string
	RegisterCount uint8
	Flags         Function2Flags
	Params        []FunctionParam
	Body          List
}

// Preloads returns the names of the set preload flags in display order.
func (f *DefineFunction2) Preloads() []string {
	order := []struct {
		flag Function2Flags
		name string
	}{
		{PreloadParent, "parent"},
		{PreloadRoot, "root"},
		{PreloadSuper, "super"},
		{PreloadArguments, "arguments"},
		{PreloadThis, "this"},
		{PreloadGlobal, "global"},
	}
	preloads := []string{}
	for _, p := range order {
		if f.Flags&p.flag != 0 {
			preloads = append(preloads, p.name)
		}
	}
	return preloads
}

// Simple is any action without a payload.
type Simple struct {
	Op Opcode
}

type GotoFrame struct {
	Frame uint16
}

type GetURL struct {
	URL    string
	Target string
}

type StoreRegister struct {
	Register uint8
}

type WaitForFrame struct {
	Frame     uint16
	SkipCount uint8
}

type SetTarget struct {
	Target string
}

type GotoLabel struct {
	Label string
}

type WaitForFrame2 struct {
	SkipCount uint8
}

// Try only carries block sizes; the blocks themselves follow inline.
type Try struct {
	Flags         uint8
	TrySize       uint16
	CatchSize     uint16
	FinallySize   uint16
	CatchName     string
	CatchRegister uint8
}

// CatchInRegister reports whether the caught value is stored in a register.
func (t *Try) CatchInRegister() bool { return t.Flags&0x04 != 0 }

// With only carries the block size; the block follows inline.
type With struct {
	Size uint16
}

type GetURL2 struct {
	Flags uint8
}

type GotoFrame2 struct {
	Play      bool
	SceneBias uint16
	HasBias   bool
}

// Unknown is an opcode the decoder does not know, kept with its payload.
type Unknown struct {
	Op   Opcode
	Data []byte
}

func (*ConstantPool) Opcode() Opcode    { return OpConstantPool }
func (*Push) Opcode() Opcode            { return OpPush }
func (*If) Opcode() Opcode              { return OpIf }
func (*Jump) Opcode() Opcode            { return OpJump }
func (*DefineFunction) Opcode() Opcode  { return OpDefineFunction }
func (*DefineFunction2) Opcode() Opcode { return OpDefineFunction2 }
func (s *Simple) Opcode() Opcode        { return s.Op }
func (*GotoFrame) Opcode() Opcode       { return OpGotoFrame }
func (*GetURL) Opcode() Opcode          { return OpGetURL }
func (*StoreRegister) Opcode() Opcode   { return OpStoreRegister }
func (*WaitForFrame) Opcode() Opcode    { return OpWaitForFrame }
func (*SetTarget) Opcode() Opcode       { return OpSetTarget }
func (*GotoLabel) Opcode() Opcode       { return OpGotoLabel }
func (*WaitForFrame2) Opcode() Opcode   { return OpWaitForFrame2 }
func (*Try) Opcode() Opcode             { return OpTry }
func (*With) Opcode() Opcode            { return OpWith }
func (*GetURL2) Opcode() Opcode         { return OpGetURL2 }
func (*GotoFrame2) Opcode() Opcode      { return OpGotoFrame2 }
func (u *Unknown) Opcode() Opcode       { return u.Op }

func (*ConstantPool) isAction()    {}
func (*Push) isAction()            {}
func (*If) isAction()              {}
func (*Jump) isAction()            {}
func (*DefineFunction) isAction()  {}
func (*DefineFunction2) isAction() {}
func (*Simple) isAction()          {}
func (*GotoFrame) isAction()       {}
func (*GetURL) isAction()          {}
func (*StoreRegister) isAction()   {}
func (*WaitForFrame) isAction()    {}
func (*SetTarget) isAction()       {}
func (*GotoLabel) isAction()       {}
func (*WaitForFrame2) isAction()   {}
func (*Try) isAction()             {}
func (*With) isAction()            {}
func (*GetURL2) isAction()         {}
func (*GotoFrame2) isAction()      {}
func (*Unknown) isAction()         {}

func (s *Simple) String() string { return s.Op.String() }

func (g *GotoFrame) String() string { return fmt.Sprintf("GotoFrame frame=%d", g.Frame) }

func (g *GetURL) String() string {
	return fmt.Sprintf("GetUrl url=%s target=%s", strconv.Quote(g.URL), strconv.Quote(g.Target))
}

func (s *StoreRegister) String() string { return fmt.Sprintf("StoreRegister register=%d", s.Register) }

func (w *WaitForFrame) String() string {
	return fmt.Sprintf("WaitForFrame frame=%d skip=%d", w.Frame, w.SkipCount)
}

func (s *SetTarget) String() string { return fmt.Sprintf("SetTarget target=%s", strconv.Quote(s.Target)) }

func (g *GotoLabel) String() string { return fmt.Sprintf("GotoLabel label=%s", strconv.Quote(g.Label)) }

func (w *WaitForFrame2) String() string { return fmt.Sprintf("WaitForFrame2 skip=%d", w.SkipCount) }

func (t *Try) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Try try=%d catch=%d finally=%d", t.TrySize, t.CatchSize, t.FinallySize)
	if t.CatchInRegister() {
		fmt.Fprintf(&b, " catch_register=%d", t.CatchRegister)
	} else {
		fmt.Fprintf(&b, " catch_name=%s", strconv.Quote(t.CatchName))
	}
	return b.String()
}

func (w *With) String() string { return fmt.Sprintf("With size=%d", w.Size) }

func (g *GetURL2) String() string {
	methods := [...]string{"none", "get", "post", "invalid"}
	return fmt.Sprintf("GetUrl2 method=%s target_sprite=%t load_variables=%t",
		methods[g.Flags&0x03], g.Flags&0x40 != 0, g.Flags&0x80 != 0)
}

func (g *GotoFrame2) String() string {
	if g.HasBias {
		return fmt.Sprintf("GotoFrame2 play=%t scene_bias=%d", g.Play, g.SceneBias)
	}
	return fmt.Sprintf("GotoFrame2 play=%t", g.Play)
}

func (u *Unknown) String() string {
	if len(u.Data) == 0 {
		return u.Op.String()
	}
	return fmt.Sprintf("%s data=% x", u.Op, u.Data)
}

// ValueKind tags a pushed value.
type ValueKind uint8

const (
	ValueString    ValueKind = 0
	ValueFloat     ValueKind = 1
	ValueNull      ValueKind = 2
	ValueUndefined ValueKind = 3
	ValueRegister  ValueKind = 4
	ValueBool      ValueKind = 5
	ValueDouble    ValueKind = 6
	ValueInt       ValueKind = 7
	ValueConstant8 ValueKind = 8
	// ValueConstant16 shares representation with ValueConstant8 after decoding.
	ValueConstant16 ValueKind = 9
)

// Value is one Push operand.
type Value struct {
	Kind     ValueKind
	Str      string
	Float    float64
	Int      int32
	Bool     bool
	Register uint8
	Constant uint16
}

// IsPoolRef reports whether the value indexes the constant pool.
func (v Value) IsPoolRef() bool {
	return v.Kind == ValueConstant8 || v.Kind == ValueConstant16
}

func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 32)
	case ValueDouble:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueNull:
		return "null"
	case ValueUndefined:
		return "undefined"
	case ValueRegister:
		return fmt.Sprintf("register(%d)", v.Register)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case ValueConstant8, ValueConstant16:
		return fmt.Sprintf("constant(%d)", v.Constant)
	}
	return fmt.Sprintf("value(kind=%d)", v.Kind)
}

// StringValue returns a string operand.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }
