package insn

import (
	"fmt"

	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/frame"
	"github.com/go-classfile/jcfg/vtype"
)

// Context carries the constant pool and verification-type environment
// an instruction needs to resolve its descriptor-dependent stack
// effect (field/method descriptors, class names).
type Context struct {
	Env  *vtype.Environment
	Pool *cpool.Pool
}

// Trace applies in's effect to s: the stack/locals mutation JVMS
// §6.5 specifies for that opcode. It is the "trace(frame)" contract
// of spec.md §4.2/§4.4 — every opcode variant implements it via this
// single dispatch rather than per-type virtual methods, since Go has
// no open class hierarchy to hang them on.
func Trace(in *Instr, s *frame.State, ctx *Context) error {
	s.StartDelta(src(in))
	defer s.FinishDelta()

	env := ctx.Env
	switch in.Op {
	case Nop:
		return nil

	case AconstNull:
		s.PushType(env.NullT(), src(in), nil)
		return nil

	case IconstM1, Iconst0, Iconst1, Iconst2, Iconst3, Iconst4, Iconst5:
		s.PushType(env.IntT(), src(in), int32(in.Op)-int32(Iconst0))
		return nil
	case Bipush, Sipush:
		s.PushType(env.IntT(), src(in), in.Imm)
		return nil
	case Lconst0, Lconst1:
		s.PushType(env.LongT(), src(in), int64(in.Op)-int64(Lconst0))
		return nil
	case Fconst0, Fconst1, Fconst2:
		s.PushType(env.FloatT(), src(in), float32(int(in.Op)-int(Fconst0)))
		return nil
	case Dconst0, Dconst1:
		s.PushType(env.DoubleT(), src(in), float64(int(in.Op)-int(Dconst0)))
		return nil

	case Ldc, LdcW:
		return traceLdc(in, s, ctx, false)
	case Ldc2W:
		return traceLdc(in, s, ctx, true)

	case Iload, Iload0, Iload1, Iload2, Iload3:
		return traceLoad(in, s, localIndex(in, Iload, Iload0), env.IntT())
	case Lload, Lload0, Lload1, Lload2, Lload3:
		return traceLoad(in, s, localIndex(in, Lload, Lload0), env.LongT())
	case Fload, Fload0, Fload1, Fload2, Fload3:
		return traceLoad(in, s, localIndex(in, Fload, Fload0), env.FloatT())
	case Dload, Dload0, Dload1, Dload2, Dload3:
		return traceLoad(in, s, localIndex(in, Dload, Dload0), env.DoubleT())
	case Aload, Aload0, Aload1, Aload2, Aload3:
		return traceLoadAny(in, s, localIndex(in, Aload, Aload0))

	case Istore, Istore0, Istore1, Istore2, Istore3:
		return traceStore(in, s, localIndex(in, Istore, Istore0))
	case Lstore, Lstore0, Lstore1, Lstore2, Lstore3:
		return traceStore(in, s, localIndex(in, Lstore, Lstore0))
	case Fstore, Fstore0, Fstore1, Fstore2, Fstore3:
		return traceStore(in, s, localIndex(in, Fstore, Fstore0))
	case Dstore, Dstore0, Dstore1, Dstore2, Dstore3:
		return traceStore(in, s, localIndex(in, Dstore, Dstore0))
	case Astore, Astore0, Astore1, Astore2, Astore3:
		return traceStore(in, s, localIndex(in, Astore, Astore0))

	case Iaload, Laload, Faload, Daload, Aaload, Baload, Caload, Saload:
		return traceArrayLoad(in, s, env)
	case Iastore, Lastore, Fastore, Dastore, Aastore, Bastore, Castore, Sastore:
		return traceArrayStore(s)

	case Pop:
		_, err := s.Pop()
		return err
	case Pop2:
		return s.Pop2()
	case Dup:
		return s.Dup()
	case DupX1:
		return s.DupX1()
	case DupX2:
		return s.DupX2()
	case Dup2:
		return s.Dup2()
	case Dup2X1:
		return s.Dup2X1()
	case Dup2X2:
		return s.Dup2X2()
	case Swap:
		return s.Swap()

	case Iadd, Isub, Imul, Idiv, Irem, Iand, Ior, Ixor, Ishl, Ishr, Iushr:
		return traceBinary(s, in, env.IntT(), isShift(in.Op))
	case Ladd, Lsub, Lmul, Ldiv, Lrem, Land, Lor, Lxor:
		return traceBinary(s, in, env.LongT(), false)
	case Lshl, Lshr, Lushr:
		return traceShiftLong(s, env)
	case Fadd, Fsub, Fmul, Fdiv, Frem:
		return traceBinary(s, in, env.FloatT(), false)
	case Dadd, Dsub, Dmul, Ddiv, Drem:
		return traceBinary(s, in, env.DoubleT(), false)

	case Ineg:
		return traceUnary(s, env.IntT())
	case Lneg:
		return traceUnary(s, env.LongT())
	case Fneg:
		return traceUnary(s, env.FloatT())
	case Dneg:
		return traceUnary(s, env.DoubleT())

	case Iinc:
		e, err := s.Get(in.Local)
		if err != nil {
			return err
		}
		if e.Type.Kind != vtype.Int {
			return frame.CategoryMismatch{Index: in.Local, Want: 1, Got: e.Type.Category()}
		}
		s.Set(in.Local, s.NewEntry(env.IntT(), src(in), nil))
		return nil

	case I2l:
		return traceConvert(s, env.LongT())
	case I2f:
		return traceConvert(s, env.FloatT())
	case I2d:
		return traceConvert(s, env.DoubleT())
	case L2i:
		return traceConvert(s, env.IntT())
	case L2f:
		return traceConvert(s, env.FloatT())
	case L2d:
		return traceConvert(s, env.DoubleT())
	case F2i:
		return traceConvert(s, env.IntT())
	case F2l:
		return traceConvert(s, env.LongT())
	case F2d:
		return traceConvert(s, env.DoubleT())
	case D2i:
		return traceConvert(s, env.IntT())
	case D2l:
		return traceConvert(s, env.LongT())
	case D2f:
		return traceConvert(s, env.FloatT())
	case I2b, I2c, I2s:
		return traceConvert(s, env.IntT())

	case Lcmp, Fcmpl, Fcmpg, Dcmpl, Dcmpg:
		if _, err := s.Pop(); err != nil {
			return err
		}
		if _, err := s.Pop(); err != nil {
			return err
		}
		s.PushType(env.IntT(), src(in), nil)
		return nil

	case Ifeq, Ifne, Iflt, Ifge, Ifgt, Ifle:
		_, err := s.Pop()
		return err
	case IfIcmpeq, IfIcmpne, IfIcmplt, IfIcmpge, IfIcmpgt, IfIcmple:
		if _, err := s.Pop(); err != nil {
			return err
		}
		_, err := s.Pop()
		return err
	case IfAcmpeq, IfAcmpne:
		if _, err := s.Pop(); err != nil {
			return err
		}
		_, err := s.Pop()
		return err
	case Ifnull, Ifnonnull:
		_, err := s.Pop()
		return err
	case Goto, GotoW:
		return nil
	case Jsr, JsrW:
		s.PushType(env.ReturnAddress(in.Offset+in.Length), src(in), nil)
		return nil
	case Ret:
		_, err := s.Get(in.Local)
		return err
	case Tableswitch, Lookupswitch:
		_, err := s.Pop()
		return err

	case Ireturn, Freturn, Dreturn, Lreturn, Areturn:
		_, err := s.Pop()
		return err
	case Return:
		return nil

	case Getstatic:
		return traceGetstatic(in, s, ctx)
	case Putstatic:
		return tracePutstatic(in, s, ctx)
	case Getfield:
		return traceGetfield(in, s, ctx)
	case Putfield:
		return tracePutfield(in, s, ctx)

	case Invokevirtual, Invokespecial, Invokeinterface:
		return traceInvoke(in, s, ctx, true)
	case Invokestatic:
		return traceInvoke(in, s, ctx, false)
	case Invokedynamic:
		return traceInvokeDynamic(in, s, ctx)

	case New:
		return traceNew(in, s, ctx)
	case Newarray:
		return traceNewarray(in, s, env)
	case Anewarray:
		return traceAnewarray(in, s, ctx)
	case Arraylength:
		if _, err := s.Pop(); err != nil {
			return err
		}
		s.PushType(env.IntT(), src(in), nil)
		return nil
	case Athrow:
		_, err := s.Pop()
		return err
	case Checkcast:
		return traceCheckcast(in, s, ctx)
	case Instanceof:
		if _, err := s.Pop(); err != nil {
			return err
		}
		s.PushType(env.IntT(), src(in), nil)
		return nil
	case Monitorenter, Monitorexit:
		_, err := s.Pop()
		return err
	case Multianewarray:
		return traceMultianewarray(in, s, ctx)
	}
	return fmt.Errorf("insn: trace not implemented for %s", in.Op.Name())
}

func src(in *Instr) frame.Source {
	return frame.Source{Kind: frame.SourceInstruction, Offset: in.Offset}
}

func localIndex(in *Instr, base, zero Opcode) int {
	if in.Op == base {
		return in.Local
	}
	return int(in.Op - zero)
}

func traceLoad(in *Instr, s *frame.State, idx int, want vtype.Type) error {
	e, err := s.Get(idx)
	if err != nil {
		return err
	}
	if e.Type.Kind != want.Kind {
		return frame.CategoryMismatch{Index: idx, Want: want.Category(), Got: e.Type.Category()}
	}
	s.Push(e)
	return nil
}

func traceLoadAny(in *Instr, s *frame.State, idx int) error {
	e, err := s.Get(idx)
	if err != nil {
		return err
	}
	if !e.Type.IsReference() && e.Type.Kind != vtype.ReturnAddress {
		return frame.CategoryMismatch{Index: idx, Want: 1, Got: e.Type.Category()}
	}
	s.Push(e)
	return nil
}

func traceStore(in *Instr, s *frame.State, idx int) error {
	e, err := s.Pop()
	if err != nil {
		return err
	}
	s.Set(idx, e)
	return nil
}

func traceArrayLoad(in *Instr, s *frame.State, env *vtype.Environment) error {
	if _, err := s.Pop(); err != nil { // index
		return err
	}
	arr, err := s.Pop() // arrayref
	if err != nil {
		return err
	}
	var elem vtype.Type
	switch in.Op {
	case Iaload, Baload, Caload, Saload:
		elem = env.IntT()
	case Laload:
		elem = env.LongT()
	case Faload:
		elem = env.FloatT()
	case Daload:
		elem = env.DoubleT()
	case Aaload:
		if arr.Type.IsArray() && arr.Type.Dim > 1 {
			elem = vtype.Type{Kind: vtype.Reference, Dim: arr.Type.Dim - 1, ClassName: arr.Type.ClassName, ElemPrimitive: arr.Type.ElemPrimitive}
		} else if arr.Type.IsArray() {
			elem = env.Reference(arr.Type.ClassName)
		} else {
			elem = env.Object()
		}
	}
	s.PushType(elem, frame.Source{}, nil)
	return nil
}

func traceArrayStore(s *frame.State) error {
	if _, err := s.Pop(); err != nil { // value
		return err
	}
	if _, err := s.Pop(); err != nil { // index
		return err
	}
	_, err := s.Pop() // arrayref
	return err
}

func isShift(op Opcode) bool {
	switch op {
	case Ishl, Ishr, Iushr:
		return true
	}
	return false
}

func traceBinary(s *frame.State, in *Instr, t vtype.Type, shift bool) error {
	if _, err := s.Pop(); err != nil {
		return err
	}
	if _, err := s.Pop(); err != nil {
		return err
	}
	s.PushType(t, src(in), nil)
	return nil
}

// traceShiftLong handles lshl/lshr/lushr, whose shift-amount operand
// is an int even though the shifted value is a long.
func traceShiftLong(s *frame.State, env *vtype.Environment) error {
	if _, err := s.Pop(); err != nil { // int shift amount
		return err
	}
	if _, err := s.Pop(); err != nil { // long value
		return err
	}
	s.PushType(env.LongT(), frame.Source{}, nil)
	return nil
}

func traceUnary(s *frame.State, t vtype.Type) error {
	if _, err := s.Pop(); err != nil {
		return err
	}
	s.PushType(t, frame.Source{}, nil)
	return nil
}

func traceConvert(s *frame.State, to vtype.Type) error {
	if _, err := s.Pop(); err != nil {
		return err
	}
	s.PushType(to, frame.Source{}, nil)
	return nil
}

func traceLdc(in *Instr, s *frame.State, ctx *Context, wide bool) error {
	c := ctx.Pool.Get(int(in.CP))
	env := ctx.Env
	switch v := c.(type) {
	case cpool.Integer:
		s.PushType(env.IntT(), src(in), int32(v))
	case cpool.Float:
		s.PushType(env.FloatT(), src(in), float32(v))
	case cpool.Long:
		s.PushType(env.LongT(), src(in), int64(v))
	case cpool.Double:
		s.PushType(env.DoubleT(), src(in), float64(v))
	case cpool.String:
		s.PushType(env.Reference("java/lang/String"), src(in), v.Value)
	case cpool.Class:
		s.PushType(env.Reference("java/lang/Class"), src(in), nil)
	case cpool.MethodHandle:
		s.PushType(env.Reference("java/lang/invoke/MethodHandle"), src(in), nil)
	case cpool.MethodType:
		s.PushType(env.Reference("java/lang/invoke/MethodType"), src(in), nil)
	case cpool.Dynamic:
		t, err := ParseFieldDescriptor(env, v.NameAndType.Descriptor)
		if err != nil {
			return err
		}
		s.PushType(t, src(in), nil)
	default:
		return fmt.Errorf("insn: ldc of unsupported constant kind at offset %d", in.Offset)
	}
	return nil
}

func traceGetstatic(in *Instr, s *frame.State, ctx *Context) error {
	fr, ok := ctx.Pool.Get(int(in.CP)).(cpool.FieldRef)
	if !ok {
		return fmt.Errorf("insn: getstatic operand is not a FieldRef at offset %d", in.Offset)
	}
	t, err := ParseFieldDescriptor(ctx.Env, fr.NameAndType.Descriptor)
	if err != nil {
		return err
	}
	s.PushType(t, src(in), nil)
	return nil
}

func tracePutstatic(in *Instr, s *frame.State, ctx *Context) error {
	if _, ok := ctx.Pool.Get(int(in.CP)).(cpool.FieldRef); !ok {
		return fmt.Errorf("insn: putstatic operand is not a FieldRef at offset %d", in.Offset)
	}
	_, err := s.Pop()
	return err
}

func traceGetfield(in *Instr, s *frame.State, ctx *Context) error {
	fr, ok := ctx.Pool.Get(int(in.CP)).(cpool.FieldRef)
	if !ok {
		return fmt.Errorf("insn: getfield operand is not a FieldRef at offset %d", in.Offset)
	}
	if _, err := s.Pop(); err != nil { // objectref
		return err
	}
	t, err := ParseFieldDescriptor(ctx.Env, fr.NameAndType.Descriptor)
	if err != nil {
		return err
	}
	s.PushType(t, src(in), nil)
	return nil
}

func tracePutfield(in *Instr, s *frame.State, ctx *Context) error {
	if _, ok := ctx.Pool.Get(int(in.CP)).(cpool.FieldRef); !ok {
		return fmt.Errorf("insn: putfield operand is not a FieldRef at offset %d", in.Offset)
	}
	if _, err := s.Pop(); err != nil { // value
		return err
	}
	_, err := s.Pop() // objectref
	return err
}

func methodNameAndType(c cpool.Constant) (cpool.NameAndType, bool) {
	switch v := c.(type) {
	case cpool.MethodRef:
		return v.NameAndType, true
	case cpool.InterfaceMethodRef:
		return v.NameAndType, true
	}
	return cpool.NameAndType{}, false
}

func traceInvoke(in *Instr, s *frame.State, ctx *Context, hasReceiver bool) error {
	nt, ok := methodNameAndType(ctx.Pool.Get(int(in.CP)))
	if !ok {
		return fmt.Errorf("insn: invoke operand is not a method ref at offset %d", in.Offset)
	}
	params, ret, hasReturn, err := ParseMethodDescriptor(ctx.Env, nt.Descriptor)
	if err != nil {
		return err
	}
	for i := len(params) - 1; i >= 0; i-- {
		if _, err := s.Pop(); err != nil {
			return err
		}
	}
	var receiver *frame.Entry
	if hasReceiver {
		receiver, err = s.Pop()
		if err != nil {
			return err
		}
	}
	if in.Op == Invokespecial && nt.Name == "<init>" && receiver != nil {
		className := ctx.Env.ObjectClass
		if fr, ok := ctx.Pool.Get(int(in.CP)).(cpool.MethodRef); ok {
			className = fr.Class
		}
		s.Initialize(receiver.Type, ctx.Env.Reference(className), src(in))
	}
	if hasReturn {
		s.PushType(ret, src(in), nil)
	}
	return nil
}

func traceInvokeDynamic(in *Instr, s *frame.State, ctx *Context) error {
	dyn, ok := ctx.Pool.Get(int(in.CP)).(cpool.InvokeDynamic)
	if !ok {
		return fmt.Errorf("insn: invokedynamic operand is not an InvokeDynamic at offset %d", in.Offset)
	}
	params, ret, hasReturn, err := ParseMethodDescriptor(ctx.Env, dyn.NameAndType.Descriptor)
	if err != nil {
		return err
	}
	for range params {
		if _, err := s.Pop(); err != nil {
			return err
		}
	}
	if hasReturn {
		s.PushType(ret, src(in), nil)
	}
	return nil
}

func traceNew(in *Instr, s *frame.State, ctx *Context) error {
	cls, ok := ctx.Pool.Get(int(in.CP)).(cpool.Class)
	if !ok {
		return fmt.Errorf("insn: new operand is not a Class at offset %d", in.Offset)
	}
	s.PushType(vtype.Type{Kind: vtype.Uninitialized, Offset: in.Offset, ClassName: cls.Name}, src(in), nil)
	return nil
}

func traceNewarray(in *Instr, s *frame.State, env *vtype.Environment) error {
	if _, err := s.Pop(); err != nil {
		return err
	}
	var elem vtype.Type
	switch in.AType {
	case ATBoolean, ATByte, ATChar, ATShort, ATInt:
		elem = env.IntT()
	case ATFloat:
		elem = env.FloatT()
	case ATDouble:
		elem = env.DoubleT()
	case ATLong:
		elem = env.LongT()
	default:
		return fmt.Errorf("insn: invalid newarray atype %d at offset %d", in.AType, in.Offset)
	}
	s.PushType(env.ArrayOf(elem), src(in), nil)
	return nil
}

func traceAnewarray(in *Instr, s *frame.State, ctx *Context) error {
	cls, ok := ctx.Pool.Get(int(in.CP)).(cpool.Class)
	if !ok {
		return fmt.Errorf("insn: anewarray operand is not a Class at offset %d", in.Offset)
	}
	if _, err := s.Pop(); err != nil {
		return err
	}
	var elem vtype.Type
	if len(cls.Name) > 0 && cls.Name[0] == '[' {
		var err error
		elem, err = ParseFieldDescriptor(ctx.Env, cls.Name)
		if err != nil {
			return err
		}
	} else {
		elem = ctx.Env.Reference(cls.Name)
	}
	s.PushType(ctx.Env.ArrayOf(elem), src(in), nil)
	return nil
}

func traceCheckcast(in *Instr, s *frame.State, ctx *Context) error {
	cls, ok := ctx.Pool.Get(int(in.CP)).(cpool.Class)
	if !ok {
		return fmt.Errorf("insn: checkcast operand is not a Class at offset %d", in.Offset)
	}
	old, err := s.Pop()
	if err != nil {
		return err
	}
	var t vtype.Type
	if len(cls.Name) > 0 && cls.Name[0] == '[' {
		t, err = ParseFieldDescriptor(ctx.Env, cls.Name)
		if err != nil {
			return err
		}
	} else {
		t = ctx.Env.Reference(cls.Name)
	}
	e := s.NewEntry(t, src(in), nil)
	e.Parents = []*frame.Entry{old}
	s.Push(e)
	return nil
}

func traceMultianewarray(in *Instr, s *frame.State, ctx *Context) error {
	cls, ok := ctx.Pool.Get(int(in.CP)).(cpool.Class)
	if !ok {
		return fmt.Errorf("insn: multianewarray operand is not a Class at offset %d", in.Offset)
	}
	for i := uint8(0); i < in.Count; i++ {
		if _, err := s.Pop(); err != nil {
			return err
		}
	}
	t, err := ParseFieldDescriptor(ctx.Env, cls.Name)
	if err != nil {
		return err
	}
	s.PushType(t, src(in), nil)
	return nil
}
