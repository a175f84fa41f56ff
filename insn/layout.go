package insn

// Layout names an opcode's operand packing family, so the decoder,
// encoder and the assembler's offset-fixup pass can each dispatch on
// one small enum instead of a per-opcode special case (spec.md §4.2:
// "group variants by operand-layout family").
type Layout uint8

const (
	LayoutNone        Layout = iota // no operand: iadd, return, aconst_null...
	LayoutLocal8                    // u1 local index: iload, astore...
	LayoutImm8                      // s1 immediate: bipush
	LayoutImm16                     // s2 immediate: sipush
	LayoutCPIndex8                  // u1 constant-pool index: ldc
	LayoutCPIndex16                 // u2 constant-pool index: ldc_w, ldc2_w, getfield, invokevirtual/special/static, new, anewarray, checkcast, instanceof
	LayoutInvokeInterface            // u2 cp index + u1 count + u1 zero
	LayoutInvokeDynamic              // u2 cp index + u1 zero + u1 zero
	LayoutBranch16                   // s2 branch offset: if<cond>, goto, jsr
	LayoutBranch32                   // s4 branch offset: goto_w, jsr_w
	LayoutTableswitch                // padding, default, low, high, s4 offsets
	LayoutLookupswitch                // padding, default, npairs, (match, offset) pairs
	LayoutIinc                       // u1 local index + s1 const
	LayoutNewarray                   // u1 atype
	LayoutMultianewarray             // u2 cp index + u1 dims
	LayoutWide                       // modified local-index/iinc width; no opcode carries it, the decoder sets Instr.Wide on the wrapped opcode instead
)

type meta_ struct {
	Name   string
	Layout Layout
}

var meta = map[Opcode]meta_{
	Nop:        {"nop", LayoutNone},
	AconstNull: {"aconst_null", LayoutNone},
	IconstM1:   {"iconst_m1", LayoutNone},
	Iconst0:    {"iconst_0", LayoutNone},
	Iconst1:    {"iconst_1", LayoutNone},
	Iconst2:    {"iconst_2", LayoutNone},
	Iconst3:    {"iconst_3", LayoutNone},
	Iconst4:    {"iconst_4", LayoutNone},
	Iconst5:    {"iconst_5", LayoutNone},
	Lconst0:    {"lconst_0", LayoutNone},
	Lconst1:    {"lconst_1", LayoutNone},
	Fconst0:    {"fconst_0", LayoutNone},
	Fconst1:    {"fconst_1", LayoutNone},
	Fconst2:    {"fconst_2", LayoutNone},
	Dconst0:    {"dconst_0", LayoutNone},
	Dconst1:    {"dconst_1", LayoutNone},
	Bipush:     {"bipush", LayoutImm8},
	Sipush:     {"sipush", LayoutImm16},
	Ldc:        {"ldc", LayoutCPIndex8},
	LdcW:       {"ldc_w", LayoutCPIndex16},
	Ldc2W:      {"ldc2_w", LayoutCPIndex16},
	Iload:      {"iload", LayoutLocal8},
	Lload:      {"lload", LayoutLocal8},
	Fload:      {"fload", LayoutLocal8},
	Dload:      {"dload", LayoutLocal8},
	Aload:      {"aload", LayoutLocal8},
	Iload0:     {"iload_0", LayoutNone},
	Iload1:     {"iload_1", LayoutNone},
	Iload2:     {"iload_2", LayoutNone},
	Iload3:     {"iload_3", LayoutNone},
	Lload0:     {"lload_0", LayoutNone},
	Lload1:     {"lload_1", LayoutNone},
	Lload2:     {"lload_2", LayoutNone},
	Lload3:     {"lload_3", LayoutNone},
	Fload0:     {"fload_0", LayoutNone},
	Fload1:     {"fload_1", LayoutNone},
	Fload2:     {"fload_2", LayoutNone},
	Fload3:     {"fload_3", LayoutNone},
	Dload0:     {"dload_0", LayoutNone},
	Dload1:     {"dload_1", LayoutNone},
	Dload2:     {"dload_2", LayoutNone},
	Dload3:     {"dload_3", LayoutNone},
	Aload0:     {"aload_0", LayoutNone},
	Aload1:     {"aload_1", LayoutNone},
	Aload2:     {"aload_2", LayoutNone},
	Aload3:     {"aload_3", LayoutNone},
	Iaload:     {"iaload", LayoutNone},
	Laload:     {"laload", LayoutNone},
	Faload:     {"faload", LayoutNone},
	Daload:     {"daload", LayoutNone},
	Aaload:     {"aaload", LayoutNone},
	Baload:     {"baload", LayoutNone},
	Caload:     {"caload", LayoutNone},
	Saload:     {"saload", LayoutNone},
	Istore:     {"istore", LayoutLocal8},
	Lstore:     {"lstore", LayoutLocal8},
	Fstore:     {"fstore", LayoutLocal8},
	Dstore:     {"dstore", LayoutLocal8},
	Astore:     {"astore", LayoutLocal8},
	Istore0:    {"istore_0", LayoutNone},
	Istore1:    {"istore_1", LayoutNone},
	Istore2:    {"istore_2", LayoutNone},
	Istore3:    {"istore_3", LayoutNone},
	Lstore0:    {"lstore_0", LayoutNone},
	Lstore1:    {"lstore_1", LayoutNone},
	Lstore2:    {"lstore_2", LayoutNone},
	Lstore3:    {"lstore_3", LayoutNone},
	Fstore0:    {"fstore_0", LayoutNone},
	Fstore1:    {"fstore_1", LayoutNone},
	Fstore2:    {"fstore_2", LayoutNone},
	Fstore3:    {"fstore_3", LayoutNone},
	Dstore0:    {"dstore_0", LayoutNone},
	Dstore1:    {"dstore_1", LayoutNone},
	Dstore2:    {"dstore_2", LayoutNone},
	Dstore3:    {"dstore_3", LayoutNone},
	Astore0:    {"astore_0", LayoutNone},
	Astore1:    {"astore_1", LayoutNone},
	Astore2:    {"astore_2", LayoutNone},
	Astore3:    {"astore_3", LayoutNone},
	Iastore:    {"iastore", LayoutNone},
	Lastore:    {"lastore", LayoutNone},
	Fastore:    {"fastore", LayoutNone},
	Dastore:    {"dastore", LayoutNone},
	Aastore:    {"aastore", LayoutNone},
	Bastore:    {"bastore", LayoutNone},
	Castore:    {"castore", LayoutNone},
	Sastore:    {"sastore", LayoutNone},
	Pop:        {"pop", LayoutNone},
	Pop2:       {"pop2", LayoutNone},
	Dup:        {"dup", LayoutNone},
	DupX1:      {"dup_x1", LayoutNone},
	DupX2:      {"dup_x2", LayoutNone},
	Dup2:       {"dup2", LayoutNone},
	Dup2X1:     {"dup2_x1", LayoutNone},
	Dup2X2:     {"dup2_x2", LayoutNone},
	Swap:       {"swap", LayoutNone},
	Iadd:       {"iadd", LayoutNone},
	Ladd:       {"ladd", LayoutNone},
	Fadd:       {"fadd", LayoutNone},
	Dadd:       {"dadd", LayoutNone},
	Isub:       {"isub", LayoutNone},
	Lsub:       {"lsub", LayoutNone},
	Fsub:       {"fsub", LayoutNone},
	Dsub:       {"dsub", LayoutNone},
	Imul:       {"imul", LayoutNone},
	Lmul:       {"lmul", LayoutNone},
	Fmul:       {"fmul", LayoutNone},
	Dmul:       {"dmul", LayoutNone},
	Idiv:       {"idiv", LayoutNone},
	Ldiv:       {"ldiv", LayoutNone},
	Fdiv:       {"fdiv", LayoutNone},
	Ddiv:       {"ddiv", LayoutNone},
	Irem:       {"irem", LayoutNone},
	Lrem:       {"lrem", LayoutNone},
	Frem:       {"frem", LayoutNone},
	Drem:       {"drem", LayoutNone},
	Ineg:       {"ineg", LayoutNone},
	Lneg:       {"lneg", LayoutNone},
	Fneg:       {"fneg", LayoutNone},
	Dneg:       {"dneg", LayoutNone},
	Ishl:       {"ishl", LayoutNone},
	Lshl:       {"lshl", LayoutNone},
	Ishr:       {"ishr", LayoutNone},
	Lshr:       {"lshr", LayoutNone},
	Iushr:      {"iushr", LayoutNone},
	Lushr:      {"lushr", LayoutNone},
	Iand:       {"iand", LayoutNone},
	Land:       {"land", LayoutNone},
	Ior:        {"ior", LayoutNone},
	Lor:        {"lor", LayoutNone},
	Ixor:       {"ixor", LayoutNone},
	Lxor:       {"lxor", LayoutNone},
	Iinc:       {"iinc", LayoutIinc},
	I2l:        {"i2l", LayoutNone},
	I2f:        {"i2f", LayoutNone},
	I2d:        {"i2d", LayoutNone},
	L2i:        {"l2i", LayoutNone},
	L2f:        {"l2f", LayoutNone},
	L2d:        {"l2d", LayoutNone},
	F2i:        {"f2i", LayoutNone},
	F2l:        {"f2l", LayoutNone},
	F2d:        {"f2d", LayoutNone},
	D2i:        {"d2i", LayoutNone},
	D2l:        {"d2l", LayoutNone},
	D2f:        {"d2f", LayoutNone},
	I2b:        {"i2b", LayoutNone},
	I2c:        {"i2c", LayoutNone},
	I2s:        {"i2s", LayoutNone},
	Lcmp:       {"lcmp", LayoutNone},
	Fcmpl:      {"fcmpl", LayoutNone},
	Fcmpg:      {"fcmpg", LayoutNone},
	Dcmpl:      {"dcmpl", LayoutNone},
	Dcmpg:      {"dcmpg", LayoutNone},
	Ifeq:       {"ifeq", LayoutBranch16},
	Ifne:       {"ifne", LayoutBranch16},
	Iflt:       {"iflt", LayoutBranch16},
	Ifge:       {"ifge", LayoutBranch16},
	Ifgt:       {"ifgt", LayoutBranch16},
	Ifle:       {"ifle", LayoutBranch16},
	IfIcmpeq:   {"if_icmpeq", LayoutBranch16},
	IfIcmpne:   {"if_icmpne", LayoutBranch16},
	IfIcmplt:   {"if_icmplt", LayoutBranch16},
	IfIcmpge:   {"if_icmpge", LayoutBranch16},
	IfIcmpgt:   {"if_icmpgt", LayoutBranch16},
	IfIcmple:   {"if_icmple", LayoutBranch16},
	IfAcmpeq:   {"if_acmpeq", LayoutBranch16},
	IfAcmpne:   {"if_acmpne", LayoutBranch16},
	Goto:       {"goto", LayoutBranch16},
	Jsr:        {"jsr", LayoutBranch16},
	Ret:        {"ret", LayoutLocal8},
	Tableswitch:  {"tableswitch", LayoutTableswitch},
	Lookupswitch: {"lookupswitch", LayoutLookupswitch},
	Ireturn:    {"ireturn", LayoutNone},
	Lreturn:    {"lreturn", LayoutNone},
	Freturn:    {"freturn", LayoutNone},
	Dreturn:    {"dreturn", LayoutNone},
	Areturn:    {"areturn", LayoutNone},
	Return:     {"return", LayoutNone},
	Getstatic:  {"getstatic", LayoutCPIndex16},
	Putstatic:  {"putstatic", LayoutCPIndex16},
	Getfield:   {"getfield", LayoutCPIndex16},
	Putfield:   {"putfield", LayoutCPIndex16},
	Invokevirtual:   {"invokevirtual", LayoutCPIndex16},
	Invokespecial:   {"invokespecial", LayoutCPIndex16},
	Invokestatic:    {"invokestatic", LayoutCPIndex16},
	Invokeinterface: {"invokeinterface", LayoutInvokeInterface},
	Invokedynamic:   {"invokedynamic", LayoutInvokeDynamic},
	New:            {"new", LayoutCPIndex16},
	Newarray:       {"newarray", LayoutNewarray},
	Anewarray:      {"anewarray", LayoutCPIndex16},
	Arraylength:    {"arraylength", LayoutNone},
	Athrow:         {"athrow", LayoutNone},
	Checkcast:      {"checkcast", LayoutCPIndex16},
	Instanceof:     {"instanceof", LayoutCPIndex16},
	Monitorenter:   {"monitorenter", LayoutNone},
	Monitorexit:    {"monitorexit", LayoutNone},
	Multianewarray: {"multianewarray", LayoutMultianewarray},
	Ifnull:         {"ifnull", LayoutBranch16},
	Ifnonnull:      {"ifnonnull", LayoutBranch16},
	GotoW:          {"goto_w", LayoutBranch32},
	JsrW:           {"jsr_w", LayoutBranch32},
}
