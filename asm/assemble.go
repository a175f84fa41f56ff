package asm

import (
	"bytes"

	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/classfile"
	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/insn"
	"github.com/go-classfile/jcfg/trace"
	"github.com/go-classfile/jcfg/verify"
	"github.com/go-classfile/jcfg/vtype"
)

// minStackMapVersion is the class-file major version stack-map frames
// became mandatory (J2SE 6 / JVMS 50.0); classes below it keep running
// the old type-inference verifier and never carry a StackMapTable.
const minStackMapVersion = 50

// Assemble lowers g back into a Code attribute: block layout
// (BuildLayout), offset fixup (AssignOffsets), exception table
// synthesis (BuildExceptionTable) and, when classVersion is new enough
// and no jsr/ret remains in the laid-out bytecode, stack-map frame
// computation (ComputeFrames, CompressFrames) — spec.md §4.5.
//
// res is the trace this method was last analysed under; pool is
// mutated to intern any constant a synthesized frame or exception
// catch type needs (safe here: assembly is single-threaded per method,
// spec.md §5). seedLocals is the method's bootstrap local types (the
// same ones trace.Seed derived the initial frame from), used as the
// baseline the first explicit frame's delta is computed against.
func Assemble(g *cfg.Graph, res *trace.Result, pool *cpool.Pool, env *vtype.Environment, seedLocals []vtype.Type, classVersion uint16, opts ...Option) (*classfile.Code, error) {
	conf := DefaultConfig()
	for _, o := range opts {
		o(&conf)
	}

	log := &verify.Log{}
	log.Merge(res.Errors)

	lay := BuildLayout(g, res, conf)
	AssignOffsets(lay)

	var buf bytes.Buffer
	for _, u := range lay.Units {
		for _, in := range u.Instrs {
			if err := insn.Encode(&buf, in); err != nil {
				log.Add(verify.InvalidBlock, verify.Block(int32(u.Block)), "encoding instruction: %v", err)
			}
		}
	}

	code := &classfile.Code{
		MaxStack:   uint16(res.MaxStack),
		MaxLocals:  uint16(res.MaxLocals),
		Bytes:      buf.Bytes(),
		Exceptions: BuildExceptionTable(g, lay, pool),
	}

	if classVersion >= minStackMapVersion && !hasLiveJsr(lay) {
		sites := ComputeFrames(lay, res, env, log)
		if len(sites) > 0 {
			newOffsets := lay.FinalizeNewOffsets()
			frames := CompressFrames(env, pool, newOffsets, seedLocals, sites)
			info, err := classfile.EncodeStackMapTable(frames)
			if err != nil {
				log.Add(verify.InvalidBlock, verify.Block(0), "encoding StackMapTable: %v", err)
			} else {
				code.Attributes = append(code.Attributes, classfile.Attribute{
					NameIndex: pool.AddString("StackMapTable"),
					Info:      info,
				})
			}
		}
	}

	if !log.Empty() && conf.DoRaise {
		return code, newAssembleError(log)
	}
	return code, nil
}

func hasLiveJsr(lay *Layout) bool {
	for _, u := range lay.Units {
		for _, in := range u.Instrs {
			if in.Op == insn.Jsr || in.Op == insn.JsrW || in.Op == insn.Ret {
				return true
			}
		}
	}
	return false
}
