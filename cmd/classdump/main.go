// Command classdump prints the structure of one or more JVM class
// files: the constant pool, fields and methods, and, on request, a
// control-flow disassembly and a fresh trace/assemble round-trip of
// every method's Code attribute (spec.md §4).
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/go-classfile/jcfg/asm"
	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/classfile"
	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/disasm"
	"github.com/go-classfile/jcfg/insn"
	"github.com/go-classfile/jcfg/trace"
	"github.com/go-classfile/jcfg/vtype"
)

func main() {
	app := &cli.App{
		Name:      "classdump",
		Usage:     "inspect JVM class files",
		ArgsUsage: "file1.class [file2.class [...]]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "headers", Aliases: []string{"h"}, Usage: "print the class header and member summary"},
			&cli.BoolFlag{Name: "pool", Aliases: []string{"s"}, Usage: "print the full constant pool"},
			&cli.BoolFlag{Name: "disasm", Aliases: []string{"d"}, Usage: "disassemble method bodies as a control-flow graph"},
			&cli.BoolFlag{Name: "details", Aliases: []string{"x"}, Usage: "trace every method and print its verifier findings, recomputed exception table and stack-map frame count"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored output"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one class file is required", 1)
	}
	if !c.Bool("headers") && !c.Bool("pool") && !c.Bool("disasm") && !c.Bool("details") {
		return cli.Exit("at least one of -h, -s, -d or -x must be given", 1)
	}
	if c.Bool("no-color") {
		color.NoColor = true
	}

	for i, fname := range c.Args().Slice() {
		if i > 0 {
			fmt.Println()
		}
		if err := process(c, fname); err != nil {
			return cli.Exit(fmt.Sprintf("%s: %v", fname, err), 1)
		}
	}
	return nil
}

func process(c *cli.Context, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return err
	}
	defer f.Close()

	cf, poolErrs, err := classfile.ReadClass(f)
	if cf == nil {
		return err
	}
	for _, e := range poolErrs {
		color.Yellow("warning: %s: constant pool: %v", fname, e)
	}
	if err != nil {
		color.Yellow("warning: %s: truncated read: %v", fname, err)
	}

	if c.Bool("headers") {
		printHeaders(fname, cf)
	}
	if c.Bool("pool") {
		printPool(cf)
	}
	if c.Bool("disasm") {
		printDisasm(cf)
	}
	if c.Bool("details") {
		printDetails(cf)
	}
	return nil
}

var classAccessFlags = []struct {
	mask uint16
	name string
}{
	{0x0001, "public"}, {0x0010, "final"}, {0x0020, "super"},
	{0x0200, "interface"}, {0x0400, "abstract"}, {0x1000, "synthetic"},
	{0x2000, "annotation"}, {0x4000, "enum"}, {0x8000, "module"},
}

var methodAccessFlags = []struct {
	mask uint16
	name string
}{
	{0x0001, "public"}, {0x0002, "private"}, {0x0004, "protected"},
	{0x0008, "static"}, {0x0010, "final"}, {0x0020, "synchronized"},
	{0x0040, "bridge"}, {0x0080, "varargs"}, {0x0100, "native"},
	{0x0400, "abstract"}, {0x0800, "strict"}, {0x1000, "synthetic"},
}

func formatFlags(flags uint16, table []struct {
	mask uint16
	name string
}) string {
	var names []string
	for _, f := range table {
		if flags&f.mask != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "(none)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += " " + n
	}
	return out
}

func printHeaders(fname string, cf *classfile.ClassFile) {
	bold := color.New(color.Bold)
	bold.Printf("%s: class file version %d.%d\n\n", fname, cf.MajorVersion, cf.MinorVersion)

	fmt.Printf("  this class:  %s\n", cf.ThisClassName())
	if super := cf.SuperClassName(); super != "" {
		fmt.Printf("  super class: %s\n", super)
	}
	fmt.Printf("  flags:       %s\n", formatFlags(cf.AccessFlags, classAccessFlags))
	if len(cf.Interfaces) > 0 {
		fmt.Printf("  interfaces:\n")
		for _, idx := range cf.Interfaces {
			fmt.Printf("    - %s\n", classNameAt(cf.ConstantPool, idx))
		}
	}
	fmt.Printf("  constant pool: %d entries\n", cf.ConstantPool.Len()-1)
	fmt.Printf("  fields:        %d\n", len(cf.Fields))
	fmt.Printf("  methods:       %d\n", len(cf.Methods))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"", "name", "descriptor", "flags"})
	for _, m := range cf.Fields {
		table.Append([]string{"field", m.Name(cf.ConstantPool), m.Descriptor(cf.ConstantPool), formatFlags(m.AccessFlags, methodAccessFlags)})
	}
	for _, m := range cf.Methods {
		table.Append([]string{"method", m.Name(cf.ConstantPool), m.Descriptor(cf.ConstantPool), formatFlags(m.AccessFlags, methodAccessFlags)})
	}
	table.Render()
}

func classNameAt(pool *cpool.Pool, idx int) string {
	if c, ok := pool.Get(idx).(cpool.Class); ok {
		return c.Name
	}
	return fmt.Sprintf("#%d", idx)
}

func printPool(cf *classfile.ClassFile) {
	fmt.Printf("constant pool:\n")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "tag", "value"})
	pool := cf.ConstantPool
	for i := 1; i < pool.Len(); i++ {
		c := pool.Get(i)
		if _, ok := c.(cpool.Index); ok {
			continue // unused continuation slot after a Long/Double
		}
		table.Append([]string{fmt.Sprintf("%d", i), fmt.Sprintf("%d", c.Tag()), c.String()})
	}
	table.Render()
}

func printDisasm(cf *classfile.ClassFile) {
	fmt.Printf("code disassembly:\n")
	for _, m := range cf.Methods {
		code, err := m.Code(cf.ConstantPool)
		if err != nil {
			color.Red("  %s%s: could not decode Code attribute: %v", m.Name(cf.ConstantPool), m.Descriptor(cf.ConstantPool), err)
			continue
		}
		if code == nil {
			continue
		}
		fmt.Printf("\n%s%s:\n", m.Name(cf.ConstantPool), m.Descriptor(cf.ConstantPool))

		g, dlog, err := disasm.Disassemble(code, cf.ConstantPool)
		if err != nil {
			color.Red("  could not disassemble: %v", err)
			continue
		}
		for _, e := range dlog.Errors() {
			color.Yellow("  %s", e.Error())
		}
		printGraph(g)
	}
}

func printGraph(g *cfg.Graph) {
	blocks := g.Blocks()
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Label < blocks[j].Label })

	for _, b := range blocks {
		if b.Label == cfg.ReturnLabel || b.Label == cfg.RethrowLabel {
			continue
		}
		tag := ""
		if b.Inline {
			tag = " (inline)"
		}
		color.New(color.FgCyan).Printf("block %d%s:\n", b.Label, tag)
		for _, in := range b.Instrs {
			fmt.Printf("  %6d: %s\n", in.Offset, in.String())
		}
		for _, e := range g.Out(b.Label) {
			fmt.Printf("    -> %s %d", e.Kind, e.To)
			if e.Throwable != "" {
				fmt.Printf(" [%s]", e.Throwable)
			}
			fmt.Println()
		}
	}
}

// printDetails re-traces every method's Code attribute from scratch
// and reports what the trace and a fresh assemble round-trip found:
// verifier errors, max_stack/max_locals, the resulting exception
// table, and the number of stack-map frames.
func printDetails(cf *classfile.ClassFile) {
	env := vtype.NewEnvironment()
	fmt.Printf("method details:\n")

	for _, m := range cf.Methods {
		code, err := m.Code(cf.ConstantPool)
		if err != nil || code == nil {
			continue
		}
		name := m.Name(cf.ConstantPool) + m.Descriptor(cf.ConstantPool)
		fmt.Printf("\n%s:\n", name)

		g, dlog, err := disasm.Disassemble(code, cf.ConstantPool)
		if err != nil {
			color.Red("  could not disassemble: %v", err)
			continue
		}
		for _, e := range dlog.Errors() {
			color.Yellow("  %s", e.Error())
		}

		params, _, _, err := insn.ParseMethodDescriptor(env, m.Descriptor(cf.ConstantPool))
		if err != nil {
			color.Red("  bad descriptor: %v", err)
			continue
		}
		seedMethod := trace.Method{
			OwnerClass:  cf.ThisClassName(),
			Static:      m.AccessFlags&0x0008 != 0,
			Constructor: m.Name(cf.ConstantPool) == "<init>",
			Params:      params,
		}
		seed := trace.Seed(env, seedMethod)

		res := trace.Run(g, &insn.Context{Env: env, Pool: cf.ConstantPool}, seed, trace.Options{})
		fmt.Printf("  max_stack=%d max_locals=%d\n", res.MaxStack, res.MaxLocals)

		if !res.Errors.Empty() {
			color.Red("  verifier findings:")
			for _, e := range res.Errors.Errors() {
				color.Red("    %s", e.Error())
			}
		}

		seedLocals := make([]vtype.Type, res.MaxLocals)
		for i := range seedLocals {
			seedLocals[i] = env.TopT()
		}
		for _, idx := range seed.LocalIndices() {
			if idx >= len(seedLocals) {
				continue
			}
			if e, err := seed.Get(idx); err == nil {
				seedLocals[idx] = e.Type
			}
		}

		newCode, err := asm.Assemble(g, res, cf.ConstantPool, env, seedLocals, cf.MajorVersion, asm.WithDoRaise(false))
		if err != nil {
			color.Red("  assemble: %v", err)
			continue
		}
		fmt.Printf("  exception table: %d entries\n", len(newCode.Exceptions))
		for _, e := range newCode.Exceptions {
			fmt.Printf("    [%d, %d) -> %d (catch %s)\n", e.StartPC, e.EndPC, e.HandlerPC, classNameAt(cf.ConstantPool, e.CatchType))
		}

		frames, err := newCode.StackMapTable(cf.ConstantPool)
		if err != nil {
			color.Red("  decoding recomputed StackMapTable: %v", err)
			continue
		}
		fmt.Printf("  stack map frames: %d\n", len(frames))
	}
}
