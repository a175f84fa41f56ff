package insn

import (
	"fmt"
	"strings"

	"github.com/go-classfile/jcfg/vtype"
)

// BadDescriptor is returned when a field or method descriptor string
// does not follow JVMS §4.3 grammar.
type BadDescriptor struct {
	Descriptor string
}

func (e BadDescriptor) Error() string {
	return fmt.Sprintf("insn: malformed descriptor %q", e.Descriptor)
}

// parseFieldType parses one field-descriptor element starting at
// pos, returning the type, the position just past it, and any error.
func parseFieldType(env *vtype.Environment, d string, pos int) (vtype.Type, int, error) {
	if pos >= len(d) {
		return vtype.Type{}, pos, BadDescriptor{d}
	}
	switch d[pos] {
	case 'B', 'C', 'I', 'S', 'Z':
		return env.IntT(), pos + 1, nil
	case 'F':
		return env.FloatT(), pos + 1, nil
	case 'J':
		return env.LongT(), pos + 1, nil
	case 'D':
		return env.DoubleT(), pos + 1, nil
	case 'L':
		end := strings.IndexByte(d[pos:], ';')
		if end < 0 {
			return vtype.Type{}, pos, BadDescriptor{d}
		}
		name := d[pos+1 : pos+end]
		return env.Reference(name), pos + end + 1, nil
	case '[':
		elem, next, err := parseFieldType(env, d, pos+1)
		if err != nil {
			return vtype.Type{}, pos, err
		}
		return env.ArrayOf(elem), next, nil
	}
	return vtype.Type{}, pos, BadDescriptor{d}
}

// ParseFieldDescriptor parses a complete field descriptor such as
// "I" or "[Ljava/lang/String;".
func ParseFieldDescriptor(env *vtype.Environment, d string) (vtype.Type, error) {
	t, next, err := parseFieldType(env, d, 0)
	if err != nil {
		return vtype.Type{}, err
	}
	if next != len(d) {
		return vtype.Type{}, BadDescriptor{d}
	}
	return t, nil
}

// ParseMethodDescriptor parses a method descriptor such as
// "(ILjava/lang/String;)Z" into its parameter types (in order) and
// its return type ("V" returns the zero Type with no error and
// hasReturn=false since void pushes nothing).
func ParseMethodDescriptor(env *vtype.Environment, d string) (params []vtype.Type, ret vtype.Type, hasReturn bool, err error) {
	if len(d) == 0 || d[0] != '(' {
		return nil, vtype.Type{}, false, BadDescriptor{d}
	}
	pos := 1
	for pos < len(d) && d[pos] != ')' {
		var t vtype.Type
		t, pos, err = parseFieldType(env, d, pos)
		if err != nil {
			return nil, vtype.Type{}, false, err
		}
		params = append(params, t)
	}
	if pos >= len(d) {
		return nil, vtype.Type{}, false, BadDescriptor{d}
	}
	pos++ // skip ')'
	if pos < len(d) && d[pos] == 'V' {
		return params, vtype.Type{}, false, nil
	}
	ret, _, err = parseFieldType(env, d, pos)
	if err != nil {
		return nil, vtype.Type{}, false, err
	}
	return params, ret, true, nil
}
