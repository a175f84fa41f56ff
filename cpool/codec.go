package cpool

import (
	"math"

	"github.com/go-classfile/jcfg/classfile/mutf8"
)

func float32bits(f float32) uint32    { return math.Float32bits(f) }
func float32frombits(b uint32) float32 { return math.Float32frombits(b) }
func float64bits(f float64) uint64    { return math.Float64bits(f) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

func decodeModifiedUTF8(b []byte) string { return mutf8.Decode(b) }
func encodeModifiedUTF8(s string) []byte { return mutf8.Encode(s) }
