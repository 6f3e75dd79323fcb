// Package wgslc compiles WGSL (WebGPU Shading Language) source code to
// SPIR-V binaries.
//
// The pipeline has three stages, each usable on its own:
//  1. wgsl  — lex and parse source, lower the syntax tree to typed IR
//  2. ir    — validate the typed module
//  3. spirv — emit the SPIR-V instruction stream
//
// Example:
//
//	source := `
//	@vertex
//	fn main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
//	    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
//	}
//	`
//	spv, err := wgslc.Translate(source, wgslc.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
package wgslc

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/wgslc/ir"
	"github.com/gogpu/wgslc/spirv"
	"github.com/gogpu/wgslc/wgsl"
)

// Options configures translation.
type Options struct {
	// SPIRVVersion is the version declared in the output header
	// (default 1.3).
	SPIRVVersion spirv.Version

	// DebugNames emits OpName/OpMemberName debug instructions.
	DebugNames bool

	// SkipValidation bypasses the IR validator. Only safe for input
	// already known to be valid; the back end assumes a well-formed
	// module.
	SkipValidation bool
}

// DefaultOptions returns the options Translate is normally used with:
// SPIR-V 1.3, debug names on, validation on.
func DefaultOptions() Options {
	return Options{
		SPIRVVersion: spirv.DefaultOptions().Version,
		DebugNames:   true,
	}
}

// Translate compiles WGSL source to a little-endian SPIR-V binary.
//
// The stages run in order: parse, lower to IR, validate (unless
// skipped), emit. The error returned is the typed error of the failing
// stage (wgsl.SourceError, *ir.ValidationError), wrapped with the stage
// name.
func Translate(source string, opts Options) ([]byte, error) {
	module, err := wgsl.Lower(source)
	if err != nil {
		return nil, fmt.Errorf("front end: %w", err)
	}
	if !opts.SkipValidation {
		if err := ir.Validate(module); err != nil {
			return nil, fmt.Errorf("validation: %w", err)
		}
	}
	words, err := spirv.Compile(module, spirv.Options{
		Version:    opts.SPIRVVersion,
		DebugNames: opts.DebugNames,
	})
	if err != nil {
		return nil, fmt.Errorf("spirv: %w", err)
	}
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out, nil
}

// Check parses and validates source without emitting anything.
func Check(source string) error {
	module, err := wgsl.Lower(source)
	if err != nil {
		return err
	}
	return ir.Validate(module)
}
