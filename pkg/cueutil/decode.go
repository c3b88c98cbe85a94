// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
)

// Decode compiles data as CUE, unifies it with the schema definition at
// definition (for example "#Scene"), validates it and decodes it into a T.
func Decode[T any](schema []byte, definition string, data []byte, opts ...Option) (*T, error) {
	o := applyOptions(opts)
	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	user := ctx.CompileBytes(data, cue.Filename(o.filename))
	if user.Err() != nil {
		return nil, FormatError(user.Err(), o.filename)
	}
	return decodeUnified[T](ctx, schema, definition, user, o)
}

// DecodeValue is Decode for data that was already parsed by another decoder
// (YAML, JSON into maps). The value is encoded into CUE and then validated
// against the same schema, so every input format shares one set of rules.
func DecodeValue[T any](schema []byte, definition string, data any, opts ...Option) (*T, error) {
	o := applyOptions(opts)
	ctx := cuecontext.New()
	user := ctx.Encode(data)
	if user.Err() != nil {
		return nil, FormatError(user.Err(), o.filename)
	}
	return decodeUnified[T](ctx, schema, definition, user, o)
}

// Marshal renders v as CUE source. Struct values are written as a file body
// without the enclosing braces.
func Marshal(v any) ([]byte, error) {
	ctx := cuecontext.New()
	val := ctx.Encode(v)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("encode cue value: %w", err)
	}

	node := val.Syntax(cue.Final(), cue.Concrete(true))
	if lit, ok := node.(*ast.StructLit); ok {
		node = &ast.File{Decls: lit.Elts}
	}

	out, err := format.Node(node, format.Simplify())
	if err != nil {
		return nil, fmt.Errorf("format cue source: %w", err)
	}
	return out, nil
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.filename == "" {
		o.filename = "<input>"
	}
	return o
}

func decodeUnified[T any](ctx *cue.Context, schema []byte, definition string, user cue.Value, o options) (*T, error) {
	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: compile schema: %w", schemaValue.Err())
	}

	root := schemaValue.LookupPath(cue.ParsePath(definition))
	if root.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", definition, root.Err())
	}

	unified := root.Unify(user)
	var err error
	if o.concrete {
		err = unified.Validate(cue.Concrete(true))
	} else {
		err = unified.Validate()
	}
	if err != nil {
		return nil, FormatError(err, o.filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, o.filename)
	}
	return &result, nil
}
