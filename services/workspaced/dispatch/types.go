// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dispatch

import (
	"github.com/AleutianAI/workspaced/pkg/jsonvalue"
)

// =============================================================================
// SEMANTIC TYPES
// =============================================================================

// Kind is the semantic type a parameter declares.
type Kind int

const (
	// KindAny accepts every non-null JSON-like value.
	KindAny Kind = iota

	// KindBool accepts booleans.
	KindBool

	// KindInt accepts integral numbers held in integer types or integral
	// json.Number values. float64 never matches, even when integral.
	KindInt

	// KindNumber accepts any number.
	KindNumber

	// KindString accepts strings.
	KindString

	// KindArray accepts arrays, checking elements against Type.Elem when set.
	KindArray

	// KindObject accepts string-keyed maps.
	KindObject
)

// String returns the kind's name as used in signatures.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Type is a parameter's declared semantic type.
type Type struct {
	Kind Kind

	// Nullable allows null in addition to the kind's values.
	Nullable bool

	// Elem constrains array elements. nil accepts any element.
	Elem *Type
}

// Predeclared types.
var (
	Any     = Type{Kind: KindAny}
	Bool    = Type{Kind: KindBool}
	Int     = Type{Kind: KindInt}
	Number  = Type{Kind: KindNumber}
	String  = Type{Kind: KindString}
	Array   = Type{Kind: KindArray}
	Object  = Type{Kind: KindObject}
	Strings = ArrayOf(String)
)

// ArrayOf returns an array type whose elements must match elem.
func ArrayOf(elem Type) Type {
	return Type{Kind: KindArray, Elem: &elem}
}

// Nullable returns t that also accepts null.
func Nullable(t Type) Type {
	t.Nullable = true
	return t
}

// String renders the type, e.g. "int", "string?", "array<string>".
func (t Type) String() string {
	s := t.Kind.String()
	if t.Kind == KindArray && t.Elem != nil {
		s += "<" + t.Elem.String() + ">"
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

// Matches reports whether v structurally matches t.
func (t Type) Matches(v any) bool {
	k := jsonvalue.KindOf(v)
	if k == jsonvalue.KindNull {
		return t.Nullable
	}
	if k == jsonvalue.KindInvalid {
		return false
	}

	switch t.Kind {
	case KindAny:
		return true
	case KindBool:
		return k == jsonvalue.KindBool
	case KindInt:
		return k == jsonvalue.KindInt
	case KindNumber:
		return k.IsNumber()
	case KindString:
		return k == jsonvalue.KindString
	case KindObject:
		return k == jsonvalue.KindObject
	case KindArray:
		if k != jsonvalue.KindArray {
			return false
		}
		if t.Elem == nil {
			return true
		}
		items, _ := jsonvalue.AsArray(v)
		for _, item := range items {
			if !t.Elem.Matches(item) {
				return false
			}
		}
		return true
	}
	return false
}

// =============================================================================
// PARAMETERS
// =============================================================================

// Param declares one operation parameter.
type Param struct {
	Name string
	Type Type

	// Default is used when the caller omits the argument. Only meaningful
	// when HasDefault is set.
	Default    any
	HasDefault bool
}

// P declares a required parameter.
func P(name string, t Type) Param {
	return Param{Name: name, Type: t}
}

// Opt declares a parameter with a default.
func Opt(name string, t Type, def any) Param {
	return Param{Name: name, Type: t, Default: def, HasDefault: true}
}

// String renders the parameter, e.g. "file string" or "limit int = 10".
func (p Param) String() string {
	s := p.Name + " " + p.Type.String()
	if p.HasDefault {
		s += " = " + formatDefault(p.Default)
	}
	return s
}
