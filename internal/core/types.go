// Package core defines the type-resolved core AST and type model that the
// rest of this module consumes. Parsing, name resolution, and type
// inference are external collaborators (see spec.md §1); this package is
// only the shared vocabulary their output is expressed in.
package core

import (
	"sort"
	"strings"
)

// Type is a resolved Morel core type: primitive, tuple, record, list, bag,
// datatype, or function (spec.md §3).
type Type interface {
	// IsCollection reports whether values of this type are bag-like
	// (unordered, duplicates significant) rather than list-like.
	IsCollection() bool
	String() string
}

// Primitive is one of the scalar base types.
type Primitive string

const (
	Bool   Primitive = "bool"
	Char   Primitive = "char"
	Int    Primitive = "int"
	Real   Primitive = "real"
	String Primitive = "string"
	Unit   Primitive = "unit"
)

// PrimitiveType wraps a Primitive as a Type.
type PrimitiveType struct{ Name Primitive }

func (PrimitiveType) IsCollection() bool  { return false }
func (p PrimitiveType) String() string    { return string(p.Name) }

// TupleType is a positional product type.
type TupleType struct{ Args []Type }

func (TupleType) IsCollection() bool { return false }
func (t TupleType) String() string {
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return "(" + strings.Join(parts, " * ") + ")"
}

// RecordField is one named, typed member of a RecordType, always stored
// ordered by field name (spec.md §3: "record (named, ordered by field
// name)").
type RecordField struct {
	Name string
	Type Type
}

// RecordType is a named product type, canonically ordered by field name.
type RecordType struct{ Fields []RecordField }

// NewRecordType sorts fields by name and returns the canonical RecordType.
func NewRecordType(fields []RecordField) RecordType {
	sorted := append([]RecordField(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return RecordType{Fields: sorted}
}

func (RecordType) IsCollection() bool { return false }
func (r RecordType) String() string {
	parts := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		parts[i] = f.Name + ":" + f.Type.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FieldIndex returns the position of name in canonical field order, or -1.
func (r RecordType) FieldIndex(name string) int {
	for i, f := range r.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// ListType is an ordered collection type.
type ListType struct{ Elem Type }

func (ListType) IsCollection() bool { return false }
func (l ListType) String() string   { return l.Elem.String() + " list" }

// BagType is an unordered multiset collection type.
type BagType struct{ Elem Type }

func (BagType) IsCollection() bool { return true }
func (b BagType) String() string   { return b.Elem.String() + " bag" }

// Constructor is one named alternative of a DatatypeType, with an
// optional argument type (nil for a nullary constructor).
type Constructor struct {
	Name string
	Arg  Type // nil if nullary
}

// DatatypeType is a sum of named constructors. Collection marks a
// datatype that behaves as a bag (spec.md §3: "isCollection
// distinguishes bag-like datatypes from lists").
type DatatypeType struct {
	Name         string
	Constructors []Constructor
	Collection   bool
}

func (d DatatypeType) IsCollection() bool { return d.Collection }
func (d DatatypeType) String() string     { return d.Name }

// FunctionType is a single-argument function type (multi-argument
// functions are expressed via a tupled parameter, matching the core
// AST's curried-or-tupled application convention).
type FunctionType struct {
	Param  Type
	Result Type
}

func (FunctionType) IsCollection() bool { return false }
func (f FunctionType) String() string   { return f.Param.String() + " -> " + f.Result.String() }
