// Package descriptor defines the static metadata of component types.
//
// # Why Descriptors Exist
//
// The engine never inspects component implementations directly. Everything
// it needs to know about a filter, transformer or analyzer type (which
// properties it takes, which helpers must be injected, which outcomes a
// filter can produce, whether partial results can be reduced) lives in an
// immutable Descriptor value built once, at registration time.
//
// Descriptors are created with a builder instead of annotations or struct
// tags:
//
//	d := descriptor.NewFilter("null-check", newNullCheck).
//		DisplayName("Null check").
//		InputColumns("columns", cty.DynamicPseudoType).
//		Property("consider_empty_string_as_null", cty.Bool, descriptor.Default(cty.False)).
//		Outcomes("NOT_NULL", "NULL").
//		Build()
//
// Build never fails. Validation happens when the descriptor is registered,
// so malformed component types are rejected with an error naming them.
//
// # Property Ordering
//
// Configured properties enumerate in declaration order, except that
// input-column properties always come first.
package descriptor
