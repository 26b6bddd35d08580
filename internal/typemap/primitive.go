package typemap

import "github.com/hanpama/oasgraph/internal/oas"

// ResolvePrimitive maps a scalar node to a built-in GraphQL scalar name.
// int64 values travel as String since they may not fit in a GraphQL Int.
// Unknown kinds resolve to String.
func ResolvePrimitive(format, kind string) string {
	if format == "int64" {
		kind = string(oas.KindString)
	}
	switch oas.Kind(kind) {
	case oas.KindString, oas.KindDate:
		return "String"
	case oas.KindInteger:
		return "Int"
	case oas.KindNumber:
		return "Float"
	case oas.KindBoolean:
		return "Boolean"
	}
	return "String"
}
