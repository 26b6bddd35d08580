package schema

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Render prints s as SDL. Types and directives are sorted by name; the
// standard scalars and directives and the introspection types and fields
// are omitted. Deferred members are forced,
// so s should already have resolved without errors.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	w := &sdlWriter{}
	w.schemaDefinition(s)

	names := make([]string, 0, len(s.Types))
	for name, t := range s.Types {
		if strings.HasPrefix(name, "__") || t.Kind == TypeKindScalar && IsBuiltinScalar(name) && name != JSONScalarName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w.typeDefinition(s.Types[name])
	}

	names = names[:0]
	for name, d := range s.Directives {
		if d != includeDirective && d != skipDirective {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		w.directiveDefinition(s.Directives[name])
	}

	return strings.TrimRight(w.String(), "\n") + "\n"
}

type sdlWriter struct {
	strings.Builder
}

func (w *sdlWriter) printf(format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

func (w *sdlWriter) description(desc, indent string) {
	if desc == "" {
		return
	}
	w.printf("%s\"\"\"\n%s%s\n%s\"\"\"\n", indent, indent, strings.ReplaceAll(desc, `"`, `\"`), indent)
}

// schemaDefinition prints a schema block when the roots are not named
// after their operations or the schema carries a description.
func (w *sdlWriter) schemaDefinition(s *Schema) {
	roots := [][3]string{
		{"query", "Query", s.QueryType},
		{"mutation", "Mutation", s.MutationType},
		{"subscription", "Subscription", s.SubscriptionType},
	}
	conventional := true
	for _, r := range roots {
		if r[2] != "" && r[2] != r[1] {
			conventional = false
		}
	}
	if conventional && s.Description == "" {
		return
	}
	w.description(s.Description, "")
	w.WriteString("schema {\n")
	for _, r := range roots {
		if r[2] != "" {
			w.printf("  %s: %s\n", r[0], r[2])
		}
	}
	w.WriteString("}\n\n")
}

func (w *sdlWriter) typeDefinition(t *Type) {
	w.description(t.Description, "")
	switch t.Kind {
	case TypeKindScalar:
		w.printf("scalar %s", t.Name)
		if t.SpecifiedByURL != nil {
			w.printf(" @specifiedBy(url: %s)", strconv.Quote(*t.SpecifiedByURL))
		}
		w.WriteString("\n")
	case TypeKindEnum:
		w.printf("enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			w.description(v.Description, "  ")
			w.printf("  %s%s\n", v.Name, deprecated(v.IsDeprecated, v.DeprecationReason))
		}
		w.WriteString("}\n")
	case TypeKindInputObject:
		w.printf("input %s", t.Name)
		if t.OneOf {
			w.WriteString(" @oneOf")
		}
		w.WriteString(" {\n")
		for _, f := range t.GetOrderedInputFields() {
			w.description(f.Description, "  ")
			w.printf("  %s%s\n", inputValue(f), deprecated(f.IsDeprecated, f.DeprecationReason))
		}
		w.WriteString("}\n")
	case TypeKindObject, TypeKindInterface:
		keyword := "type"
		if t.Kind == TypeKindInterface {
			keyword = "interface"
		}
		w.printf("%s %s", keyword, t.Name)
		if len(t.Interfaces) > 0 {
			w.printf(" implements %s", strings.Join(t.Interfaces, " & "))
		}
		w.WriteString(" {\n")
		for _, f := range t.GetOrderedFields() {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			w.description(f.Description, "  ")
			w.printf("  %s%s: %s%s\n", f.Name, arguments(f.Arguments), f.Type, deprecated(f.IsDeprecated, f.DeprecationReason))
		}
		w.WriteString("}\n")
	case TypeKindUnion:
		w.printf("union %s = %s\n", t.Name, strings.Join(t.PossibleTypes, " | "))
	}
	w.WriteString("\n")
}

func (w *sdlWriter) directiveDefinition(d *Directive) {
	w.description(d.Description, "")
	w.printf("directive @%s%s", d.Name, arguments(d.Arguments))
	if d.IsRepeatable {
		w.WriteString(" repeatable")
	}
	w.printf(" on %s\n\n", strings.Join(d.Locations, " | "))
}

func arguments(args []*InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = inputValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func inputValue(v *InputValue) string {
	s := v.Name + ": " + v.Type.String()
	if v.DefaultValue != nil {
		s += " = " + valueLiteral(v.DefaultValue)
	}
	return s
}

func deprecated(is bool, reason string) string {
	switch {
	case !is:
		return ""
	case reason == "":
		return " @deprecated"
	default:
		return " @deprecated(reason: " + strconv.Quote(reason) + ")"
	}
}

func typeRefString(t *TypeRef) string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNamed:
		return t.Named
	case TypeRefKindList:
		return "[" + typeRefString(t.OfType) + "]"
	case TypeRefKindNonNull:
		return typeRefString(t.OfType) + "!"
	}
	return ""
}

// valueLiteral prints a default value. Unknown values, such as enum names,
// print unquoted.
func valueLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int, int32, int64:
		return fmt.Sprint(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = valueLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + valueLiteral(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(value)
}
