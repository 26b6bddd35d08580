package introspection

import (
	"slices"

	schema "github.com/hanpama/oasgraph/internal/schema"
)

var (
	str     = schema.NamedType("String")
	boolean = schema.NamedType("Boolean")
)

func nonNull(name string) *schema.TypeRef { return schema.NonNullType(schema.NamedType(name)) }

// listOf is [name!]; required makes the list itself non-null too.
func listOf(name string, required bool) *schema.TypeRef {
	l := schema.ListType(nonNull(name))
	if required {
		return schema.NonNullType(l)
	}
	return l
}

func includeDeprecated() *schema.InputValue {
	return schema.NewInputValue("includeDeprecated", "", boolean).SetDefault(false)
}

// extend returns a copy of sch with the introspection types registered and
// __schema and __type added to a copy of the query root. sch is not changed.
func extend(sch *schema.Schema) *schema.Schema {
	out := schema.NewSchema(sch.Description)
	out.QueryType = sch.QueryType
	out.MutationType = sch.MutationType
	out.SubscriptionType = sch.SubscriptionType
	for name, t := range sch.Types {
		out.Types[name] = t
	}
	for name, d := range sch.Directives {
		out.Directives[name] = d
	}
	for _, t := range metaTypes() {
		out.AddType(t)
	}

	if q := sch.GetQueryType(); q != nil {
		root := schema.NewType(q.Name, q.Kind, q.Description)
		root.Interfaces = q.Interfaces
		root.Fields = append(slices.Clone(q.GetOrderedFields()),
			schema.NewField("__schema", "Access the current type schema of this server.", nonNull("__Schema")),
			schema.NewField("__type", "Request the type information of a single type.", schema.NamedType("__Type")).
				AddArgument(schema.NewInputValue("name", "The name of the type to look up.", nonNull("String"))),
		)
		out.AddType(root)
	}
	return out
}

func object(name, description string, fields ...*schema.Field) *schema.Type {
	t := schema.NewType(name, schema.TypeKindObject, description)
	t.Fields = fields
	return t
}

func enum(name string, values ...string) *schema.Type {
	t := schema.NewType(name, schema.TypeKindEnum, "")
	for _, v := range values {
		t.AddEnumValue(schema.NewEnumValue(v, ""))
	}
	return t
}

func metaTypes() []*schema.Type {
	f := schema.NewField
	return []*schema.Type{
		object("__Schema", "A GraphQL Schema defines the capabilities of a GraphQL server.",
			f("description", "", str),
			f("types", "A list of all types supported by this server.", listOf("__Type", true)),
			f("queryType", "The type that query operations will be rooted at.", nonNull("__Type")),
			f("mutationType", "If this server supports mutation, the type that mutation operations will be rooted at.", schema.NamedType("__Type")),
			f("subscriptionType", "If this server supports subscription, the type that subscription operations will be rooted at.", schema.NamedType("__Type")),
			f("directives", "A list of all directives supported by this server.", listOf("__Directive", true)),
		),
		object("__Type", "",
			f("kind", "", nonNull("__TypeKind")),
			f("name", "", str),
			f("description", "", str),
			f("specifiedByURL", "", str),
			f("fields", "", listOf("__Field", false)).AddArgument(includeDeprecated()),
			f("interfaces", "", listOf("__Type", false)),
			f("possibleTypes", "", listOf("__Type", false)),
			f("enumValues", "", listOf("__EnumValue", false)).AddArgument(includeDeprecated()),
			f("inputFields", "", listOf("__InputValue", false)).AddArgument(includeDeprecated()),
			f("ofType", "", schema.NamedType("__Type")),
			f("isOneOf", "", boolean),
		),
		object("__Field", "",
			f("name", "", nonNull("String")),
			f("description", "", str),
			f("args", "", listOf("__InputValue", true)).AddArgument(includeDeprecated()),
			f("type", "", nonNull("__Type")),
			f("isDeprecated", "", nonNull("Boolean")),
			f("deprecationReason", "", str),
		),
		object("__InputValue", "",
			f("name", "", nonNull("String")),
			f("description", "", str),
			f("type", "", nonNull("__Type")),
			f("defaultValue", "", str),
			f("isDeprecated", "", nonNull("Boolean")),
			f("deprecationReason", "", str),
		),
		object("__EnumValue", "",
			f("name", "", nonNull("String")),
			f("description", "", str),
			f("isDeprecated", "", nonNull("Boolean")),
			f("deprecationReason", "", str),
		),
		object("__Directive", "",
			f("name", "", nonNull("String")),
			f("description", "", str),
			f("isRepeatable", "", nonNull("Boolean")),
			f("locations", "", listOf("__DirectiveLocation", true)),
			f("args", "", listOf("__InputValue", true)).AddArgument(includeDeprecated()),
		),
		enum("__TypeKind", "SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL"),
		enum("__DirectiveLocation",
			"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
			"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
			"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
			"INPUT_FIELD_DEFINITION"),
	}
}
