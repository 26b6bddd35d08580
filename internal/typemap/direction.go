package typemap

import (
	"strings"

	"github.com/hanpama/oasgraph/internal/schema"
)

// Direction selects whether types are built for results or for arguments.
type Direction int

const (
	Output Direction = iota
	Input
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// TypeName applies the direction's naming rule to a sanitized name. Input
// types end in "Input".
func (d Direction) TypeName(name string) string {
	if d == Input && !strings.HasSuffix(name, "Input") {
		return name + "Input"
	}
	return name
}

func (d Direction) compositeKind() schema.TypeKind {
	if d == Input {
		return schema.TypeKindInputObject
	}
	return schema.TypeKindObject
}

// member is a computed field of a composite type before it is turned into a
// schema.Field or schema.InputValue.
type member struct {
	name        string
	description string
	typ         *schema.TypeRef
}

// attachMembers installs the deferred member computation on typ according to
// the direction.
func (d Direction) attachMembers(typ *schema.Type, compute func() ([]member, error)) {
	if d == Input {
		typ.SetInputFieldsThunk(func() ([]*schema.InputValue, error) {
			members, err := compute()
			if err != nil {
				return nil, err
			}
			values := make([]*schema.InputValue, 0, len(members))
			for _, m := range members {
				values = append(values, schema.NewInputValue(m.name, m.description, m.typ))
			}
			return values, nil
		})
		return
	}
	typ.SetFieldsThunk(func() ([]*schema.Field, error) {
		members, err := compute()
		if err != nil {
			return nil, err
		}
		fields := make([]*schema.Field, 0, len(members))
		for _, m := range members {
			fields = append(fields, schema.NewField(m.name, m.description, m.typ))
		}
		return fields, nil
	})
}
