package typetag

import "sui-replay/internal/addr"

// Module is the decoded form of one compiled Move module. Real Move
// bytecode parsing is an external decoder's concern (spec §1); this struct
// is what that decoder is assumed to hand back — the signature pool and
// module-handle table already walked into Go values, which is what C1's
// "walk bytecode signatures" and "classify params" operate on.
type Module struct {
	// SelfAddress is the address the module's own module handle declares
	// (its self-id), which may differ from the storage address it is
	// loaded at after an upgrade.
	SelfAddress addr.Address
	Name        string

	// Dependencies lists the runtime addresses of packages this module's
	// other module handles reference. The storage address currently
	// serving each one is supplied out-of-band via PackageData.Linkage.
	Dependencies []addr.Address

	Functions map[string]FunctionSignature
	Structs   map[string]StructDef
}

// FunctionSignature describes one function's parameter and return shape.
type FunctionSignature struct {
	Name    string
	Params  []TypeTag
	Returns []TypeTag
	Entry   bool
}

// StructDef describes one struct's fields and abilities.
type StructDef struct {
	Name      string
	Fields    []FieldDef
	Abilities []string
}

// FieldDef is one field of a StructDef.
type FieldDef struct {
	Name string
	Type TypeTag
}

// HasAbility reports whether the struct declares the named ability
// ("key", "store", "copy", "drop").
func (s StructDef) HasAbility(name string) bool {
	for _, a := range s.Abilities {
		if a == name {
			return true
		}
	}
	return false
}

// ParamKind classifies a function parameter the way the VM harness needs to
// decide whether an Argument resolves to an inline pure value or an object
// reference.
type ParamKind int

const (
	ParamPure ParamKind = iota
	ParamObject
	ParamImmutableRef
	ParamMutableRef
)

// ClassifyParam inspects t (and, for structs, whether the struct has the
// "key" ability) to decide how the executor should resolve an argument
// bound to this parameter.
//
// vector<u8> and the primitive kinds are always pure; a struct with the
// "key" ability is an object parameter; any other struct is treated as a
// pure value (e.g. a non-key wrapper type passed by value).
func ClassifyParam(t TypeTag, model *TypeModel) ParamKind {
	switch t.Kind {
	case KStruct:
		if model != nil {
			if def, ok := model.LookupStruct(t.Struct.Address, t.Struct.Module, t.Struct.Name); ok {
				if def.HasAbility("key") {
					return ParamObject
				}
			}
		}
		return ParamPure
	default:
		return ParamPure
	}
}
