package typetag

import (
	"fmt"

	"sui-replay/internal/addr"
)

// TypeModel is the semantic model C1 builds from a set of compiled modules:
// every struct and function signature indexed by its normalized id, so
// resolution doesn't have to re-walk module lists.
type TypeModel struct {
	structs   map[string]StructDef
	functions map[string]FunctionSignature
}

// maxTypeParamDepth bounds recursive type-parameter walking. Bytecode with
// a struct that embeds itself as its own type argument (directly or via a
// cycle through other structs) is deeply malformed; from_modules is
// documented (spec §4.1) as allowed to panic on that input rather than
// infinite-loop, and the orchestrator traps it (see Guarded below).
const maxTypeParamDepth = 64

func structKey(a addr.Address, module, name string) string {
	return a.Hex() + "::" + module + "::" + name
}

func funcKey(a addr.Address, module, name string) string {
	return a.Hex() + "::" + module + "::" + name
}

// FromModules builds a TypeModel from the given decoded modules. It may
// panic if a module's struct definitions are cyclic beyond maxTypeParamDepth
// — callers that need a hard guarantee should go through Guarded.
func FromModules(modules []*Module) *TypeModel {
	m := &TypeModel{
		structs:   make(map[string]StructDef),
		functions: make(map[string]FunctionSignature),
	}
	for _, mod := range modules {
		for name, sd := range mod.Structs {
			m.structs[structKey(mod.SelfAddress, mod.Name, name)] = sd
		}
		for name, fn := range mod.Functions {
			m.functions[funcKey(mod.SelfAddress, mod.Name, name)] = fn
		}
	}
	for key, sd := range m.structs {
		checkCycleDepth(key, sd, m, 0)
	}
	return m
}

// checkCycleDepth panics if a struct's field types nest structs beyond
// maxTypeParamDepth, standing in for "deeply malformed bytecode" (spec
// §4.1) that a real bytecode verifier would have already rejected.
func checkCycleDepth(origin string, sd StructDef, m *TypeModel, depth int) {
	if depth > maxTypeParamDepth {
		panic(fmt.Sprintf("mm2: struct %s exceeds max nesting depth %d", origin, maxTypeParamDepth))
	}
	for _, f := range sd.Fields {
		walkTagDepth(f.Type, m, depth+1, origin)
	}
}

func walkTagDepth(t TypeTag, m *TypeModel, depth int, origin string) {
	if depth > maxTypeParamDepth {
		panic(fmt.Sprintf("mm2: type tag rooted at %s exceeds max nesting depth %d", origin, maxTypeParamDepth))
	}
	switch t.Kind {
	case KVector:
		walkTagDepth(*t.Elem, m, depth+1, origin)
	case KStruct:
		key := structKey(t.Struct.Address, t.Struct.Module, t.Struct.Name)
		if sd, ok := m.structs[key]; ok {
			checkCycleDepth(origin, sd, m, depth+1)
		}
		for _, tp := range t.Struct.TypeParams {
			walkTagDepth(tp, m, depth+1, origin)
		}
	}
}

// LookupStruct finds a struct definition by its normalized address/module/name.
func (m *TypeModel) LookupStruct(a addr.Address, module, name string) (StructDef, bool) {
	sd, ok := m.structs[structKey(a, module, name)]
	return sd, ok
}

// LookupFunction finds a function signature by its normalized
// address/module/name.
func (m *TypeModel) LookupFunction(a addr.Address, module, name string) (FunctionSignature, bool) {
	fn, ok := m.functions[funcKey(a, module, name)]
	return fn, ok
}

// Guarded builds a TypeModel and traps any panic from FromModules into an
// error, matching the spec's mm2_model_ok/mm2_error diagnostic contract: a
// malformed model degrades the replay (synthesis falls back to its stub
// path) rather than crashing it.
func Guarded(modules []*Module) (model *TypeModel, ok bool, errMsg string) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			errMsg = fmt.Sprintf("%v", r)
			model = nil
		}
	}()
	model = FromModules(modules)
	ok = true
	return
}
