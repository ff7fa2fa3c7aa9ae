package typetag

import (
	"testing"

	"sui-replay/internal/addr"
)

func TestFromModulesLookup(t *testing.T) {
	a := addr.Sys2
	mod := &Module{
		SelfAddress: a,
		Name:        "coin",
		Structs: map[string]StructDef{
			"Coin": {Name: "Coin", Abilities: []string{"key", "store"}},
		},
		Functions: map[string]FunctionSignature{
			"mint": {Name: "mint", Entry: true},
		},
	}
	model := FromModules([]*Module{mod})

	sd, ok := model.LookupStruct(a, "coin", "Coin")
	if !ok || !sd.HasAbility("key") {
		t.Fatalf("LookupStruct failed or missing ability: %+v, %v", sd, ok)
	}
	fn, ok := model.LookupFunction(a, "coin", "mint")
	if !ok || !fn.Entry {
		t.Fatalf("LookupFunction failed: %+v, %v", fn, ok)
	}

	if _, ok := model.LookupStruct(a, "coin", "Nope"); ok {
		t.Fatal("expected lookup of an unknown struct to fail")
	}
}

func TestGuardedRecoversFromDeepNesting(t *testing.T) {
	a := addr.Sys2
	// A self-referential struct whose field type embeds itself drives
	// checkCycleDepth past maxTypeParamDepth.
	selfRef := TypeTag{Kind: KStruct, Struct: &StructTag{Address: a, Module: "m", Name: "Node"}}
	mod := &Module{
		SelfAddress: a,
		Name:        "m",
		Structs: map[string]StructDef{
			"Node": {Name: "Node", Fields: []FieldDef{{Name: "next", Type: selfRef}}},
		},
	}

	model, ok, errMsg := Guarded([]*Module{mod})
	if ok {
		t.Fatal("expected Guarded to report failure on a self-referential struct")
	}
	if model != nil {
		t.Fatal("expected a nil model on failure")
	}
	if errMsg == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestGuardedSucceedsOnWellFormedModules(t *testing.T) {
	a := addr.Sys2
	mod := &Module{
		SelfAddress: a,
		Name:        "m",
		Structs: map[string]StructDef{
			"Plain": {Name: "Plain", Fields: []FieldDef{{Name: "v", Type: TypeTag{Kind: KU64}}}},
		},
	}
	model, ok, errMsg := Guarded([]*Module{mod})
	if !ok {
		t.Fatalf("Guarded failed unexpectedly: %s", errMsg)
	}
	if _, found := model.LookupStruct(a, "m", "Plain"); !found {
		t.Fatal("expected Plain to be found in the model")
	}
}

func TestClassifyParam(t *testing.T) {
	a := addr.Sys2
	mod := &Module{
		SelfAddress: a,
		Name:        "coin",
		Structs: map[string]StructDef{
			"Coin":    {Name: "Coin", Abilities: []string{"key"}},
			"Wrapper": {Name: "Wrapper"},
		},
	}
	model := FromModules([]*Module{mod})

	keyTag := TypeTag{Kind: KStruct, Struct: &StructTag{Address: a, Module: "coin", Name: "Coin"}}
	if ClassifyParam(keyTag, model) != ParamObject {
		t.Fatal("expected a struct with the key ability to classify as ParamObject")
	}

	nonKeyTag := TypeTag{Kind: KStruct, Struct: &StructTag{Address: a, Module: "coin", Name: "Wrapper"}}
	if ClassifyParam(nonKeyTag, model) != ParamPure {
		t.Fatal("expected a struct without the key ability to classify as ParamPure")
	}

	if ClassifyParam(TypeTag{Kind: KU64}, model) != ParamPure {
		t.Fatal("expected a primitive to classify as ParamPure")
	}

	unknownTag := TypeTag{Kind: KStruct, Struct: &StructTag{Address: a, Module: "coin", Name: "Nope"}}
	if ClassifyParam(unknownTag, nil) != ParamPure {
		t.Fatal("expected a nil model to classify any struct as ParamPure")
	}
	_ = unknownTag
}
