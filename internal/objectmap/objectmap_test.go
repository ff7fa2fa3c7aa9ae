package objectmap

import (
	"encoding/base64"
	"testing"

	"sui-replay/internal/addr"
	"sui-replay/internal/rtypes"
)

func sampleState() *rtypes.ReplayState {
	return &rtypes.ReplayState{
		Objects: map[string]*rtypes.SerializedObject{
			"0x2": {ID: "0x2", Version: 7, TypeTag: "0x2::coin::Coin<0x2::sui::SUI>", BCS: []byte("abc")},
		},
		Packages: map[string]*rtypes.PackageData{
			"0x10": {Address: "0x10", Version: 3},
		},
	}
}

func TestBuildObjectsAndPackages(t *testing.T) {
	m, err := Build(sampleState())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	norm, _ := addr.Normalize("0x2")
	if m.VersionMap[norm] != 7 {
		t.Fatalf("VersionMap[%s] = %d, want 7", norm, m.VersionMap[norm])
	}
	if m.VersionsStr[norm] != 7 {
		t.Fatalf("VersionsStr[%s] = %d, want 7", norm, m.VersionsStr[norm])
	}
	if m.TypeTags[norm] != "0x2::coin::Coin<0x2::sui::SUI>" {
		t.Fatalf("TypeTags[%s] = %q", norm, m.TypeTags[norm])
	}

	pkgNorm, _ := addr.Normalize("0x10")
	if m.VersionMap[pkgNorm] != 3 {
		t.Fatalf("VersionMap[%s] = %d, want 3", pkgNorm, m.VersionMap[pkgNorm])
	}
}

func TestBuildRegistersTriKeyLookups(t *testing.T) {
	m, err := Build(sampleState())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := base64.StdEncoding.EncodeToString([]byte("abc"))

	norm, _ := addr.Normalize("0x2")
	for _, key := range []string{norm, "0x2"} {
		got, ok := m.Get(key)
		if !ok || got != want {
			t.Fatalf("Get(%q) = (%q, %v), want (%q, true)", key, got, ok, want)
		}
	}
}

func TestBuildRejectsMalformedObjectID(t *testing.T) {
	state := &rtypes.ReplayState{
		Objects: map[string]*rtypes.SerializedObject{
			"not-an-address": {ID: "not-an-address", Version: 1},
		},
	}
	if _, err := Build(state); err == nil {
		t.Fatal("expected Build to reject a malformed object id")
	}
}

func TestListIDsIsSorted(t *testing.T) {
	m, err := Build(sampleState())
	if err != nil {
		t.Fatal(err)
	}
	ids := m.ListIDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] > ids[i] {
			t.Fatalf("ListIDs() not sorted: %v", ids)
		}
	}
}

func TestDescribeReturnsOwnershipVersionAndLength(t *testing.T) {
	state := &rtypes.ReplayState{
		Objects: map[string]*rtypes.SerializedObject{
			"0x2": {ID: "0x2", Version: 7, TypeTag: "0x2::coin::Coin<0x2::sui::SUI>", BCS: []byte("abc")},
			"0x3": {ID: "0x3", Version: 1, Shared: true, Mutable: true, BCS: []byte("shared-object")},
			"0x4": {ID: "0x4", Version: 1, Imm: true, BCS: []byte("im")},
		},
	}
	m, err := Build(state)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	norm2, _ := addr.Normalize("0x2")
	desc, ok := m.Describe("0x2")
	if !ok {
		t.Fatal("expected Describe to find 0x2")
	}
	want := ObjectDescriptor{ID: norm2, Ownership: "owned", Version: 7, BCSLength: 3}
	if desc != want {
		t.Fatalf("Describe(0x2) = %+v, want %+v", desc, want)
	}

	if desc, ok := m.Describe("0x3"); !ok || desc.Ownership != "shared" {
		t.Fatalf("Describe(0x3) = %+v, %v, want ownership shared", desc, ok)
	}
	if desc, ok := m.Describe("0x4"); !ok || desc.Ownership != "immutable" {
		t.Fatalf("Describe(0x4) = %+v, %v, want ownership immutable", desc, ok)
	}
}

func TestDescribeMissingReturnsFalse(t *testing.T) {
	m, err := Build(sampleState())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Describe("0xdead"); ok {
		t.Fatal("expected Describe to report not-found for an unknown id")
	}
	// Packages carry no ownership kind and so are not describable this way.
	if _, ok := m.Describe("0x10"); ok {
		t.Fatal("expected Describe to report not-found for a package address")
	}
}

func TestPatchTypeTagsRewritesAndSkipsMalformed(t *testing.T) {
	m := empty()
	storage := mustParse(t, "0x200")
	m.TypeTags["obj1"] = "0x2::coin::Coin<0x2::sui::SUI>"
	m.TypeTags["obj2"] = "not a type tag(("

	// 0x2 (the tag's embedded package address) aliases to storage, so both
	// the outer type and its type argument should be rewritten.
	aliases := map[addr.Address]addr.Address{addr.Sys2: storage}
	if err := m.PatchTypeTags(aliases); err != nil {
		t.Fatalf("PatchTypeTags: %v", err)
	}
	want := storage.Hex() + "::coin::Coin<" + storage.Hex() + "::sui::SUI>"
	if m.TypeTags["obj1"] != want {
		t.Fatalf("TypeTags[obj1] = %q, want %q", m.TypeTags["obj1"], want)
	}
	if m.TypeTags["obj2"] != "not a type tag((" {
		t.Fatalf("expected malformed tag to be left untouched, got %q", m.TypeTags["obj2"])
	}
}

func mustParse(t *testing.T, s string) addr.Address {
	t.Helper()
	a, err := addr.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return a
}
