package orchestrator

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"sui-replay/internal/addr"
	"sui-replay/internal/errs"
	"sui-replay/internal/rtypes"
)

// preparedContextObjectForm is the object-form prepared-context shape
// (spec §6): { "packages": { "0x..": ["<base64 module>", ...] } }.
type preparedContextObjectForm struct {
	Packages map[string][]string `json:"packages"`

	Aliases           map[string]string            `json:"aliases"`
	LinkageUpgrades   map[string]string             `json:"linkage_upgrades"`
	PackageRuntimeIDs map[string]string             `json:"package_runtime_ids"`
	PackageLinkage    map[string]map[string]string  `json:"package_linkage"`
	PackageVersions   map[string]uint64             `json:"package_versions"`
}

// preparedContextArrayForm is the array-form (CLI v2) prepared-context
// shape (spec §6).
type preparedContextArrayForm struct {
	Packages []struct {
		Address   string   `json:"address"`
		Modules   []string `json:"modules"`
		Bytecodes []string `json:"bytecodes"`
	} `json:"packages"`

	Aliases           map[string]string           `json:"aliases"`
	LinkageUpgrades   map[string]string            `json:"linkage_upgrades"`
	PackageRuntimeIDs map[string]string            `json:"package_runtime_ids"`
	PackageLinkage    map[string]map[string]string `json:"package_linkage"`
	PackageVersions   map[string]uint64            `json:"package_versions"`
}

// PreparedContext is the parsed, shape-agnostic form both prepared-context
// JSON variants normalize to.
type PreparedContext struct {
	// Packages maps a canonical address to raw (name, bytecode) pairs,
	// ready for an external decoder to turn into typetag.Module values.
	Packages map[string][]PreparedModule

	Aliases           map[string]string
	LinkageUpgrades   map[string]string
	PackageRuntimeIDs map[string]string
	PackageLinkage    map[string]map[string]string
	PackageVersions   map[string]uint64
}

// PreparedModule is one raw module entry from a prepared-context file.
type PreparedModule struct {
	Name     string
	Bytecode []byte
}

// ParsePreparedContext accepts either prepared-context JSON shape (spec
// §6) and normalizes it.
func ParsePreparedContext(raw []byte) (*PreparedContext, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, errs.Wrap(errs.BadType, err, "parse prepared context")
	}
	pkgsRaw, ok := probe["packages"]
	if !ok {
		return nil, errs.New(errs.BadType, "prepared context missing \"packages\"")
	}

	var arrayProbe []json.RawMessage
	isArray := json.Unmarshal(pkgsRaw, &arrayProbe) == nil

	pc := &PreparedContext{Packages: make(map[string][]PreparedModule)}

	if isArray {
		var af preparedContextArrayForm
		if err := json.Unmarshal(raw, &af); err != nil {
			return nil, errs.Wrap(errs.BadType, err, "parse array-form prepared context")
		}
		for _, p := range af.Packages {
			norm, err := addr.Normalize(p.Address)
			if err != nil {
				return nil, err
			}
			mods, err := decodePreparedModules(p.Modules, p.Bytecodes)
			if err != nil {
				return nil, err
			}
			pc.Packages[norm] = mods
		}
		pc.Aliases, pc.LinkageUpgrades = af.Aliases, af.LinkageUpgrades
		pc.PackageRuntimeIDs, pc.PackageLinkage, pc.PackageVersions = af.PackageRuntimeIDs, af.PackageLinkage, af.PackageVersions
		return pc, nil
	}

	var of preparedContextObjectForm
	if err := json.Unmarshal(raw, &of); err != nil {
		return nil, errs.Wrap(errs.BadType, err, "parse object-form prepared context")
	}
	for addrStr, b64s := range of.Packages {
		norm, err := addr.Normalize(addrStr)
		if err != nil {
			return nil, err
		}
		mods := make([]PreparedModule, 0, len(b64s))
		for i, b64 := range b64s {
			bz, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return nil, errs.Wrapf(errs.BadType, err, "decode module bytecode for %s", norm)
			}
			mods = append(mods, PreparedModule{Name: modulePlaceholderName(i), Bytecode: bz})
		}
		pc.Packages[norm] = mods
	}
	pc.Aliases, pc.LinkageUpgrades = of.Aliases, of.LinkageUpgrades
	pc.PackageRuntimeIDs, pc.PackageLinkage, pc.PackageVersions = of.PackageRuntimeIDs, of.PackageLinkage, of.PackageVersions
	return pc, nil
}

func decodePreparedModules(names, b64s []string) ([]PreparedModule, error) {
	mods := make([]PreparedModule, 0, len(b64s))
	for i, b64 := range b64s {
		bz, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, errs.Wrapf(errs.BadType, err, "decode module bytecode at index %d", i)
		}
		name := modulePlaceholderName(i)
		if i < len(names) {
			name = names[i]
		}
		mods = append(mods, PreparedModule{Name: name, Bytecode: bz})
	}
	return mods, nil
}

func modulePlaceholderName(i int) string {
	return "module_" + strconv.Itoa(i)
}

// mergeIntoPackages merges a prepared context's raw packages into state's
// package map as PackageData with undecoded modules awaiting an external
// decoder (spec §6 prepared-context bullet: "merged into packages before
// step 2"). Decoding is deferred to the caller that owns a PackageDecoder.
func mergeIntoPackages(state *rtypes.ReplayState, pc *PreparedContext) {
	if pc == nil {
		return
	}
	for addrStr, mods := range pc.Packages {
		entries := make([]rtypes.ModuleEntry, 0, len(mods))
		for _, m := range mods {
			entries = append(entries, rtypes.ModuleEntry{Name: m.Name, Bytecode: m.Bytecode})
		}
		version := pc.PackageVersions[addrStr]
		state.Packages[addrStr] = &rtypes.PackageData{
			Address: addrStr,
			Version: version,
			Modules: entries,
			Linkage: pc.PackageLinkage[addrStr],
		}
	}
}
