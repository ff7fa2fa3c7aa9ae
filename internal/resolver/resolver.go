// Package resolver implements the module resolver (spec §4.2, component
// C2): an address-keyed store of compiled modules with alias/linkage
// tracking for upgraded packages, grounded on the teacher's
// core/virtual_machine.go module-table pattern (a locked, address-keyed
// registry populated in deterministic insertion order).
package resolver

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"sui-replay/internal/addr"
	"sui-replay/internal/errs"
	"sui-replay/internal/typetag"
)

// typeModelCacheSize bounds the number of per-generation TypeModel builds
// one resolver keeps warm; each resolver owns its own cache and a resolver
// is rebuilt once per replay, so a handful of entries is enough.
const typeModelCacheSize = 8

// LocalModuleResolver is an address-keyed store of compiled modules, with
// the alias/linkage bookkeeping package upgrades require.
type LocalModuleResolver struct {
	modules []entry // insertion order, spec §4.2 "iter_modules in deterministic insertion order"
	byKey   map[string]int

	aliases         map[addr.Address]addr.Address // storage -> runtime
	linkageUpgrades map[addr.Address]addr.Address // runtime -> storage
	packageLinkage  map[addr.Address]map[addr.Address]addr.Address

	modelCache *lru.Cache[string, *typetag.TypeModel]
}

type entry struct {
	storageAddr addr.Address
	module      *typetag.Module
}

func moduleKey(storageAddr addr.Address, name string) string {
	return storageAddr.Hex() + "::" + name
}

// New builds an empty resolver.
func New() *LocalModuleResolver {
	cache, _ := lru.New[string, *typetag.TypeModel](typeModelCacheSize)
	return &LocalModuleResolver{
		byKey:           make(map[string]int),
		aliases:         make(map[addr.Address]addr.Address),
		linkageUpgrades: make(map[addr.Address]addr.Address),
		packageLinkage:  make(map[addr.Address]map[addr.Address]addr.Address),
		modelCache:      cache,
	}
}

// WithSuiFramework returns a resolver preloaded with the framework packages
// at their canonical addresses (spec §4.2 with_sui_framework). The
// framework bytecode itself comes from an external decoder; this resolver
// only records an identity alias for each framework address.
// GetMissingDependencies skips framework addresses on its own.
func WithSuiFramework() *LocalModuleResolver {
	r := New()
	for _, a := range []addr.Address{addr.Sys1, addr.Sys2, addr.Sys3, addr.System} {
		r.aliases[a] = a
	}
	return r
}

// LoadPackageAt inserts all modules of one package loaded at storageAddr.
// If a module's own self-id differs from storageAddr (an upgraded
// package), records the (storage, runtime) alias, and accumulates the
// package's linkage table from its module handles' dependencies.
func (r *LocalModuleResolver) LoadPackageAt(modules []*typetag.Module, storageAddr addr.Address) error {
	for _, m := range modules {
		if m == nil {
			continue
		}
		key := moduleKey(storageAddr, m.Name)
		if idx, ok := r.byKey[key]; ok {
			// Invariant 2: upgraded bytecode wins deterministically; a later
			// LoadPackageAt call for the same storage address replaces it.
			r.modules[idx] = entry{storageAddr: storageAddr, module: m}
			continue
		}
		r.byKey[key] = len(r.modules)
		r.modules = append(r.modules, entry{storageAddr: storageAddr, module: m})

		if m.SelfAddress != storageAddr {
			r.AddAddressAlias(storageAddr, m.SelfAddress)
		}
		if len(m.Dependencies) > 0 {
			linkage := r.packageLinkage[storageAddr]
			if linkage == nil {
				linkage = make(map[addr.Address]addr.Address)
			}
			for _, dep := range m.Dependencies {
				if _, ok := linkage[dep]; !ok {
					linkage[dep] = dep // identity until an explicit override arrives
				}
			}
			r.packageLinkage[storageAddr] = linkage
		}
	}
	return r.checkAcyclic()
}

// AddAddressAlias records an explicit storage->runtime alias override
// (spec §4.2), along with its inverse linkage-upgrade view.
func (r *LocalModuleResolver) AddAddressAlias(storage, runtime addr.Address) {
	r.aliases[storage] = runtime
	r.linkageUpgrades[runtime] = storage
}

// AddLinkageUpgrade records an explicit runtime->storage override.
func (r *LocalModuleResolver) AddLinkageUpgrade(runtime, storage addr.Address) {
	r.linkageUpgrades[runtime] = storage
	r.aliases[storage] = runtime
}

// AddPackageLinkage installs an explicit per-package linkage map supplied
// by the fetcher, overriding any identity defaults accumulated from module
// handles.
func (r *LocalModuleResolver) AddPackageLinkage(storage, runtime addr.Address, linkage map[addr.Address]addr.Address) {
	r.aliases[storage] = runtime
	r.linkageUpgrades[runtime] = storage
	merged := r.packageLinkage[storage]
	if merged == nil {
		merged = make(map[addr.Address]addr.Address)
	}
	for k, v := range linkage {
		merged[k] = v
	}
	r.packageLinkage[storage] = merged
}

// Aliases returns the current storage->runtime alias map, for wiring into
// C4's patch pass and C6's harness setup.
func (r *LocalModuleResolver) Aliases() map[addr.Address]addr.Address {
	out := make(map[addr.Address]addr.Address, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// IterModules visits every loaded module in deterministic insertion order.
func (r *LocalModuleResolver) IterModules(fn func(storageAddr addr.Address, m *typetag.Module)) {
	for _, e := range r.modules {
		fn(e.storageAddr, e.module)
	}
}

// GetModuleByAddrName looks up a loaded module by its storage address and
// name.
func (r *LocalModuleResolver) GetModuleByAddrName(storageAddr addr.Address, name string) (*typetag.Module, bool) {
	idx, ok := r.byKey[moduleKey(storageAddr, name)]
	if !ok {
		return nil, false
	}
	return r.modules[idx].module, true
}

// GetFunctionSignature looks up a function by storage address, module, and
// function name.
func (r *LocalModuleResolver) GetFunctionSignature(storageAddr addr.Address, module, fn string) (typetag.FunctionSignature, bool) {
	m, ok := r.GetModuleByAddrName(storageAddr, module)
	if !ok {
		return typetag.FunctionSignature{}, false
	}
	sig, ok := m.Functions[fn]
	return sig, ok
}

// GetMissingDependencies returns the set of addresses referenced as
// dependencies from loaded modules but not yet present as a storage
// address, excluding framework addresses (spec §4.2).
func (r *LocalModuleResolver) GetMissingDependencies() map[addr.Address]struct{} {
	present := make(map[addr.Address]struct{}, len(r.modules))
	for _, e := range r.modules {
		present[e.storageAddr] = struct{}{}
	}
	missing := make(map[addr.Address]struct{})
	for _, e := range r.modules {
		for _, dep := range e.module.Dependencies {
			if addr.IsFrameworkAddress(dep) {
				continue
			}
			storage := dep
			if s, ok := r.linkageUpgrades[dep]; ok {
				storage = s
			}
			if _, ok := present[storage]; !ok {
				missing[storage] = struct{}{}
			}
		}
	}
	return missing
}

// checkAcyclic enforces invariant 3: the linkage graph is acyclic after
// alias collapse.
func (r *LocalModuleResolver) checkAcyclic() error {
	visited := make(map[addr.Address]int) // 0=unvisited, 1=in-progress, 2=done
	var walk func(a addr.Address) error
	walk = func(a addr.Address) error {
		switch visited[a] {
		case 2:
			return nil
		case 1:
			return errs.Newf(errs.LinkageCycle, "linkage cycle detected at %s", a.Hex())
		}
		visited[a] = 1
		if next, ok := r.aliases[a]; ok && next != a {
			if err := walk(next); err != nil {
				return err
			}
		}
		visited[a] = 2
		return nil
	}
	for a := range r.aliases {
		if err := walk(a); err != nil {
			return err
		}
	}
	return nil
}

// TypeModel builds (or returns a cached) TypeModel for the resolver's
// current module set, cached under the caller-supplied generation key.
// LoadPackageAt does not evict cached entries: a later call with the same
// generation returns the model built before those loads.
func (r *LocalModuleResolver) TypeModel(generation string) (*typetag.TypeModel, bool, string) {
	if m, ok := r.modelCache.Get(generation); ok {
		return m, true, ""
	}
	mods := make([]*typetag.Module, 0, len(r.modules))
	r.IterModules(func(_ addr.Address, m *typetag.Module) { mods = append(mods, m) })
	model, ok, errMsg := typetag.Guarded(mods)
	if ok {
		r.modelCache.Add(generation, model)
	}
	return model, ok, errMsg
}
