package lumen

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
)

// Context accumulates a host's native surface across one or more Modules
// before Build freezes it into a runtime.RuntimeContext (spec.md §6.1). It
// wraps a runtime.Builder rather than replacing it: Builder already fails
// closed on a duplicate function or type hash registered directly, but a
// host composing several Modules wants the conflict attributed to the
// offending module's Name rather than a bare hash, which is what Install
// adds on top.
type Context struct {
	builder *runtime.Builder

	installedTypeHashes     mapset.Set[typeid.Hash]
	installedFunctionHashes mapset.Set[typeid.Hash]
	installedModules        []string
	built                   bool
}

// NewContext returns an empty Context ready to Install Modules into.
func NewContext() *Context {
	return &Context{
		builder:                 runtime.NewBuilder(),
		installedTypeHashes:     mapset.NewSet[typeid.Hash](),
		installedFunctionHashes: mapset.NewSet[typeid.Hash](),
	}
}

// Install registers every function, type, and protocol implementation m
// contributes. Type and function hash conflicts are scanned for up front
// across m's own entries and everything already installed, so a conflict
// fails closed before any of m's registrations take effect — no partial
// install of a rejected module (spec.md §6.1's "module conflicts").
func (c *Context) Install(m Module) error {
	if c.built {
		return fmt.Errorf("lumen: module %q: Context already built, no further Install calls allowed", m.Name)
	}
	seen := mapset.NewSet[typeid.Hash]()
	for _, t := range m.Types {
		if seen.Contains(t.Hash) || c.installedTypeHashes.Contains(t.Hash) {
			return diag.New(diag.KindDuplicateTypeHash,
				"module %q: type hash %#x (%s) conflicts with an already-installed type", m.Name, t.Hash, t.Name)
		}
		seen.Add(t.Hash)
	}
	seen = mapset.NewSet[typeid.Hash]()
	for _, f := range m.Functions {
		if seen.Contains(f.Hash) || c.installedFunctionHashes.Contains(f.Hash) {
			return diag.New(diag.KindDuplicateTypeHash,
				"module %q: function hash %#x conflicts with an already-installed function", m.Name, f.Hash)
		}
		seen.Add(f.Hash)
	}

	for _, t := range m.Types {
		if err := c.builder.RegisterType(t); err != nil {
			return err
		}
		c.installedTypeHashes.Add(t.Hash)
	}
	for _, f := range m.Functions {
		if err := c.builder.RegisterFunction(f.Hash, f.ArgCount, f.Func); err != nil {
			return err
		}
		c.installedFunctionHashes.Add(f.Hash)
	}
	for _, p := range m.Protocols {
		c.builder.RegisterProtocol(p.TypeHash, p.Protocol, p.Func)
	}
	c.installedModules = append(c.installedModules, m.Name)
	return nil
}

// Modules lists the names of every Module installed so far, in install
// order.
func (c *Context) Modules() []string {
	return append([]string(nil), c.installedModules...)
}

// Build freezes the accumulated registrations into an immutable
// RuntimeContext shareable across every Vm the host constructs. Matching
// runtime.Builder's own contract, the Context must not be installed into
// again afterward — Build claims the underlying maps for the frozen
// RuntimeContext rather than copying them.
func (c *Context) Build() *runtime.RuntimeContext {
	c.built = true
	return c.builder.Build()
}
