//go:build darwin || linux || freebsd

package swe

import (
	"fmt"
	"strings"

	"github.com/ebitengine/purego"
)

// Open loads the engine library at path and binds every primitive once.
// A primitive that cannot be found under any of its candidate names fails
// the load; nothing is resolved per call.
func Open(path string) (Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("failed to load ephemeris library %q: %w", path, err)
	}

	var fn primitives

	bindings := []struct {
		name string
		fptr any
	}{
		{"swe_julday", &fn.julday},
		{"swe_calc_ut", &fn.calcUT},
		{"swe_revjul", &fn.revjul},
		{"swe_set_ephe_path", &fn.setEphePath},
		{"swe_set_topo", &fn.setTopo},
		{"swe_azalt", &fn.azalt},
		{"swe_close", &fn.close},
	}

	for _, b := range bindings {
		sym, err := lookup(handle, b.name)
		if err != nil {
			_ = purego.Dlclose(handle)
			return nil, err
		}

		purego.RegisterFunc(b.fptr, sym)
	}

	return newLib(fn, func() error { return purego.Dlclose(handle) }), nil
}

// lookup resolves a primitive under each of its known export names.
func lookup(handle uintptr, name string) (uintptr, error) {
	candidates := symbolCandidates(name)
	for _, candidate := range candidates {
		if sym, err := purego.Dlsym(handle, candidate); err == nil && sym != 0 {
			return sym, nil
		}
	}

	return 0, fmt.Errorf("%w: %s (tried %s)", ErrSymbolMissing, name, strings.Join(candidates, ", "))
}
