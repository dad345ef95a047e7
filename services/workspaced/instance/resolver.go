// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package instance

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveOptions adjusts Resolve.
type ResolveOptions struct {
	// Component restricts root matching and the final fallback to
	// instances with that component bound. Empty means no filter.
	Component string

	// Fallback returns the first eligible instance when nothing matched.
	Fallback bool

	// ForceDependency consults dependency roots even when a workspace root
	// matched. The longer matching prefix wins; on a tie the workspace
	// root wins.
	ForceDependency bool
}

// Match describes how Resolve selected an instance.
type Match int

const (
	// MatchNone means nothing was selected.
	MatchNone Match = iota

	// MatchRoot means the instance root prefixes the path.
	MatchRoot

	// MatchDependency means one of the instance's dependency roots
	// prefixes the path.
	MatchDependency

	// MatchFallback means the instance was the first eligible one.
	MatchFallback
)

// String returns a human-readable match name.
func (m Match) String() string {
	names := []string{"none", "root", "dependency", "fallback"}
	if int(m) < len(names) {
		return names[m]
	}
	return "unknown"
}

// Resolve selects the instance that should serve path.
//
// Description:
//
//	1. Among instances passing the component filter, the one whose root is
//	   the longest path prefix of path.
//	2. When step 1 found nothing (or ForceDependency), across all
//	   instances, the owner of the single longest dependency root that
//	   prefixes path.
//	3. When still unresolved and Fallback is set, the first instance
//	   passing the filter.
//
//	Prefix tests respect path boundaries: /proj contains /proj/x but not
//	/project.
//
// Inputs:
//
//	path - File or directory path. Normalized before matching.
//	opts - Filter and fallback behavior.
//
// Outputs:
//
//	*Instance - The selected instance, or nil.
//	Match - How it was selected.
func (m *Manager) Resolve(path string, opts ResolveOptions) (*Instance, Match) {
	instances := m.List()

	target, ok := lookupKey(path)
	if !ok {
		return fallback(instances, opts)
	}

	best, bestLen := longestRoot(instances, target, opts.Component)
	if best != nil && !opts.ForceDependency {
		return best, MatchRoot
	}

	dep, depLen := longestDependency(instances, target)
	switch {
	case best != nil && (dep == nil || bestLen >= depLen):
		return best, MatchRoot
	case dep != nil:
		return dep, MatchDependency
	}
	return fallback(instances, opts)
}

// Best is Resolve returning only the instance.
func (m *Manager) Best(path string, opts ResolveOptions) (*Instance, bool) {
	inst, match := m.Resolve(path, opts)
	return inst, match != MatchNone
}

func eligible(inst *Instance, component string) bool {
	return component == "" || inst.Has(component)
}

func longestRoot(instances []*Instance, target, component string) (*Instance, int) {
	var best *Instance
	bestLen := -1
	for _, inst := range instances {
		if !eligible(inst, component) {
			continue
		}
		if hasPathPrefix(target, inst.key) && len(inst.key) > bestLen {
			best, bestLen = inst, len(inst.key)
		}
	}
	return best, bestLen
}

func longestDependency(instances []*Instance, target string) (*Instance, int) {
	var best *Instance
	bestLen := -1
	for _, inst := range instances {
		for _, root := range inst.DependencyRoots() {
			key := pathKey(root)
			if hasPathPrefix(target, key) && len(key) > bestLen {
				best, bestLen = inst, len(key)
			}
		}
	}
	return best, bestLen
}

func fallback(instances []*Instance, opts ResolveOptions) (*Instance, Match) {
	if !opts.Fallback {
		return nil, MatchNone
	}
	for _, inst := range instances {
		if eligible(inst, opts.Component) {
			return inst, MatchFallback
		}
	}
	return nil, MatchNone
}
