package rg

// AliasPool is the optional pass spec.md §9 permits: "implementers may
// optionally add an alias-pool pass without changing the observable
// contract." Off by default (GraphOptions.EnableAliasing == false), in
// which case every owned image still gets its own distinct physical
// texture, exactly matching the spec's default behavior.
//
// When enabled, AliasPool groups owned, non-persistent, non-resizable
// images whose compiled lifetimes ([first_pass, last_pass]) don't overlap
// into the same alias group. Grouping is advisory bookkeeping only here —
// physical sharing would require the renderer facade to expose memory
// aliasing, which spec.md §6.3 does not, so AliasPool currently records
// which images could share backing without changing what realize()
// allocates. That's the hook a backend with real aliasing support would
// extend.
type AliasPool struct {
	groups [][]ImageHandle
}

func newAliasPool() *AliasPool {
	return &AliasPool{}
}

// plan recomputes alias groups for the current compile's lifetimes. It
// never mutates realize()'s behavior today (see type doc); it exists so a
// backend-specific realize() override can consult Groups().
func (ap *AliasPool) plan(g *Graph, order []int) {
	ap.groups = ap.groups[:0]

	type candidate struct {
		handle ImageHandle
		first  int
		last   int
	}
	var candidates []candidate
	g.images.each(func(h Handle, img *rgImage) {
		if img.imported.set || img.flags.has(FlagPersistent) || img.flags.has(FlagExternal) || img.flags.has(FlagResizable) {
			return
		}
		if img.lastPass < img.firstPass {
			return
		}
		candidates = append(candidates, candidate{handle: ImageHandle{h}, first: img.firstPass, last: img.lastPass})
	})

	used := make([]bool, len(candidates))
	for i := range candidates {
		if used[i] {
			continue
		}
		group := []ImageHandle{candidates[i].handle}
		groupLast := candidates[i].last
		used[i] = true
		for j := i + 1; j < len(candidates); j++ {
			if used[j] {
				continue
			}
			if candidates[j].first > groupLast {
				group = append(group, candidates[j].handle)
				groupLast = candidates[j].last
				used[j] = true
			}
		}
		if len(group) > 1 {
			ap.groups = append(ap.groups, group)
		}
	}
}

// Groups returns the alias groups computed by the most recent plan call.
func (ap *AliasPool) Groups() [][]ImageHandle { return ap.groups }
