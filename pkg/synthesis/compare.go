package synthesis

import (
	"context"
	"sort"

	"github.com/readwell/tomes/pkg/graph"
	"github.com/readwell/tomes/pkg/types"
)

// Comparison is the cross-source output of the compare perspective.
type Comparison struct {
	// Agreements lists concepts the sources share through an agreement
	// edge (related, elaborates, implements).
	Agreements []string `json:"agreements"`
	// Differences lists shared concepts carrying a contradicts edge.
	Differences []string `json:"differences"`
	// UniqueInsights lists concepts covered by exactly one source, keyed
	// by source slug.
	UniqueInsights map[string][]string `json:"unique_insights"`
}

// agreementKinds are the edge kinds that count as cross-source agreement.
var agreementKinds = map[types.RelationshipKind]struct{}{
	types.KindRelated:    {},
	types.KindElaborates: {},
	types.KindImplements: {},
}

// CompareSources computes the agreement/divergence signal between
// per-source concept sets. A concept shared by two or more sources is a
// divergence when any of its edges is a contradicts edge; otherwise it
// is an agreement when it carries at least one agreement-kind edge. A
// contradiction always wins over an agreement on the same concept.
func CompareSources(ctx context.Context, g graph.Store, conceptsBySource map[string][]*types.Concept) (*Comparison, error) {
	sources := make(map[string]map[string]struct{})
	names := make(map[string]string)
	for slug, concepts := range conceptsBySource {
		set := make(map[string]struct{}, len(concepts))
		for _, c := range concepts {
			set[c.ID] = struct{}{}
			if c.DisplayName != "" {
				names[c.ID] = c.DisplayName
			} else {
				names[c.ID] = c.ID
			}
		}
		sources[slug] = set
	}

	coverage := make(map[string][]string)
	for slug, set := range sources {
		for id := range set {
			coverage[id] = append(coverage[id], slug)
		}
	}

	cmp := &Comparison{UniqueInsights: make(map[string][]string)}
	for _, id := range sortedKeys(coverage) {
		slugs := coverage[id]
		if len(slugs) == 1 {
			cmp.UniqueInsights[slugs[0]] = append(cmp.UniqueInsights[slugs[0]], names[id])
			continue
		}

		edges, err := g.Neighbors(ctx, id, nil)
		if err != nil {
			return nil, err
		}
		contradicted := false
		agreed := false
		for _, e := range edges {
			if e.Kind == types.KindContradicts {
				contradicted = true
				break
			}
			if _, ok := agreementKinds[e.Kind]; ok {
				agreed = true
			}
		}
		switch {
		case contradicted:
			cmp.Differences = append(cmp.Differences, names[id])
		case agreed:
			cmp.Agreements = append(cmp.Agreements, names[id])
		}
	}

	sort.Strings(cmp.Agreements)
	sort.Strings(cmp.Differences)
	for slug := range cmp.UniqueInsights {
		sort.Strings(cmp.UniqueInsights[slug])
	}
	return cmp, nil
}
