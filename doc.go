// Package tomes indexes a personal book library and answers
// natural-language questions over it by combining semantic vector search
// with traversal of a hand-curated, typed concept graph.
//
// The Library type is the entry point: it owns the metadata store, the
// vector index, and the concept graph, and exposes search, advise,
// compare, trace, and explore operations with token-budgeted,
// detail-scoped responses. Every surfaced result carries a citation
// back to its source passage.
//
//	cfg, _ := config.Load()
//	lib, err := tomes.Open(ctx, cfg, logger)
//	if err != nil { ... }
//	defer lib.Close(ctx)
//
//	resp, err := lib.Search(ctx, types.RetrievalRequest{
//		Query:  "how do I help a child name a big feeling",
//		Detail: types.DetailSummaries,
//		Limit:  5,
//	})
package tomes
