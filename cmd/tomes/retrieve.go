package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/readwell/tomes"
	"github.com/readwell/tomes/pkg/synthesis"
	"github.com/readwell/tomes/pkg/types"
)

var (
	searchSources  []string
	searchSubjects []string
	searchTopics   []string
	searchDetail   string
	searchLimit    int
	searchBudget   int

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Run hybrid retrieval for a query",
		Long: `Search the library with combined semantic and concept-graph
retrieval. Results are ranked, deduplicated, and rendered at the
requested detail level (citations, summaries, passages).`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	adviseSources     []string
	adviseSubjects    []string
	adviseTopics      []string
	advisePerspective string
	adviseNoCitations bool

	adviseCmd = &cobra.Command{
		Use:   "advise <question>",
		Short: "Answer a question with a synthesized, cited narrative",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAdvise,
	}

	compareSources []string

	compareCmd = &cobra.Command{
		Use:   "compare <topic>",
		Short: "Compare what different books say about a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCompare,
	}

	traceKinds     []string
	traceDepth     int
	traceNoSources bool

	traceCmd = &cobra.Command{
		Use:   "trace <concept-id>",
		Short: "Walk the concept graph outward from one concept",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrace,
	}

	exploreDetail string

	exploreCmd = &cobra.Command{
		Use:   "explore [path]",
		Short: "Browse the library by subject, book, and chapter",
		Long: `Browse the library structurally. With no path, subjects are
listed; a subject lists its books; "subject/slug" lists a book's
chapters.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExplore,
	}
)

func init() {
	searchCmd.Flags().StringSliceVar(&searchSources, "sources", nil, "Restrict to these book slugs")
	searchCmd.Flags().StringSliceVar(&searchSubjects, "subjects", nil, "Restrict to these subjects")
	searchCmd.Flags().StringSliceVar(&searchTopics, "topics", nil, "Restrict to books that discuss these topics")
	searchCmd.Flags().StringVar(&searchDetail, "detail", "summaries", "Detail level (citations, summaries, passages)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum results (0 uses the configured default)")
	searchCmd.Flags().IntVar(&searchBudget, "budget", 0, "Token budget for the rendered output (0 = unlimited)")

	adviseCmd.Flags().StringSliceVar(&adviseSources, "sources", nil, "Restrict to these book slugs")
	adviseCmd.Flags().StringSliceVar(&adviseSubjects, "subjects", nil, "Restrict to these subjects")
	adviseCmd.Flags().StringSliceVar(&adviseTopics, "topics", nil, "Restrict to books that discuss these topics")
	adviseCmd.Flags().StringVar(&advisePerspective, "perspective", "unified", "Synthesis perspective (unified, by_source, compare)")
	adviseCmd.Flags().BoolVar(&adviseNoCitations, "no-citations", false, "Omit the citation list")

	compareCmd.Flags().StringSliceVar(&compareSources, "sources", nil, "Books to compare (default: all)")

	traceCmd.Flags().StringSliceVar(&traceKinds, "kinds", nil, "Relationship kinds to follow (default: all)")
	traceCmd.Flags().IntVar(&traceDepth, "depth", 1, "Maximum traversal depth")
	traceCmd.Flags().BoolVar(&traceNoSources, "no-sources", false, "Omit source attribution per concept")

	exploreCmd.Flags().StringVar(&exploreDetail, "detail", "summaries", "Detail level (citations, summaries, passages)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(adviseCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(exploreCmd)
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	detail, err := types.ParseDetailLevel(searchDetail)
	if err != nil {
		return err
	}

	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		resp, err := lib.Search(ctx, types.RetrievalRequest{
			Query:       strings.Join(args, " "),
			Scope:       types.Scope{Sources: searchSources, Subjects: searchSubjects, Topics: searchTopics},
			Detail:      detail,
			Limit:       searchLimit,
			TokenBudget: searchBudget,
		})
		if err != nil {
			return err
		}

		printWarnings(resp.Warnings)
		if len(resp.Entries) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for i, entry := range resp.Entries {
			fmt.Printf("%2d. [%.3f] (%s)\n%s\n\n", i+1, entry.Score, entry.Origin, entry.Text)
		}
		if resp.Truncated {
			fmt.Println("(output truncated by token budget)")
		}
		return nil
	})
}

func runAdvise(cmd *cobra.Command, args []string) error {
	perspective, err := synthesis.ParsePerspective(advisePerspective)
	if err != nil {
		return err
	}

	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		advice, err := lib.Advise(ctx, strings.Join(args, " "),
			types.Scope{Sources: adviseSources, Subjects: adviseSubjects, Topics: adviseTopics},
			perspective, !adviseNoCitations)
		if err != nil {
			return err
		}

		printWarnings(advice.Warnings)
		fmt.Println(advice.Narrative)
		if len(advice.Citations) > 0 {
			fmt.Println("\nSources:")
			for _, c := range advice.Citations {
				fmt.Printf("  %s\n", c.String())
			}
		}
		return nil
	})
}

func runCompare(cmd *cobra.Command, args []string) error {
	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		result, err := lib.Compare(ctx, strings.Join(args, " "), compareSources)
		if err != nil {
			return err
		}

		printWarnings(result.Warnings)
		if result.Narrative != "" {
			fmt.Println(result.Narrative)
			fmt.Println()
		}
		printSection("Agreements", result.Agreements)
		printSection("Differences", result.Differences)
		if len(result.UniqueInsights) > 0 {
			fmt.Println("Unique insights:")
			for slug, insights := range result.UniqueInsights {
				fmt.Printf("  %s:\n", slug)
				for _, insight := range insights {
					fmt.Printf("    - %s\n", insight)
				}
			}
		}
		return nil
	})
}

func printSection(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}

func runTrace(cmd *cobra.Command, args []string) error {
	kinds := make([]types.RelationshipKind, 0, len(traceKinds))
	for _, raw := range traceKinds {
		kind := types.RelationshipKind(raw)
		if !types.ValidRelationshipKind(kind) {
			return fmt.Errorf("unknown relationship kind %q (valid: %v)", raw, types.RelationshipKinds())
		}
		kinds = append(kinds, kind)
	}

	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		trace, err := lib.TraceConcept(ctx, args[0], kinds, traceDepth, !traceNoSources)
		if err != nil {
			return err
		}

		printWarnings(trace.Warnings)
		for _, entry := range trace.Entries {
			indent := strings.Repeat("  ", entry.Depth)
			fmt.Printf("%s%s (%s)", indent, entry.DisplayName, entry.ConceptID)
			if len(entry.Path) > 0 {
				kinds := make([]string, len(entry.Path))
				for i, k := range entry.Path {
					kinds[i] = string(k)
				}
				fmt.Printf(" via %s", strings.Join(kinds, " > "))
			}
			if len(entry.Sources) > 0 {
				fmt.Printf(" [%s]", strings.Join(entry.Sources, ", "))
			}
			fmt.Println()
		}
		return nil
	})
}

func runExplore(cmd *cobra.Command, args []string) error {
	detail, err := types.ParseDetailLevel(exploreDetail)
	if err != nil {
		return err
	}
	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		result, err := lib.Explore(path, detail)
		if err != nil {
			return err
		}
		for _, entry := range result.Entries {
			if entry.Detail != "" {
				fmt.Printf("%-24s %s\n", entry.Name, entry.Detail)
			} else {
				fmt.Println(entry.Name)
			}
		}
		return nil
	})
}
