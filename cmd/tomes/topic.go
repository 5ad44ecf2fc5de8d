package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/readwell/tomes"
)

var (
	topicsSubject string
	topicsSources bool

	topicsCmd = &cobra.Command{
		Use:   "topics",
		Short: "List the registered cross-book topics",
		Long: `List the topics registered through curation files. Topics group
chunks across books; search and advise accept --topics to scope
retrieval to the books that discuss one.`,
		Args: cobra.NoArgs,
		RunE: runTopics,
	}
)

func init() {
	topicsCmd.Flags().StringVar(&topicsSubject, "subject", "", "Only topics in this subject")
	topicsCmd.Flags().BoolVar(&topicsSources, "sources", false, "Show which books discuss each topic")
	rootCmd.AddCommand(topicsCmd)
}

func runTopics(cmd *cobra.Command, args []string) error {
	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		topics, err := lib.Topics().List(topicsSubject)
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			fmt.Println("No topics registered.")
			return nil
		}
		for _, topic := range topics {
			fmt.Printf("%-24s %s\n", topic.Slug, topic.DisplayName)
			if topicsSources {
				slugs, err := lib.Topics().SourcesFor(topic.Slug)
				if err != nil {
					return err
				}
				if len(slugs) > 0 {
					fmt.Printf("%-24s in: %s\n", "", strings.Join(slugs, ", "))
				}
			}
		}
		return nil
	})
}
