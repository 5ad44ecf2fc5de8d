package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/readwell/tomes"
	"github.com/readwell/tomes/pkg/ingest"
	"github.com/readwell/tomes/pkg/types"
)

var (
	addTitle   string
	addAuthor  string
	addSubject string

	addCmd = &cobra.Command{
		Use:   "add <slug> <chapter-dir>",
		Short: "Ingest a book from a directory of chapter text files",
		Long: `Ingest a book into the library. The directory is read in sorted
filename order, one chapter per .txt or .md file. Each chapter is
chunked, embedded, and indexed.`,
		Args: cobra.ExactArgs(2),
		RunE: runAdd,
	}

	removeCmd = &cobra.Command{
		Use:   "remove <slug>",
		Short: "Remove a book and its index entries",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemove,
	}

	listSubject string

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the books in the library",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
)

func init() {
	addCmd.Flags().StringVar(&addTitle, "title", "", "Book title (defaults to the slug)")
	addCmd.Flags().StringVar(&addAuthor, "author", "", "Book author")
	addCmd.Flags().StringVar(&addSubject, "subject", "", "Subject shelf the book belongs to")
	listCmd.Flags().StringVar(&listSubject, "subject", "", "Only list books on this subject")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	slug, dir := args[0], args[1]

	chapters, err := readChapters(dir)
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		return fmt.Errorf("no chapter files (*.txt, *.md) found in %s", dir)
	}

	title := addTitle
	if title == "" {
		title = slug
	}

	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		n, err := lib.AddBook(ctx, &types.Book{
			Slug:    slug,
			Title:   title,
			Author:  addAuthor,
			Subject: addSubject,
		}, chapters)
		if err != nil {
			return err
		}
		fmt.Printf("Added %q: %d chapters, %d chunks indexed\n", title, len(chapters), n)
		return nil
	})
}

// readChapters loads one chapter per file. A leading "# " line becomes
// the chapter title, otherwise the filename stem is used.
func readChapters(dir string) ([]ingest.ChapterText, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chapter dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".txt" || ext == ".md" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var chapters []ingest.ChapterText
	for i, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read chapter %s: %w", name, err)
		}
		text := strings.TrimSpace(string(raw))
		title := strings.TrimSuffix(name, filepath.Ext(name))
		if first, rest, ok := strings.Cut(text, "\n"); ok && strings.HasPrefix(first, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(first, "# "))
			text = strings.TrimSpace(rest)
		}
		chapters = append(chapters, ingest.ChapterText{
			Number: i + 1,
			Title:  title,
			Text:   text,
		})
	}
	return chapters, nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		n, err := lib.RemoveBook(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Removed %s (%d records)\n", args[0], n)
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	return withLibrary(func(ctx context.Context, lib *tomes.Library) error {
		books, err := lib.ListBooks(listSubject)
		if err != nil {
			return err
		}
		if len(books) == 0 {
			fmt.Println("No books in the library.")
			return nil
		}
		for _, b := range books {
			fmt.Printf("%-24s %s", b.Slug, b.Title)
			if b.Author != "" {
				fmt.Printf(" by %s", b.Author)
			}
			if b.Subject != "" {
				fmt.Printf(" [%s]", b.Subject)
			}
			fmt.Printf(" (%d chunks)\n", b.ChunkCount)
		}
		return nil
	})
}
