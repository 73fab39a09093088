package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/libsync/pkg/epub"
)

func main() {
	log := logger.New()

	var opts struct {
		CoverOutput string `short:"o" long:"cover-output" description:"A path to output the cover image"`
		Chapters    bool   `short:"c" long:"chapters" description:"Print the table of contents"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-epub <path/to/file.epub>")
		os.Exit(1)
	}

	book, err := epub.Parse(args[0])
	if err != nil {
		log.Err(err).Fatal("epub parse error")
	}
	fmt.Printf("Identifier: %s\nTitle: %s\nCreator(s): %s\nLanguage: %s\nModified: %s\nSubjects: %s\nParts: %d\nHas Cover Data: %v\nCover Mime Type: %s\n",
		book.Identifier, book.Title, strings.Join(book.Creators, ", "), book.Language, book.Modified,
		strings.Join(book.Subjects, ", "), len(book.Spine), len(book.CoverData) > 0, book.CoverMimeType)

	if opts.Chapters {
		printChapters(book.Chapters, 0)
	}

	if opts.CoverOutput != "" && book.CoverData != nil {
		if err := os.WriteFile(opts.CoverOutput, book.CoverData, 0644); err != nil {
			log.Err(err).Fatal("file write error")
		}
	}
}

func printChapters(chapters []epub.Chapter, depth int) {
	for _, ch := range chapters {
		fmt.Printf("%s- %s (%s)\n", strings.Repeat("  ", depth), ch.Title, ch.Href)
		printChapters(ch.Children, depth+1)
	}
}
