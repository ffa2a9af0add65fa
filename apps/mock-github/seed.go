package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tilsley/dirpack/pkg/ghfake"
)

// seedRepos loads demo content and returns the number of files seeded.
//
//	acme/handbook  main: docs tree, an empty file, a >1 MiB file, a 403 directory
//	acme/handbook  dev:  a different docs tree
//	acme/widgets   main: a small Go module
func seedRepos(s *ghfake.Server) int {
	n := 0
	add := func(owner, repo, ref, path, content string) {
		s.AddFile(owner, repo, ref, path, []byte(content))
		n++
	}

	for _, section := range []string{"onboarding", "oncall", "security"} {
		add("acme", "handbook", "main", "docs/"+section+"/README.md", sectionReadme(section))
		for i := 1; i <= 3; i++ {
			add("acme", "handbook", "main", fmt.Sprintf("docs/%s/page-%d.md", section, i),
				fmt.Sprintf("# %s, page %d\n\nLorem ipsum.\n", section, i))
		}
	}
	add("acme", "handbook", "main", "docs/.keep", "")
	add("acme", "handbook", "main", "assets/large.txt", strings.Repeat("0123456789abcdef\n", 70_000))
	add("acme", "handbook", "main", "private/salaries.csv", "name,amount\n")
	s.FailListing("acme", "handbook", "private", http.StatusForbidden)

	add("acme", "handbook", "dev", "docs/draft.md", "# Draft\n")

	add("acme", "widgets", "main", "go.mod", "module github.com/acme/widgets\n\ngo 1.25\n")
	add("acme", "widgets", "main", "main.go", "package main\n\nfunc main() {}\n")
	add("acme", "widgets", "main", "internal/widget/widget.go", "package widget\n\ntype Widget struct{}\n")

	return n
}

func sectionReadme(section string) string {
	return fmt.Sprintf("# %s\n\nStart here.\n", strings.ToUpper(section[:1])+section[1:])
}
