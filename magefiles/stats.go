//go:build mage

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// sourceRoots are the directories whose Go packages Stats reports on.
var sourceRoots = []string{"cmd", "internal", "pkg"}

// pkgStats is one line of Stats output.
type pkgStats struct {
	Package   string `json:"package"`
	Files     int    `json:"files"`
	ProdLines int    `json:"go_loc_prod"`
	TestLines int    `json:"go_loc_test"`
}

// Stats prints Go lines of code per package as JSON lines, then a total
// line that also carries the word count of the top-level Markdown files.
func Stats() error {
	byPkg := map[string]*pkgStats{}
	for _, root := range sourceRoots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			count, err := countLines(path)
			if err != nil {
				return fmt.Errorf("counting %s: %w", path, err)
			}
			dir := filepath.ToSlash(filepath.Dir(path))
			st, ok := byPkg[dir]
			if !ok {
				st = &pkgStats{Package: dir}
				byPkg[dir] = st
			}
			st.Files++
			if strings.HasSuffix(path, "_test.go") {
				st.TestLines += count
			} else {
				st.ProdLines += count
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	pkgs := make([]string, 0, len(byPkg))
	for p := range byPkg {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)

	enc := json.NewEncoder(os.Stdout)
	total := pkgStats{Package: "total"}
	for _, p := range pkgs {
		st := byPkg[p]
		total.Files += st.Files
		total.ProdLines += st.ProdLines
		total.TestLines += st.TestLines
		if err := enc.Encode(st); err != nil {
			return err
		}
	}

	docWords, err := countWordsInGlob("*.md")
	if err != nil {
		return err
	}
	return enc.Encode(struct {
		pkgStats
		DocWords int `json:"doc_wc"`
	}{total, docWords})
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}

func countWordsInGlob(pattern string) (int, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, err
		}
		total += countWords(string(data))
	}
	return total, nil
}

func countWords(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}
