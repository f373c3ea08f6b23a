// Command onlv-inspect reads an ONLV exchange file and prints its document
// structure, either as a sub-group outline or as the full flat listing.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"boqcore/internal/onlv"
	"boqcore/pkg/domain"
)

var exitFunc = os.Exit

// main runs the command-line interface using the program arguments and exits
// the process with the status code returned by cli.
func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("onlv-inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		file string
		flat bool
	)
	fs.StringVar(&file, "file", "", "path to the .onlv file to inspect")
	fs.BoolVar(&flat, "flat", false, "print every node instead of the sub-group outline")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := run(file, flat, stdout); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "Inspection failed: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	return 0
}

// validatePath rejects empty, absolute and traversing paths so the tool only
// reads files below the working directory.
func validatePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("absolute paths not allowed: %s", p)
	}
	clean := filepath.Clean(p)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", p)
	}
	return clean, nil
}

func run(file string, flat bool, stdout io.Writer) error {
	safePath, err := validatePath(file)
	if err != nil {
		return fmt.Errorf("invalid file path: %w", err)
	}
	data, err := os.ReadFile(safePath) // #nosec G304 -- validated above
	if err != nil {
		return fmt.Errorf("read %s: %w", safePath, err)
	}
	raw, err := onlv.DecodeBytes(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", safePath, err)
	}
	doc, err := onlv.ToDocument(raw)
	if err != nil {
		return fmt.Errorf("interpret %s: %w", safePath, err)
	}
	if flat {
		return printFlat(stdout, doc)
	}
	return printOutline(stdout, doc)
}

func printOutline(w io.Writer, doc domain.Document) error {
	outline := domain.Structure(doc)
	if len(outline.Entries) == 0 {
		_, err := fmt.Fprintln(w, "document holds no sub-groups")
		return err
	}
	lastGroup := ""
	for _, entry := range outline.Entries {
		if entry.GroupNr != lastGroup {
			if _, err := fmt.Fprintf(w, "%s  %s\n", entry.GroupNr, entry.GroupTitle); err != nil {
				return err
			}
			lastGroup = entry.GroupNr
		}
		if _, err := fmt.Fprintf(w, "  %s.%s  %s  (%d items)\n", entry.GroupNr, entry.SubGroupNr, entry.Title, entry.ItemCount); err != nil {
			return err
		}
	}
	return nil
}

func printFlat(w io.Writer, doc domain.Document) error {
	for _, node := range domain.Flatten(doc) {
		label := node.Title
		if label == "" {
			label = node.Keyword
		}
		line := fmt.Sprintf("%-8s %-12s %s", node.Level, node.Number.Format(), label)
		if node.Kind != "" {
			line += fmt.Sprintf("  [%s]", node.Kind)
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}
