package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"boqcore/internal/onlv"
	"boqcore/pkg/domain"
)

func sampleDocument() domain.Document {
	return domain.Document{
		Groups: []domain.Group{{
			Nr:    "01",
			Title: "Earthworks",
			SubGroups: []domain.SubGroup{{
				Nr:    "02",
				Title: "Excavation",
				Items: []domain.Item{
					{
						Nr:         "03",
						Kind:       domain.ItemBaseText,
						Properties: domain.Properties{Keyword: "Trench"},
						Variants:   []domain.Variant{{FTNr: "A", Properties: domain.Properties{Keyword: "Shallow"}}},
					},
					{Nr: "04", Kind: domain.ItemUndivided, Properties: domain.Properties{Keyword: "Backfill"}},
				},
			}},
		}},
	}
}

func writeSampleFile(t *testing.T, name string) {
	t.Helper()
	payload, err := onlv.EncodeBytes(onlv.FromDocument(sampleDocument()))
	if err != nil {
		t.Fatalf("encode sample: %v", err)
	}
	if err := os.WriteFile(name, payload, 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
}

func TestCLIPrintsOutline(t *testing.T) {
	t.Chdir(t.TempDir())
	writeSampleFile(t, "sample.onlv")

	var stdout, stderr bytes.Buffer
	code := cli([]string{"-file", "sample.onlv"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected success, got %d (%s)", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"01  Earthworks", "01.02  Excavation", "(2 items)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output containing %q, got %s", want, out)
		}
	}
}

func TestCLIPrintsFlatListing(t *testing.T) {
	t.Chdir(t.TempDir())
	writeSampleFile(t, "sample.onlv")

	var stdout, stderr bytes.Buffer
	code := cli([]string{"-file", "sample.onlv", "-flat"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected success, got %d (%s)", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"01.02.03", "01.02.03A", "01.02.04", "Trench", "lg", "variant"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output containing %q, got %s", want, out)
		}
	}
}

func TestCLIRejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{name: "empty", path: ""},
		{name: "absolute", path: "/etc/sample.onlv"},
		{name: "traversal", path: "../sample.onlv"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := cli([]string{"-file", tc.path}, &stdout, &stderr)
			if code != 1 {
				t.Fatalf("expected failure, got %d", code)
			}
			if !strings.Contains(stderr.String(), "Inspection failed") {
				t.Fatalf("expected failure message, got %s", stderr.String())
			}
		})
	}
}

func TestCLIMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-file", "absent.onlv"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
}

func TestCLIMalformedDocument(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile("broken.onlv", []byte("<onlv><lv-inhalt>"), 0o600); err != nil {
		t.Fatalf("write broken file: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-file", "broken.onlv"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
}

func TestCLIUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-bogus"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected usage error, got %d", code)
	}
}

func TestOutlineForEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := printOutline(&buf, domain.Document{}); err != nil {
		t.Fatalf("print outline: %v", err)
	}
	if !strings.Contains(buf.String(), "no sub-groups") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
