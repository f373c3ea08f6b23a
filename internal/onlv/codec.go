// Package onlv implements the structural ONLV wire format: a generic
// map-based view of the XML document in which attributes carry the "@_"
// prefix, element text lives under "#text", and the XML declaration is kept
// under "?xml". The shape mirrors what structured ONLV tooling exchanges, so
// documents survive a decode/encode cycle without schema knowledge.
package onlv

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Map key conventions of the structural form.
const (
	// AttrPrefix marks attribute keys.
	AttrPrefix = "@_"
	// TextKey holds mixed element text alongside attributes or children.
	TextKey = "#text"
	// DeclKey holds the XML declaration pseudo-element.
	DeclKey = "?xml"
)

// forceList names the elements that are always decoded as sequences, even
// when a document contains a single occurrence. Single-child collapse would
// otherwise change the shape between documents.
var forceList = map[string]bool{
	"lg":                 true,
	"ulg":                true,
	"grundtextnr":        true,
	"folgeposition":      true,
	"ungeteilteposition": true,
	"position":           true,
	"teilposition":       true,
	"zuschlag":           true,
	"abschlag":           true,
	"kennwert":           true,
}

// Decode parses ONLV XML into its structural map form.
func Decode(r io.Reader) (map[string]any, error) {
	dec := xml.NewDecoder(r)
	root := map[string]any{}

	type frame struct {
		name string
		node map[string]any
		text strings.Builder
	}
	var stack []*frame

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode onlv: %w", err)
		}
		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" && len(stack) == 0 {
				root[DeclKey] = parseDeclaration(string(t.Inst))
			}
		case xml.StartElement:
			node := map[string]any{}
			for _, attr := range t.Attr {
				node[AttrPrefix+attrName(attr.Name)] = attr.Value
			}
			stack = append(stack, &frame{name: elementName(t.Name), node: node})
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("decode onlv: unbalanced end element %q", elementName(t.Name))
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			value := finishNode(top.node, strings.TrimSpace(top.text.String()))
			parent := root
			if len(stack) > 0 {
				parent = stack[len(stack)-1].node
			}
			insertChild(parent, top.name, value)
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("decode onlv: unterminated element %q", stack[len(stack)-1].name)
	}
	return root, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(data []byte) (map[string]any, error) {
	return Decode(bytes.NewReader(data))
}

func finishNode(node map[string]any, text string) any {
	if len(node) == 0 {
		if text == "" {
			return nil
		}
		return text
	}
	if text != "" {
		node[TextKey] = text
	}
	return node
}

func insertChild(parent map[string]any, name string, value any) {
	existing, ok := parent[name]
	switch {
	case !ok && forceList[name]:
		parent[name] = []any{value}
	case !ok:
		parent[name] = value
	default:
		if list, isList := existing.([]any); isList {
			parent[name] = append(list, value)
		} else {
			parent[name] = []any{existing, value}
		}
	}
}

func parseDeclaration(inst string) map[string]any {
	decl := map[string]any{}
	for _, field := range strings.Fields(inst) {
		key, val, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		decl[AttrPrefix+key] = strings.Trim(val, `"'`)
	}
	return decl
}

func attrName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	if name.Space == "xmlns" {
		return "xmlns:" + name.Local
	}
	return name.Space + ":" + name.Local
}

func elementName(name xml.Name) string {
	return name.Local
}

// Encode renders the structural map back to ONLV XML. Output is
// deterministic: the declaration comes first, attributes and child elements
// are written in sorted key order.
func Encode(w io.Writer, doc map[string]any) error {
	if decl, ok := doc[DeclKey].(map[string]any); ok {
		if err := writeDeclaration(w, decl); err != nil {
			return err
		}
	}
	for _, key := range sortedElementKeys(doc) {
		if err := writeValue(w, key, doc[key], 0); err != nil {
			return err
		}
	}
	return nil
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeDeclaration(w io.Writer, decl map[string]any) error {
	var b strings.Builder
	b.WriteString("<?xml")
	// version must precede encoding regardless of sort order
	for _, key := range []string{"version", "encoding", "standalone"} {
		if val, ok := decl[AttrPrefix+key].(string); ok {
			fmt.Fprintf(&b, " %s=%q", key, val)
		}
	}
	b.WriteString("?>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeValue(w io.Writer, name string, value any, depth int) error {
	switch v := value.(type) {
	case []any:
		for _, entry := range v {
			if err := writeValue(w, name, entry, depth); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		return writeElement(w, name, v, depth)
	case nil:
		_, err := fmt.Fprintf(w, "%s<%s/>\n", indent(depth), name)
		return err
	case string:
		_, err := fmt.Fprintf(w, "%s<%s>%s</%s>\n", indent(depth), name, escapeText(v), name)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s<%s>%v</%s>\n", indent(depth), name, v, name)
		return err
	}
}

func writeElement(w io.Writer, name string, node map[string]any, depth int) error {
	var open strings.Builder
	open.WriteString(indent(depth))
	open.WriteByte('<')
	open.WriteString(name)
	for _, key := range sortedAttrKeys(node) {
		fmt.Fprintf(&open, " %s=\"%s\"", strings.TrimPrefix(key, AttrPrefix), escapeText(toString(node[key])))
	}

	text, hasText := node[TextKey]
	children := sortedElementKeys(node)
	if !hasText && len(children) == 0 {
		open.WriteString("/>\n")
		_, err := io.WriteString(w, open.String())
		return err
	}
	if hasText && len(children) == 0 {
		fmt.Fprintf(&open, ">%s</%s>\n", escapeText(toString(text)), name)
		_, err := io.WriteString(w, open.String())
		return err
	}

	open.WriteString(">\n")
	if _, err := io.WriteString(w, open.String()); err != nil {
		return err
	}
	if hasText {
		if _, err := fmt.Fprintf(w, "%s%s\n", indent(depth+1), escapeText(toString(text))); err != nil {
			return err
		}
	}
	for _, key := range children {
		if err := writeValue(w, key, node[key], depth+1); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s</%s>\n", indent(depth), name)
	return err
}

func sortedAttrKeys(node map[string]any) []string {
	var keys []string
	for key := range node {
		if strings.HasPrefix(key, AttrPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func sortedElementKeys(node map[string]any) []string {
	var keys []string
	for key := range node {
		if strings.HasPrefix(key, AttrPrefix) || key == TextKey || key == DeclKey {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func escapeText(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails on writer errors, which bytes.Buffer never returns.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
