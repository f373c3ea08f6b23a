package domain

import "boqcore/pkg/identifier"

// NodeLevel names the structural depth of a flattened node.
type NodeLevel string

// Flattened node levels in document order of nesting.
const (
	LevelGroup    NodeLevel = "lg"
	LevelSubGroup NodeLevel = "ulg"
	LevelItem     NodeLevel = "item"
	LevelVariant  NodeLevel = "variant"
)

// FlatNode is one row of the depth-first document enumeration. Number holds
// the full identifier of the node; Keyword comes from the node's properties.
type FlatNode struct {
	Level   NodeLevel
	Number  identifier.Components
	Kind    ItemKind
	Title   string
	Keyword string
}

// Flatten enumerates the document depth-first: each group, then its
// sub-groups, then their items and variants, in stored order.
func Flatten(doc Document) []FlatNode {
	var nodes []FlatNode
	for _, g := range doc.Groups {
		nodes = append(nodes, FlatNode{
			Level:   LevelGroup,
			Number:  identifier.Components{LG: g.Nr},
			Title:   g.Title,
			Keyword: g.Properties.Keyword,
		})
		for _, sg := range g.SubGroups {
			nodes = append(nodes, FlatNode{
				Level:   LevelSubGroup,
				Number:  identifier.Components{LG: g.Nr, ULG: sg.Nr},
				Title:   sg.Title,
				Keyword: sg.Properties.Keyword,
			})
			for _, it := range sg.Items {
				base := identifier.Components{LG: g.Nr, ULG: sg.Nr, BaseNr: it.Nr}
				nodes = append(nodes, FlatNode{
					Level:   LevelItem,
					Number:  base,
					Kind:    it.Kind,
					Keyword: it.Properties.Keyword,
				})
				for _, v := range it.Variants {
					nr := base
					nr.FTNr = v.FTNr
					nodes = append(nodes, FlatNode{
						Level:   LevelVariant,
						Number:  nr,
						Kind:    ItemPosition,
						Keyword: v.Properties.Keyword,
					})
				}
			}
		}
	}
	return nodes
}

// Contains reports whether the document holds a node with exactly the given
// identifier, at any level.
func Contains(doc Document, nr identifier.Components) bool {
	for _, node := range Flatten(doc) {
		if node.Number == nr {
			return true
		}
	}
	return false
}

// LastItemNumber returns the identifier of the last item (or its last
// variant) of the addressed sub-group. It seeds successor generation for
// appends. The boolean is false when the sub-group is missing or empty.
func LastItemNumber(doc Document, groupNr, subGroupNr string) (identifier.Components, bool) {
	sg, ok := doc.FindSubGroup(groupNr, subGroupNr)
	if !ok || len(sg.Items) == 0 {
		return identifier.Components{}, false
	}
	last := sg.Items[len(sg.Items)-1]
	nr := identifier.Components{LG: groupNr, ULG: subGroupNr, BaseNr: last.Nr}
	if len(last.Variants) > 0 {
		nr.FTNr = last.Variants[len(last.Variants)-1].FTNr
	}
	return nr, true
}

// OutlineEntry is one sub-group row of a document outline. ItemNrs lists the
// item numbers below the sub-group in document order, variants in their
// combined "03A" form.
type OutlineEntry struct {
	GroupNr    string
	GroupTitle string
	SubGroupNr string
	Title      string
	ItemNrs    []string
	ItemCount  int
}

// Outline is the sub-group level summary of a document.
type Outline struct {
	Entries []OutlineEntry
}

// Structure reduces the document to its outline: one entry per sub-group with
// the owning group and the item numbers it holds, counting variants.
func Structure(doc Document) Outline {
	var out Outline
	for _, g := range doc.Groups {
		for _, sg := range g.SubGroups {
			var nrs []string
			for _, it := range sg.Items {
				nrs = append(nrs, it.Nr)
				for _, v := range it.Variants {
					nrs = append(nrs, it.Nr+v.FTNr)
				}
			}
			out.Entries = append(out.Entries, OutlineEntry{
				GroupNr:    g.Nr,
				GroupTitle: g.Title,
				SubGroupNr: sg.Nr,
				Title:      sg.Title,
				ItemNrs:    nrs,
				ItemCount:  len(nrs),
			})
		}
	}
	return out
}
