package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SubGroupKeySeparator joins the parent group number and the local sub-group
// number in the compound key form produced by structured editors, as in
// "01.02". AddSubGroup strips the parent prefix to derive the local number.
const SubGroupKeySeparator = "."

// Clone returns a deep copy of the document. Every mutating tree operation
// works on a clone so the input document is never modified.
func (d Document) Clone() Document {
	out := d
	out.Groups = make([]Group, len(d.Groups))
	for i, g := range d.Groups {
		out.Groups[i] = g.clone()
	}
	return out
}

func (g Group) clone() Group {
	out := g
	out.SubGroups = make([]SubGroup, len(g.SubGroups))
	for i, sg := range g.SubGroups {
		out.SubGroups[i] = sg.clone()
	}
	return out
}

func (sg SubGroup) clone() SubGroup {
	out := sg
	out.Items = make([]Item, len(sg.Items))
	for i, it := range sg.Items {
		out.Items[i] = it.clone()
	}
	return out
}

func (it Item) clone() Item {
	out := it
	out.Flags = append([]string(nil), it.Flags...)
	out.Variants = make([]Variant, len(it.Variants))
	for i, v := range it.Variants {
		out.Variants[i] = v
		out.Variants[i].Flags = append([]string(nil), v.Flags...)
	}
	return out
}

// AddGroup inserts a main group with the given number, keeping siblings in
// numeric order. Inserting a number that already exists leaves the tree
// unchanged apart from the clone; the existing group keeps its title.
func AddGroup(doc Document, nr, title string) Document {
	out := doc.Clone()
	out.ensureGroup(nr, title)
	return out
}

// AddSubGroup inserts a sub-group below the given main group. The sub-group
// key may be the compound editor form "<group>.<subgroup>"; the local number
// is derived by stripping the parent group prefix. An empty derived number
// aborts the operation and the unchanged clone is returned alongside the
// error. A missing parent group is created with a placeholder title.
func AddSubGroup(doc Document, groupNr, subKey, title string) (Document, error) {
	out := doc.Clone()
	localNr := strings.TrimPrefix(subKey, groupNr+SubGroupKeySeparator)
	if localNr == "" {
		return out, fmt.Errorf("sub-group key %q yields an empty number", subKey)
	}
	g := out.ensureGroup(groupNr, "")
	g.ensureSubGroup(localNr, title)
	return out, nil
}

// AddItem appends a line item below the addressed sub-group, creating missing
// ancestors with placeholder titles. Items are not deduplicated: repeated
// numbers are appended as-is and surface later via collision rules.
func AddItem(doc Document, groupNr, subGroupNr string, item Item) Document {
	out := doc.Clone()
	g := out.ensureGroup(groupNr, "")
	sg := g.ensureSubGroup(subGroupNr, "")
	sg.Items = append(sg.Items, item.clone())
	return out
}

// AddVariant appends a follow-up position to the base text addressed by the
// dotted path "lg.ulg.itemNr". When the path does not resolve to a base text
// the unchanged clone is returned alongside the error.
func AddVariant(doc Document, path string, v Variant) (Document, error) {
	out := doc.Clone()
	parts := strings.Split(path, ".")
	if len(parts) != 3 {
		return out, fmt.Errorf("variant path %q must have three segments", path)
	}
	item := out.findItem(parts[0], parts[1], parts[2])
	if item == nil {
		return out, fmt.Errorf("no item at path %q", path)
	}
	if item.Kind != ItemBaseText {
		return out, fmt.Errorf("item %s is %s, not a base text", path, item.Kind)
	}
	cloned := v
	cloned.Flags = append([]string(nil), v.Flags...)
	item.Variants = append(item.Variants, cloned)
	return out, nil
}

// FindGroup returns the main group with the given number.
func (d Document) FindGroup(nr string) (Group, bool) {
	for _, g := range d.Groups {
		if g.Nr == nr {
			return g, true
		}
	}
	return Group{}, false
}

// FindSubGroup returns the sub-group addressed by group and sub-group number.
func (d Document) FindSubGroup(groupNr, subGroupNr string) (SubGroup, bool) {
	g, ok := d.FindGroup(groupNr)
	if !ok {
		return SubGroup{}, false
	}
	for _, sg := range g.SubGroups {
		if sg.Nr == subGroupNr {
			return sg, true
		}
	}
	return SubGroup{}, false
}

func (d *Document) ensureGroup(nr, title string) *Group {
	for i := range d.Groups {
		if d.Groups[i].Nr == nr {
			return &d.Groups[i]
		}
	}
	if title == "" {
		title = placeholderTitle(nr)
	}
	d.Groups = append(d.Groups, Group{Nr: nr, Title: title})
	sortByNr(d.Groups, func(g Group) string { return g.Nr })
	for i := range d.Groups {
		if d.Groups[i].Nr == nr {
			return &d.Groups[i]
		}
	}
	return nil
}

func (g *Group) ensureSubGroup(nr, title string) *SubGroup {
	for i := range g.SubGroups {
		if g.SubGroups[i].Nr == nr {
			return &g.SubGroups[i]
		}
	}
	if title == "" {
		title = placeholderTitle(nr)
	}
	g.SubGroups = append(g.SubGroups, SubGroup{Nr: nr, Title: title})
	sortByNr(g.SubGroups, func(sg SubGroup) string { return sg.Nr })
	for i := range g.SubGroups {
		if g.SubGroups[i].Nr == nr {
			return &g.SubGroups[i]
		}
	}
	return nil
}

func (d *Document) findItem(groupNr, subGroupNr, itemNr string) *Item {
	for gi := range d.Groups {
		if d.Groups[gi].Nr != groupNr {
			continue
		}
		for si := range d.Groups[gi].SubGroups {
			if d.Groups[gi].SubGroups[si].Nr != subGroupNr {
				continue
			}
			items := d.Groups[gi].SubGroups[si].Items
			for ii := range items {
				if items[ii].Nr == itemNr {
					return &items[ii]
				}
			}
		}
	}
	return nil
}

func placeholderTitle(nr string) string {
	return "Group " + nr
}

// sortByNr orders siblings numerically where both numbers parse as integers
// and lexically otherwise, so zero-padded group numbers keep document order.
func sortByNr[T any](s []T, nr func(T) string) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := nr(s[i]), nr(s[j])
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		if aerr == nil && berr == nil {
			return ai < bi
		}
		return a < b
	})
}
