package onlv

import (
	"fmt"
	"sort"
	"strconv"

	"boqcore/pkg/domain"
)

// Element and attribute names of the ONLV document tree.
const (
	keyGroupList      = "lg-liste"
	keyGroup          = "lg"
	keyGroupProps     = "lg-eigenschaften"
	keySubGroupList   = "ulg-liste"
	keySubGroup       = "ulg"
	keySubGroupProps  = "ulg-eigenschaften"
	keyPositions      = "positionen"
	keyBaseTextNr     = "grundtextnr"
	keyBaseText       = "grundtext"
	keyFollowUp       = "folgeposition"
	keyUndivided      = "ungeteilteposition"
	keyPosition       = "position"
	keyPositionProps  = "pos-eigenschaften"
	keyHeading        = "ueberschrift"
	keyKeyword        = "stichwort"
	keyLongText       = "langtext"
	keyUnit           = "eh"
	keyQuantity       = "lv-menge"
	keyOrigin         = "herkunftskennzeichen"
	keyPartOf         = "leistungsteil"
	attrNr            = AttrPrefix + "nr"
	attrFollowUpNr    = AttrPrefix + "ftnr"
	attrMultiVariants = AttrPrefix + "mfv"
)

// FromDocument renders a document tree into the structural ONLV map,
// including the XML declaration.
func FromDocument(doc domain.Document) map[string]any {
	groups := make([]any, 0, len(doc.Groups))
	for _, g := range doc.Groups {
		groups = append(groups, encodeGroup(g))
	}
	return map[string]any{
		DeclKey: map[string]any{
			AttrPrefix + "version":  "1.0",
			AttrPrefix + "encoding": "UTF-8",
		},
		keyGroupList: map[string]any{keyGroup: groups},
	}
}

func encodeGroup(g domain.Group) map[string]any {
	subGroups := make([]any, 0, len(g.SubGroups))
	for _, sg := range g.SubGroups {
		subGroups = append(subGroups, encodeSubGroup(sg))
	}
	return map[string]any{
		attrNr:          g.Nr,
		keyGroupProps:   headingProps(g.Title, g.Properties),
		keySubGroupList: map[string]any{keySubGroup: subGroups},
	}
}

func encodeSubGroup(sg domain.SubGroup) map[string]any {
	items := make([]any, 0, len(sg.Items))
	for _, it := range sg.Items {
		items = append(items, encodeItem(it))
	}
	return map[string]any{
		attrNr:           sg.Nr,
		keySubGroupProps: headingProps(sg.Title, sg.Properties),
		keyPositions:     map[string]any{keyBaseTextNr: items},
	}
}

func encodeItem(it domain.Item) map[string]any {
	node := map[string]any{attrNr: it.Nr}
	switch it.Kind {
	case domain.ItemBaseText:
		node[keyBaseText] = map[string]any{keyPositionProps: positionProps(it.Properties)}
		variants := make([]any, 0, len(it.Variants))
		for _, v := range it.Variants {
			variants = append(variants, encodeVariant(v))
		}
		node[keyFollowUp] = variants
	case domain.ItemUndivided:
		node[keyUndivided] = []any{positionEntry(it)}
	default:
		node[keyPosition] = []any{positionEntry(it)}
	}
	return node
}

func positionEntry(it domain.Item) map[string]any {
	entry := map[string]any{keyPositionProps: positionProps(it.Properties)}
	for _, flag := range it.Flags {
		entry[AttrPrefix+flag] = "true"
	}
	return entry
}

func encodeVariant(v domain.Variant) map[string]any {
	entry := map[string]any{
		attrFollowUpNr:   v.FTNr,
		keyPositionProps: positionProps(v.Properties),
	}
	if v.MFV != "" {
		entry[attrMultiVariants] = v.MFV
	}
	for _, flag := range v.Flags {
		entry[AttrPrefix+flag] = "true"
	}
	return entry
}

func headingProps(title string, p domain.Properties) map[string]any {
	props := map[string]any{keyHeading: title}
	if p.LongText != "" {
		props[keyLongText] = p.LongText
	}
	return props
}

func positionProps(p domain.Properties) map[string]any {
	props := map[string]any{}
	if p.Keyword != "" {
		props[keyKeyword] = p.Keyword
	}
	if p.LongText != "" {
		props[keyLongText] = p.LongText
	}
	if p.Unit != "" {
		props[keyUnit] = p.Unit
	}
	if p.Quantity != 0 {
		props[keyQuantity] = strconv.FormatFloat(p.Quantity, 'f', -1, 64)
	}
	if p.Origin != "" {
		props[keyOrigin] = p.Origin
	}
	if p.PartOfPerformance != "" {
		props[keyPartOf] = p.PartOfPerformance
	}
	return props
}

// ToDocument rebuilds a document tree from the structural ONLV map. Nodes
// that are neither a base text, an undivided position, nor a plain position
// are skipped rather than rejected so foreign vendor extensions pass through
// harmlessly.
func ToDocument(m map[string]any) (domain.Document, error) {
	var doc domain.Document
	for _, rawGroup := range listOf(childMap(m, keyGroupList), keyGroup) {
		g, err := decodeGroup(rawGroup)
		if err != nil {
			return domain.Document{}, err
		}
		doc.Groups = append(doc.Groups, g)
	}
	return doc, nil
}

func decodeGroup(raw any) (domain.Group, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return domain.Group{}, fmt.Errorf("decode group: unexpected node %T", raw)
	}
	props := childMap(node, keyGroupProps)
	g := domain.Group{
		Nr:         stringOf(node[attrNr]),
		Title:      stringOf(props[keyHeading]),
		Properties: domain.Properties{LongText: stringOf(props[keyLongText])},
	}
	if g.Nr == "" {
		return domain.Group{}, fmt.Errorf("decode group: missing nr attribute")
	}
	for _, rawSub := range listOf(childMap(node, keySubGroupList), keySubGroup) {
		sg, err := decodeSubGroup(rawSub)
		if err != nil {
			return domain.Group{}, fmt.Errorf("group %s: %w", g.Nr, err)
		}
		g.SubGroups = append(g.SubGroups, sg)
	}
	return g, nil
}

func decodeSubGroup(raw any) (domain.SubGroup, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return domain.SubGroup{}, fmt.Errorf("decode sub-group: unexpected node %T", raw)
	}
	props := childMap(node, keySubGroupProps)
	sg := domain.SubGroup{
		Nr:         stringOf(node[attrNr]),
		Title:      stringOf(props[keyHeading]),
		Properties: domain.Properties{LongText: stringOf(props[keyLongText])},
	}
	if sg.Nr == "" {
		return domain.SubGroup{}, fmt.Errorf("decode sub-group: missing nr attribute")
	}
	for _, rawItem := range listOf(childMap(node, keyPositions), keyBaseTextNr) {
		items, err := decodeBaseTextNode(rawItem)
		if err != nil {
			return domain.SubGroup{}, fmt.Errorf("sub-group %s: %w", sg.Nr, err)
		}
		sg.Items = append(sg.Items, items...)
	}
	return sg, nil
}

func decodeBaseTextNode(raw any) ([]domain.Item, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode item: unexpected node %T", raw)
	}
	nr := stringOf(node[attrNr])
	if nr == "" {
		return nil, fmt.Errorf("decode item: missing nr attribute")
	}

	var items []domain.Item
	if gt, ok := node[keyBaseText]; ok {
		item := domain.Item{
			Nr:         nr,
			Kind:       domain.ItemBaseText,
			Properties: decodePositionProps(childMap(asMap(gt), keyPositionProps)),
		}
		for _, rawVariant := range asList(node[keyFollowUp]) {
			v, err := decodeVariant(rawVariant)
			if err != nil {
				return nil, fmt.Errorf("item %s: %w", nr, err)
			}
			item.Variants = append(item.Variants, v)
		}
		items = append(items, item)
	}
	for _, rawPos := range asList(node[keyUndivided]) {
		items = append(items, decodePosition(nr, domain.ItemUndivided, rawPos))
	}
	for _, rawPos := range asList(node[keyPosition]) {
		items = append(items, decodePosition(nr, domain.ItemPosition, rawPos))
	}
	return items, nil
}

func decodePosition(nr string, kind domain.ItemKind, raw any) domain.Item {
	node := asMap(raw)
	return domain.Item{
		Nr:         nr,
		Kind:       kind,
		Properties: decodePositionProps(childMap(node, keyPositionProps)),
		Flags:      decodeFlags(node),
	}
}

// decodeFlags collects the boolean marker attributes of a position entry,
// skipping the structurally meaningful ftnr and mfv attributes.
func decodeFlags(node map[string]any) []string {
	var flags []string
	for key, val := range node {
		if key == attrFollowUpNr || key == attrMultiVariants {
			continue
		}
		if len(key) > len(AttrPrefix) && key[:len(AttrPrefix)] == AttrPrefix && stringOf(val) == "true" {
			flags = append(flags, key[len(AttrPrefix):])
		}
	}
	sort.Strings(flags)
	return flags
}

func decodeVariant(raw any) (domain.Variant, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return domain.Variant{}, fmt.Errorf("decode follow-up: unexpected node %T", raw)
	}
	v := domain.Variant{
		FTNr:       stringOf(node[attrFollowUpNr]),
		MFV:        stringOf(node[attrMultiVariants]),
		Properties: decodePositionProps(childMap(node, keyPositionProps)),
		Flags:      decodeFlags(node),
	}
	if v.FTNr == "" {
		return domain.Variant{}, fmt.Errorf("decode follow-up: missing ftnr attribute")
	}
	return v, nil
}

func decodePositionProps(props map[string]any) domain.Properties {
	return domain.Properties{
		Keyword:           stringOf(props[keyKeyword]),
		LongText:          stringOf(props[keyLongText]),
		Unit:              stringOf(props[keyUnit]),
		Quantity:          floatOf(props[keyQuantity]),
		Origin:            stringOf(props[keyOrigin]),
		PartOfPerformance: stringOf(props[keyPartOf]),
	}
}

func childMap(node map[string]any, key string) map[string]any {
	if node == nil {
		return nil
	}
	return asMap(node[key])
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// listOf reads node[key] tolerating both the sequence and the collapsed
// single-map form, matching how hand-edited documents arrive.
func listOf(node map[string]any, key string) []any {
	if node == nil {
		return nil
	}
	return asList(node[key])
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

// floatOf parses a decimal text node, treating absent or malformed values as
// zero so partially filled documents still load.
func floatOf(v any) float64 {
	f, err := strconv.ParseFloat(stringOf(v), 64)
	if err != nil {
		return 0
	}
	return f
}
