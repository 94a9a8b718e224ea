package codec

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
)

// Result is a decoded result artifact: the typed line items plus the
// metadata the macro wrote back.
type Result struct {
	Items      []domain.QuoteItem
	TargetPath string
}

// node is the generic tree the raw XML lands in before the typed mapping.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []node     `xml:",any"`
}

func (n *node) find(name string) *node {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			return &n.Children[i]
		}
	}
	return nil
}

func (n *node) findAll(name string) []*node {
	var out []*node
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

// attr resolves an attribute through two passes: a fuzzy pass that
// normalizes every key to uppercase alphanumerics before matching the
// aliases, then an exact pass. Macro versions have drifted on attribute
// naming for a decade; the alias lists absorb that drift.
func (n *node) attr(aliases ...string) string {
	for _, alias := range aliases {
		want := normalizeKey(alias)
		for _, a := range n.Attrs {
			if normalizeKey(a.Name.Local) == want && a.Value != "" {
				return a.Value
			}
		}
	}
	for _, alias := range aliases {
		for _, a := range n.Attrs {
			if a.Name.Local == alias && a.Value != "" {
				return a.Value
			}
		}
	}
	return ""
}

func normalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseComma converts a locale-tolerant numeric string. Comma decimals are
// accepted, non-numeric noise is stripped, and anything unparsable yields
// zero: this boundary favors availability over strict validation.
func parseComma(v string) float64 {
	if v == "" {
		return 0
	}
	var b strings.Builder
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',':
			b.WriteByte('.')
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return f
}

// Decode parses a result artifact into typed line items. A document with no
// recognizable devis block returns an empty Result and ErrDecodeFailed;
// callers decide whether that aborts an ingestion or is merely logged.
func Decode(data []byte) (*Result, error) {
	var root node
	if err := xml.Unmarshal(data, &root); err != nil {
		return &Result{}, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}
	if root.XMLName.Local != "generation" {
		return &Result{}, fmt.Errorf("%w: missing root 'generation'", domain.ErrDecodeFailed)
	}

	res := &Result{}
	if meta := root.find("meta"); meta != nil {
		res.TargetPath = meta.attr("cible")
	}

	devis := root.find("devis")
	if devis == nil {
		return res, fmt.Errorf("%w: missing 'devis'", domain.ErrDecodeFailed)
	}

	res.Items = dedupeByTag(decodeLines(lineNodes(devis)))
	return res, nil
}

// lineNodes locates the item rows: the modern externe/ligne path first,
// then lignes/ligne, then the legacy shape where each pierre child of
// devis is itself a row.
func lineNodes(devis *node) []*node {
	if externe := devis.find("externe"); externe != nil {
		if lines := externe.findAll("ligne"); len(lines) > 0 {
			return lines
		}
	}
	if lignes := devis.find("lignes"); lignes != nil {
		if lines := lignes.findAll("ligne"); len(lines) > 0 {
			return lines
		}
	}
	if legacy := devis.findAll("pierre"); len(legacy) > 1 {
		// A single pierre element is the material block, not a row.
		return legacy
	}
	return nil
}

func decodeLines(lines []*node) []domain.QuoteItem {
	items := make([]domain.QuoteItem, 0, len(lines))
	for _, l := range lines {
		desc := l.attr("Description")
		if label := l.attr("Item"); label != "" {
			if desc == "" || desc == "A renseigner" || len(label) > len(desc) {
				desc = label
			}
		}

		unit := l.attr("Unité", "Unit")
		unit = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(unit, "/ / ", ""), "/", ""))

		item := domain.QuoteItem{
			Tag:         l.attr("TAG", "Ref Tag", "No"),
			Material:    l.attr("GRANITE"),
			Description: desc,
			Quantity:    parseComma(l.attr("QTY")),
			Unit:        unit,
			Length:      parseComma(l.attr("Longeur", "Length")),
			Width:       parseComma(l.attr("Largeur", "Width", "Width/Deep")),
			Thickness:   parseComma(l.attr("Epaisseur", "Thickness", "Thick/Height", "Thick")),
			NetLength:   parseComma(l.attr("Long.net", "Total Length Net")),
			NetArea:     parseComma(l.attr("Surface_net", "Total Area Net")),
			NetVolume:   parseComma(l.attr("Vol_Tot", "Total Volume Net")),
			TotalWeight: parseComma(l.attr("Poid_Tot", "Tot. Weight")),

			UnitPriceCad:  parseComma(l.attr("Prix_unitaire_interne", "Unit Price CAD$")),
			UnitPrice:     parseComma(l.attr("Prix_unitaire_externe", "PU_Externe", "Prix", "Unit Price USD$")),
			TotalPriceCad: parseComma(l.attr("Prix_interne", "Total CDN$")),
			TotalPrice:    parseComma(l.attr("Prix_externe", "Total USD$")),

			StoneValue:          parseComma(l.attr("valeurPierre")),
			PrimarySawingCost:   parseComma(l.attr("scPrimaire")),
			SecondarySawingCost: parseComma(l.attr("scSecondaire")),
			ProfilingCost:       parseComma(l.attr("profilage")),
			FinishingCost:       parseComma(l.attr("Finition")),
			AnchoringCost:       parseComma(l.attr("Ancrage")),
			UnitTime:            parseComma(l.attr("tempsUnitaire")),
			TotalTime:           parseComma(l.attr("tempsTotal")),
		}

		// Older macro builds leave the totals column at zero.
		if item.TotalPrice == 0 && item.Quantity != 0 && item.UnitPrice != 0 {
			item.TotalPrice = item.Quantity * item.UnitPrice
		}
		if item.TotalPriceCad == 0 && item.Quantity != 0 && item.UnitPriceCad != 0 {
			item.TotalPriceCad = item.Quantity * item.UnitPriceCad
		}

		items = append(items, item)
	}
	return items
}

// dedupeByTag collapses rows sharing a tag, keeping the richer one. The
// macro sometimes writes a summary row and a detail row for the same tag;
// the one carrying net metrics wins.
func dedupeByTag(items []domain.QuoteItem) []domain.QuoteItem {
	out := make([]domain.QuoteItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		score := item.NetLength + item.StoneValue
		if i, seen := index[item.Tag]; seen {
			if score > out[i].NetLength+out[i].StoneValue {
				out[i] = item
			}
			continue
		}
		index[item.Tag] = len(out)
		out = append(out, item)
	}
	return out
}
