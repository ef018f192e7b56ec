package supply

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type aliasGroup struct {
	token   string
	aliases []string
}

var itemAliases = []aliasGroup{
	{"anchor_bolt", []string{"anchor bolt", "anchor bolts", "anclaje", "anclajes", "anchors", "ancla"}},
	{"rebar", []string{"rebar", "rebar tie", "varilla", "varillas", "reinforcing bar", "reinforcement bar"}},
	{"concrete", []string{"concrete", "concreto", "cement", "cemento", "ready mix", "ready-mix"}},
	{"lumber_2x4", []string{"2x4", "2 x 4", "two by four", "lumber 2x4", "madera 2x4"}},
	{"lumber_2x6", []string{"2x6", "2 x 6", "two by six", "lumber 2x6", "madera 2x6"}},
	{"plywood", []string{"plywood", "triplay", "madera contrachapada", "ply wood"}},
	{"nail", []string{"nail", "nails", "clavo", "clavos"}},
	{"screw", []string{"screw", "screws", "tornillo", "tornillos"}},
	{"wire", []string{"wire", "alambre", "wire tie", "tie wire", "alambre de amarre"}},
	{"conduit", []string{"conduit", "conduit pipe", "tubo conduit", "conducto"}},
	{"pipe_pvc", []string{"pvc", "pvc pipe", "tubo pvc", "tubería pvc"}},
	{"drywall", []string{"drywall", "sheetrock", "tablaroca", "panel de yeso"}},
	{"insulation", []string{"insulation", "aislamiento", "aislante", "fiberglass insulation"}},
	{"gravel", []string{"gravel", "grava", "aggregate", "agregado"}},
	{"sand", []string{"sand", "arena"}},
	{"gloves", []string{"gloves", "glove", "work gloves", "guantes", "guante"}},
	{"safety_glasses", []string{"safety glasses", "glasses", "lentes de seguridad", "lentes"}},
	{"hard_hat", []string{"hard hat", "hard hats", "casco", "cascos"}},
}

var unitAliases = []aliasGroup{
	{"pieces", []string{"pieces", "pcs", "pc", "piece", "piezas", "pieza", "unidades", "unidad", "ea", "each", "units", "unit"}},
	{"boxes", []string{"boxes", "box", "cajas", "caja", "bx"}},
	{"bags", []string{"bags", "bag", "bolsas", "bolsa", "sacos", "saco", "costales", "costal"}},
	{"feet", []string{"feet", "ft", "foot", "pies", "pie", "linear feet", "lf"}},
	{"yards", []string{"yards", "yard", "yd", "yardas", "yarda", "cubic yards", "cy"}},
	{"tons", []string{"tons", "ton", "toneladas", "tonelada"}},
	{"sheets", []string{"sheets", "sheet", "hojas", "hoja", "láminas", "lámina"}},
	{"rolls", []string{"rolls", "roll", "rollos", "rollo"}},
	{"gallons", []string{"gallons", "gallon", "gal", "galones", "galón"}},
	{"pounds", []string{"pounds", "pound", "lbs", "lb", "libras", "libra"}},
	{"pairs", []string{"pairs", "pair", "pares", "par"}},
}

// Built once at init and never mutated.
var (
	itemIndex = buildIndex(itemAliases)
	unitIndex = buildIndex(unitAliases)
)

var whitespaceRun = regexp.MustCompile(`\s+`)

func buildIndex(groups []aliasGroup) map[string]string {
	idx := make(map[string]string)
	for _, g := range groups {
		for _, a := range g.aliases {
			if _, dup := idx[a]; !dup {
				idx[a] = g.token
			}
		}
	}
	return idx
}

// NormalizeItem maps a free-text item name to its canonical token.
// Inputs shorter than three characters are returned unchanged. Unknown
// items are lower-cased with whitespace runs collapsed to underscores.
func NormalizeItem(input string) string {
	if utf8.RuneCountInString(input) < 3 {
		return input
	}
	lower := strings.TrimSpace(strings.ToLower(input))
	if token, ok := itemIndex[lower]; ok {
		return token
	}
	return whitespaceRun.ReplaceAllString(lower, "_")
}

// NormalizeUnit maps a unit alias to its canonical unit. Unknown units
// are returned lower-cased.
func NormalizeUnit(input string) string {
	if input == "" {
		return input
	}
	lower := strings.TrimSpace(strings.ToLower(input))
	if token, ok := unitIndex[lower]; ok {
		return token
	}
	return lower
}

// ItemTokens lists every canonical item token.
func ItemTokens() []string {
	out := make([]string, 0, len(itemAliases))
	for _, g := range itemAliases {
		out = append(out, g.token)
	}
	return out
}
