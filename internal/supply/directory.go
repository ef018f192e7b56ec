package supply

// FallbackSupplierName is recommended for items missing from the directory.
const FallbackSupplierName = "General Construction Supply"

type directoryEntry struct {
	name  string
	total float64
	days  int
}

var supplierDirectory = map[string]directoryEntry{
	"anchor_bolt":    {"FastenAll Supply Co.", 245.00, 2},
	"rebar":          {"SteelMax Distributors", 890.00, 3},
	"concrete":       {"ReadyMix Central", 1200.00, 1},
	"lumber_2x4":     {"BuildRight Lumber", 320.00, 2},
	"lumber_2x6":     {"BuildRight Lumber", 480.00, 2},
	"plywood":        {"BuildRight Lumber", 560.00, 2},
	"nail":           {"FastenAll Supply Co.", 45.00, 1},
	"screw":          {"FastenAll Supply Co.", 65.00, 1},
	"wire":           {"SteelMax Distributors", 120.00, 2},
	"conduit":        {"ElectroPipe Inc.", 340.00, 3},
	"pipe_pvc":       {"PlumbPro Supply", 280.00, 2},
	"drywall":        {"WallBoard Direct", 420.00, 2},
	"insulation":     {"WallBoard Direct", 380.00, 3},
	"gravel":         {"ReadyMix Central", 650.00, 1},
	"sand":           {"ReadyMix Central", 450.00, 1},
	"gloves":         {"Safety Supply", 250.00, 1},
	"safety_glasses": {"Safety Supply", 180.00, 1},
	"hard_hat":       {"Safety Supply", 150.00, 1},
}

// LookupSupplier returns the directory recommendation for a normalized
// item. The boolean is false when the fallback supplier was used, in
// which case estimate and delivery time are absent.
func LookupSupplier(normalizedItem string) (SupplierRecommendation, bool) {
	e, ok := supplierDirectory[normalizedItem]
	if !ok {
		return SupplierRecommendation{Name: FallbackSupplierName}, false
	}
	return SupplierRecommendation{
		Name:           e.name,
		EstimatedTotal: Ptr(e.total),
		DeliveryDays:   Ptr(e.days),
	}, true
}
