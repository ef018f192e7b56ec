package supplyagent

import "regexp"

var (
	supplyVerbs = regexp.MustCompile(`(?i)need|necesit|ran out|running low|se (nos )?acab|faltan?|requeri|order|pedir|comprar|buy|out of|no (tenemos|hay|queda)`)
	supplyItems = regexp.MustCompile(`(?i)bolt|anchor|rebar|concrete|lumber|wood|nail|screw|wire|pipe|drywall|insulation|gravel|sand|cement|plywood|varilla|clavo|tornillo|alambre|tubo|madera|cemento|arena|grava|anclaje|concreto`)
)

// IsSupplyRequest reports whether the message, in either language,
// contains both a supply-intent phrase and a construction material.
func IsSupplyRequest(spanish, english string) bool {
	combined := spanish + " " + english
	return supplyVerbs.MatchString(combined) && supplyItems.MatchString(combined)
}

// Detect classifies the run's message.
func Detect(s State) DetectResult {
	return DetectResult{IsSupplyRequest: IsSupplyRequest(s.SpanishText, s.EnglishText)}
}
