package prompts

import "strings"

// ── Spanish Market–Specific Formatting & Context ──

// SpanishMarketContext provides Spain-specific market context for agent prompts.
const SpanishMarketContext = `
## Contexto del mercado español
- Mercado: Bolsa de Madrid (BME), índice de referencia IBEX35
- Divisa: euro (€)
- Horario: 9:00 a 17:30 (hora de Madrid), subasta de cierre hasta las 17:35
- Liquidación: D+2
`

// SpanishNumberFormat describes the number conventions agents must follow.
const SpanishNumberFormat = `
## Formato numérico
- Importes en euros con dos decimales: 12.34 €
- Capitalización en millones (M€) o miles de millones (B €)
- Porcentajes siempre con símbolo: 4.25%
`

// SpanishMarketPromptSuffix returns the suffix appended to every persona's
// system prompt.
func SpanishMarketPromptSuffix() string {
	return SpanishMarketContext + SpanishNumberFormat
}

// Risk profiles offered to the user.
const (
	ProfileLow      = "Bajo"
	ProfileModerate = "Moderado"
	ProfileHigh     = "Alto"
)

// Profiles lists the risk profiles in display order.
var Profiles = []string{ProfileLow, ProfileModerate, ProfileHigh}

// NormalizeProfile maps user input onto one of Profiles, case-insensitively.
// Unknown values are returned trimmed and unchanged.
func NormalizeProfile(p string) string {
	p = strings.TrimSpace(p)
	for _, known := range Profiles {
		if strings.EqualFold(p, known) {
			return known
		}
	}
	return p
}

// IsKnownProfile reports whether p is one of Profiles.
func IsKnownProfile(p string) bool {
	for _, known := range Profiles {
		if p == known {
			return true
		}
	}
	return false
}
