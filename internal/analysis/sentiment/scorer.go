package sentiment

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/seenimoa/ibexai/pkg/models"
)

// ------------------------------------------------------------------
// Keyword-based headline scorer (offline, no LLM needed).
// The aggregate is handed to the market analysis stage next to the
// headlines themselves.
// ------------------------------------------------------------------

// bullish / bearish keyword dictionaries (lowercase). Spanish feeds are the
// norm; a few English terms cover wire services.
var bullishWords = map[string]float64{
	"alcista": 0.7, "sube": 0.5, "suben": 0.5, "dispara": 0.7, "repunta": 0.5,
	"rebote": 0.5, "máximos": 0.6, "récord": 0.6, "beneficio": 0.3,
	"mejora": 0.4, "crecimiento": 0.4, "dividendo": 0.4, "recompra": 0.5,
	"eleva": 0.4, "supera": 0.5, "comprar": 0.5, "sobreponderar": 0.6,
	"rally": 0.6, "upgrade": 0.6, "record high": 0.7, "beats": 0.5,
}

var bearishWords = map[string]float64{
	"bajista": 0.7, "cae": 0.5, "caen": 0.5, "desploma": 0.8, "hunde": 0.7,
	"pérdidas": 0.5, "mínimos": 0.6, "recorta": 0.4, "rebaja": 0.5,
	"recesión": 0.6, "inflación": 0.3, "multa": 0.5, "investigación": 0.5,
	"advierte": 0.4, "incertidumbre": 0.4, "vender": 0.5, "infraponderar": 0.6,
	"crash": 0.8, "downgrade": 0.6, "selloff": 0.7, "profit warning": 0.7,
}

// Score is the sentiment of a single headline.
type Score struct {
	Headline    string    `json:"headline"`
	Score       float64   `json:"score"`
	Confidence  float64   `json:"confidence"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Aggregate is the combined sentiment across headlines.
type Aggregate struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
}

// ScoreHeadline returns a sentiment score for a single headline.
// Score ranges from -1.0 (very bearish) to +1.0 (very bullish).
func ScoreHeadline(headline string) (score float64, confidence float64) {
	lower := strings.ToLower(headline)

	bullScore := 0.0
	bearScore := 0.0
	matches := 0

	for word, weight := range bullishWords {
		if strings.Contains(lower, word) {
			bullScore += weight
			matches++
		}
	}

	for word, weight := range bearishWords {
		if strings.Contains(lower, word) {
			bearScore += weight
			matches++
		}
	}

	if matches == 0 {
		return 0, 0.1 // no signal
	}

	total := bullScore + bearScore
	if total == 0 {
		return 0, 0.1
	}

	score = (bullScore - bearScore) / total
	confidence = math.Min(float64(matches)*0.15+0.2, 0.85)

	return score, confidence
}

// ScoreItem scores a news headline together with its summary.
func ScoreItem(h models.Headline) Score {
	text := h.Title
	if h.Summary != "" {
		text += " " + h.Summary
	}
	score, confidence := ScoreHeadline(text)
	return Score{
		Headline:    h.Title,
		Score:       score,
		Confidence:  confidence,
		PublishedAt: h.Published,
	}
}

// Combine computes a time-weighted aggregate of the scores as of now.
// Weight halves every 24 hours; undated items count as fresh.
func Combine(scores []Score, now time.Time) Aggregate {
	if len(scores) == 0 {
		return Aggregate{Label: LabelNeutral}
	}

	weightedSum := 0.0
	totalWeight := 0.0
	confSum := 0.0

	for _, s := range scores {
		age := 0.0
		if !s.PublishedAt.IsZero() {
			age = math.Max(now.Sub(s.PublishedAt).Hours(), 0)
		}
		w := math.Exp(-math.Ln2*age/24) * s.Confidence

		weightedSum += s.Score * w
		totalWeight += w
		confSum += s.Confidence
	}

	avg := 0.0
	if totalWeight > 0 {
		avg = weightedSum / totalWeight
	}

	return Aggregate{
		Score:      avg,
		Confidence: confSum / float64(len(scores)),
		Label:      label(avg),
		Count:      len(scores),
	}
}

// Labels for the aggregate score.
const (
	LabelBullish         = "Alcista"
	LabelSlightlyBullish = "Ligeramente alcista"
	LabelNeutral         = "Neutral"
	LabelSlightlyBearish = "Ligeramente bajista"
	LabelBearish         = "Bajista"
)

func label(score float64) string {
	switch {
	case score > 0.3:
		return LabelBullish
	case score > 0.1:
		return LabelSlightlyBullish
	case score < -0.3:
		return LabelBearish
	case score < -0.1:
		return LabelSlightlyBearish
	}
	return LabelNeutral
}

// Analyze scores every headline and combines the result.
func Analyze(items []models.Headline, now time.Time) Aggregate {
	scores := make([]Score, 0, len(items))
	for _, h := range items {
		scores = append(scores, ScoreItem(h))
	}
	return Combine(scores, now)
}

// Format renders the aggregate as one prompt line. Empty with no headlines.
func Format(a Aggregate) string {
	if a.Count == 0 {
		return ""
	}
	return fmt.Sprintf("Sentimiento agregado de titulares: %s (%+.2f, %d titulares)\n", a.Label, a.Score, a.Count)
}
