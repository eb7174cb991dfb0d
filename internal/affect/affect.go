// Package affect maps discrete emotional-state labels to scalar intensities
// and detects affect signals in free text.
package affect

import "strings"

// Label is a discrete emotional-state label attached to an utterance.
type Label string

const (
	Calm     Label = "calm"
	Neutral  Label = "neutral"
	Anxious  Label = "anxious"
	High     Label = "high"
	Detached Label = "detached"
	Low      Label = "low"
	Guarded  Label = "guarded"
	Lit      Label = "lit"
)

// intensities maps each label to a scalar in [0,1]. These drive memory
// retention and retrieval re-ranking, so the ordering matters more than the
// exact values: detached < calm < neutral < guarded < low < anxious < lit < high.
var intensities = map[Label]float64{
	Detached: 0.1,
	Calm:     0.3,
	Neutral:  0.5,
	Guarded:  0.6,
	Low:      0.7,
	Anxious:  0.8,
	Lit:      0.85,
	High:     0.9,
}

// Intensity returns the scalar intensity for a label. Unknown labels report
// ok=false and the neutral intensity.
func Intensity(label Label) (float64, bool) {
	i, ok := intensities[label]
	if !ok {
		return intensities[Neutral], false
	}
	return i, true
}

// Known reports whether label is part of the closed enumeration.
func Known(label Label) bool {
	_, ok := intensities[label]
	return ok
}

// Context carries live affect signals alongside a query or utterance.
// Pitch and Energy are normalized to [0,1] by the upstream audio pipeline;
// TemporalVariance captures how much the affect moved within the utterance.
type Context struct {
	Label            Label
	Intensity        float64
	Pitch            float64
	Energy           float64
	TemporalVariance float64
}

// NewContext builds a Context from a label, deriving intensity from the
// lookup table. Pitch/energy/variance default to the intensity itself when
// no audio signals are available.
func NewContext(label Label) Context {
	i, _ := Intensity(label)
	return Context{
		Label:            label,
		Intensity:        i,
		Pitch:            i,
		Energy:           i,
		TemporalVariance: 0,
	}
}

// FeatureVector returns the fixed-length affect feature block appended to
// semantic embeddings: [pitch, energy, intensity, temporalVariance].
func (c Context) FeatureVector() []float64 {
	return []float64{
		clamp01(c.Pitch),
		clamp01(c.Energy),
		clamp01(c.Intensity),
		clamp01(c.TemporalVariance),
	}
}

// FeatureDims is the length of the affect feature block.
const FeatureDims = 4

// Smooth blends a new affect vector with the previous one to avoid jitter
// between consecutive utterances. alpha is the weight of the new vector.
func Smooth(prev, next []float64, alpha float64) []float64 {
	if len(prev) != len(next) {
		return next
	}
	out := make([]float64, len(next))
	for i := range next {
		out[i] = alpha*next[i] + (1-alpha)*prev[i]
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Detector identifies an affect label and confidence from free text. The
// lexicon implementation below is the default; callers may swap in a model-
// backed detector without touching the scorer or state machine.
type Detector interface {
	Detect(text string) (Label, float64)
}

// Lexicon holds the keyword lists the default detector and the risk scorer
// read. These are product-tuning values, not structural constants, so they
// are configurable as a unit.
type Lexicon struct {
	Negative []string // distress or negative-mood indicators
	Positive []string // positive-mood indicators
	Social   []string // social-contact content
	Distrust []string // negative sentiment about the system itself
	Labels   map[Label][]string
}

// DefaultLexicon returns the built-in keyword lists.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Negative: []string{
			"sad", "lonely", "alone", "scared", "afraid", "worried", "anxious",
			"hopeless", "tired of", "can't sleep", "hurt", "pain", "upset",
			"depressed", "nobody", "give up",
		},
		Positive: []string{
			"happy", "glad", "grateful", "thank", "better", "good day",
			"excited", "proud", "enjoyed", "wonderful", "love",
		},
		Social: []string{
			"friend", "family", "daughter", "son", "neighbor", "visit",
			"called", "church", "group", "together", "grandkids",
		},
		Distrust: []string{
			"doesn't work", "useless", "waste of time", "don't trust",
			"never helps", "stupid machine", "ignore",
		},
		Labels: map[Label][]string{
			Anxious:  {"worried", "anxious", "nervous", "scared", "afraid", "panic"},
			Low:      {"sad", "down", "hopeless", "depressed", "crying", "miss"},
			Detached: {"whatever", "don't care", "doesn't matter", "fine i guess"},
			Guarded:  {"rather not", "private", "none of your", "don't want to talk"},
			High:     {"amazing", "fantastic", "best day", "thrilled", "so happy"},
			Lit:      {"excited", "can't wait", "pumped", "energized"},
			Calm:     {"peaceful", "relaxed", "calm", "settled", "content"},
		},
	}
}

// LexiconDetector is the default keyword-based Detector.
type LexiconDetector struct {
	lex Lexicon
}

// NewLexiconDetector returns a Detector over the given lexicon.
func NewLexiconDetector(lex Lexicon) *LexiconDetector {
	return &LexiconDetector{lex: lex}
}

// Detect scans text for label keywords and returns the label with the most
// hits. Confidence grows with hit count and saturates at 0.9; no hits at all
// yields neutral with low confidence.
func (d *LexiconDetector) Detect(text string) (Label, float64) {
	lower := strings.ToLower(text)

	best := Neutral
	bestHits := 0
	for label, words := range d.lex.Labels {
		hits := countHits(lower, words)
		if hits > bestHits {
			best = label
			bestHits = hits
		}
	}

	if bestHits == 0 {
		return Neutral, 0.3
	}
	confidence := 0.5 + 0.1*float64(bestHits)
	if confidence > 0.9 {
		confidence = 0.9
	}
	return best, confidence
}

// CountNegative returns the number of negative-indicator hits in text.
func (lex Lexicon) CountNegative(text string) int {
	return countHits(strings.ToLower(text), lex.Negative)
}

// CountPositive returns the number of positive-indicator hits in text.
func (lex Lexicon) CountPositive(text string) int {
	return countHits(strings.ToLower(text), lex.Positive)
}

// HasSocial reports whether text mentions social contact.
func (lex Lexicon) HasSocial(text string) bool {
	return countHits(strings.ToLower(text), lex.Social) > 0
}

// CountDistrust returns the number of system-distrust hits in text.
func (lex Lexicon) CountDistrust(text string) int {
	return countHits(strings.ToLower(text), lex.Distrust)
}

func countHits(lower string, words []string) int {
	hits := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return hits
}
