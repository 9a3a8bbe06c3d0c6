package lang

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

const (
	// confirmThreshold is the minimum detector confidence needed to keep a
	// user-declared language tag.
	confirmThreshold = 0.15

	// overrideThreshold is the minimum confidence for the top candidate to
	// replace unconfirmed user tags.
	overrideThreshold = 0.7

	// maxCandidates caps how many detector candidates are considered.
	maxCandidates = 5
)

// Candidate is a scored language guess.
type Candidate struct {
	Code  string
	Score float64
}

// Detector scores candidate languages for a piece of text, best first.
type Detector interface {
	Candidates(text string, k int) []Candidate
}

// LinguaDetector adapts a lingua language detector to the Detector
// interface. The underlying detector is expensive to build; construct it
// once in main and share it.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over all languages lingua supports.
func NewLinguaDetector() *LinguaDetector {
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
	}
}

// Candidates returns up to k scored guesses, highest confidence first.
func (d *LinguaDetector) Candidates(text string, k int) []Candidate {
	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) > k {
		values = values[:k]
	}
	out := make([]Candidate, 0, len(values))
	for _, v := range values {
		out = append(out, Candidate{
			Code:  strings.ToLower(v.Language().IsoCode639_1().String()),
			Score: v.Value(),
		})
	}
	return out
}

// Classifier reconciles detected languages against user-declared tags.
type Classifier struct {
	detector Detector
}

// NewClassifier creates a Classifier over the given detector.
func NewClassifier(detector Detector) *Classifier {
	return &Classifier{detector: detector}
}

// Detect returns the language codes to tag a post with. Declared tags are
// lowercased and stripped of region subtags before matching. Policy, in
// order: keep declared tags the detector confirms with score above 0.15;
// otherwise take the top candidate if it scores above 0.7; otherwise return
// no languages and the post stays untagged.
func (c *Classifier) Detect(text string, declared []string) []string {
	userLangs := normalizeTags(declared)

	text = Normalize(text)
	if text == "" {
		return userLangs
	}

	candidates := c.detector.Candidates(text, maxCandidates)
	scores := make(map[string]float64, len(candidates))
	for _, cand := range candidates {
		scores[cand.Code] = cand.Score
	}

	var confirmed []string
	for _, code := range userLangs {
		if scores[code] > confirmThreshold {
			confirmed = append(confirmed, code)
		}
	}
	if len(confirmed) > 0 {
		return confirmed
	}

	if len(candidates) > 0 && candidates[0].Score > overrideThreshold {
		return []string{candidates[0].Code}
	}

	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(t)
		if i := strings.Index(t, "-"); i >= 0 {
			t = t[:i]
		}
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
