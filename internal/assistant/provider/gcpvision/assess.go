package gcpvision

import (
	"math"
	"strings"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

type Label struct {
	Description string
	Score       float64
}

type category struct {
	name            string
	cues            []string
	ratePerSqm      float64
	insurable       bool
	recommendations []string
}

// Labels below this confidence are ignored.
const minLabelScore = 0.55

// Minimum charge for any attended job, AUD.
const minCallout = 350.0

var categories = []category{
	{
		name:       "water",
		cues:       []string{"water", "flood", "leak", "moisture", "wet", "puddle"},
		ratePerSqm: 45,
		recommendations: []string{
			"Turn off the water supply at the mains if the source is still active",
			"Move furniture and valuables off wet flooring",
			"Commercial drying equipment should be set up within 24-48 hours",
		},
	},
	{
		name:       "fire",
		cues:       []string{"fire", "smoke", "soot", "charred", "burn", "ashes"},
		ratePerSqm: 85,
		insurable:  true,
		recommendations: []string{
			"Do not re-enter until the fire service has cleared the property",
			"Avoid wiping soot from walls as it can smear and set",
			"Smoke odour treatment and air scrubbing will be required",
		},
	},
	{
		name:       "mould",
		cues:       []string{"mold", "mould", "fungus", "mildew"},
		ratePerSqm: 60,
		recommendations: []string{
			"Keep the affected room closed and ventilated to outside air",
			"Do not disturb visible growth as spores spread easily",
		},
	},
	{
		name:       "storm",
		cues:       []string{"storm", "hail", "debris", "fallen tree", "roof", "shingle"},
		ratePerSqm: 70,
		insurable:  true,
		recommendations: []string{
			"Cover exposed roof areas with tarpaulins where safe to do so",
			"Photograph all damage before any clean-up for your insurer",
		},
	},
	{
		name:       "structural",
		cues:       []string{"crack", "collapse", "rubble", "fracture", "sagging"},
		ratePerSqm: 120,
		insurable:  true,
		recommendations: []string{
			"Keep clear of sagging ceilings or cracked load-bearing walls",
		},
	},
}

var areaBySeverity = map[chat.Severity]float64{
	chat.SeverityMinor:        5,
	chat.SeverityModerate:     15,
	chat.SeveritySevere:       40,
	chat.SeverityCatastrophic: 100,
}

// Assess turns vision labels into a damage assessment. It is pure so the
// mapping can be tested without the API. images is the number of photos the
// labels came from and scales the affected area.
func Assess(labels []Label, images int) *chat.ImageAnalysis {
	if images < 1 {
		images = 1
	}
	best := make(map[string]float64, len(categories))
	for _, l := range labels {
		if l.Score < minLabelScore {
			continue
		}
		desc := strings.ToLower(strings.TrimSpace(l.Description))
		for _, c := range categories {
			for _, cue := range c.cues {
				if strings.Contains(desc, cue) && l.Score > best[c.name] {
					best[c.name] = l.Score
				}
			}
		}
	}

	out := &chat.ImageAnalysis{
		DamageType:      []string{},
		Severity:        chat.SeverityMinor,
		Recommendations: []string{},
	}
	if len(best) == 0 {
		out.Recommendations = append(out.Recommendations, "No obvious damage was detected in the photos; a technician can confirm on site")
		return out
	}

	var points, rate float64
	insurable := false
	for _, c := range categories {
		score, ok := best[c.name]
		if !ok {
			continue
		}
		out.DamageType = append(out.DamageType, c.name)
		out.Recommendations = append(out.Recommendations, c.recommendations...)
		points += score
		rate = math.Max(rate, c.ratePerSqm)
		insurable = insurable || c.insurable
	}

	switch {
	case best["structural"] >= 0.8 || points >= 2.4:
		out.Severity = chat.SeverityCatastrophic
	case points >= 1.6:
		out.Severity = chat.SeveritySevere
	case points >= 0.8:
		out.Severity = chat.SeverityModerate
	default:
		out.Severity = chat.SeverityMinor
	}

	area := areaBySeverity[out.Severity] * (1 + 0.25*float64(images-1))
	out.AffectedArea = math.Round(area*10) / 10
	out.EstimatedCost = math.Round(math.Max(minCallout, area*rate))
	out.InsuranceRelevant = insurable || out.Severity != chat.SeverityMinor
	return out
}
