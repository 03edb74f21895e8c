package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Container volumes in millilitres.
var ContainerML = map[string]float64{
	"cup":    250,
	"glass":  250,
	"bottle": 500,
	"mug":    350,
	"liter":  1000,
	"litre":  1000,
}

const mlPerOunce = 29.5735

// Hydration is a normalized fluid intake quantity.
type Hydration struct {
	AmountML   int
	Quantity   float64
	Unit       string
	Confidence float64
}

// Summary describes the intake for confirmation prompts.
func (h *Hydration) Summary() string {
	return fmt.Sprintf("%d ml", h.AmountML)
}

var (
	unitAmountRe    = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(ml|millilit(?:er|re)s?|l|lit(?:er|re)s?|oz|ounces?)\b`)
	containerRe     = regexp.MustCompile(`\b((?:\d+(?:\.\d+)?|` + numberWordPattern + `)(?:\s+and\s+a\s+half)?|(?:half|quarter)(?:\s+of)?\s+an?|a\s+couple\s+of|couple\s+of)\s+(cup|glass|bottle|mug|liter|litre)(?:s|es)?\b(\s+and\s+a\s+half\b)?`)
	bareContainerRe = regexp.MustCompile(`\b(cup|glass|bottle|mug)\b`)
)

// ParseHydration normalizes intake phrases to millilitres: "250ml", "1.5
// liters", "two bottles", "half a bottle", "a bottle and a half", "a glass
// of water".
func ParseHydration(text string) (*Hydration, bool) {
	text = strings.ToLower(text)

	if m := unitAmountRe.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 {
			return nil, false
		}
		unit := m[2]
		var ml float64
		switch {
		case unit == "ml" || strings.HasPrefix(unit, "millilit"):
			ml, unit = v, "ml"
		case unit == "l" || strings.HasPrefix(unit, "lit"):
			ml, unit = v*1000, "l"
		default:
			ml, unit = v*mlPerOunce, "oz"
		}
		return newHydration(ml, v, unit, 0.95)
	}

	if m := containerRe.FindStringSubmatch(text); m != nil {
		q, ok := parseQuantity(strings.TrimPrefix(m[1], "a "))
		if !ok {
			return nil, false
		}
		if m[3] != "" {
			// "a bottle and a half"
			if strings.Contains(m[1], "half") {
				return nil, false
			}
			q += 0.5
		}
		return newHydration(q*ContainerML[m[2]], q, m[2], 0.9)
	}

	if m := bareContainerRe.FindStringSubmatch(text); m != nil {
		return newHydration(ContainerML[m[1]], 1, m[1], 0.7)
	}

	return nil, false
}

func newHydration(ml, quantity float64, unit string, confidence float64) (*Hydration, bool) {
	amount := int(math.Round(ml))
	// more than 5 litres in one entry is not a plausible single intake
	if amount <= 0 || amount > 5000 {
		return nil, false
	}
	return &Hydration{AmountML: amount, Quantity: quantity, Unit: unit, Confidence: confidence}, true
}
