package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Plausibility limits for a blood pressure reading in mmHg.
const (
	MaxSystolic  = 300
	MinSystolic  = 50
	MaxDiastolic = 200
	MinDiastolic = 20

	// DiastolicTolerance is how far diastolic may exceed systolic before the
	// reading is rejected.
	DiastolicTolerance = 5

	MinPulse = 20
	MaxPulse = 250
)

// BloodPressure is a canonical blood pressure reading
type BloodPressure struct {
	Systolic   int
	Diastolic  int
	Pulse      int
	Position   string
	Confidence float64
}

// String renders the canonical form. Parsing it again yields the same reading.
func (bp *BloodPressure) String() string {
	s := fmt.Sprintf("%d/%d", bp.Systolic, bp.Diastolic)
	if bp.Pulse > 0 {
		s += fmt.Sprintf(" pulse %d", bp.Pulse)
	}
	if bp.Position != "" {
		s += " " + bp.Position
	}
	return s
}

// Summary describes the reading for confirmation prompts.
func (bp *BloodPressure) Summary() string {
	return bp.String() + " mmHg"
}

var (
	bpSlashRe     = regexp.MustCompile(`\b(\d{2,3})\s*/\s*(\d{2,3})\b`)
	bpOverRe      = regexp.MustCompile(`\b(\d{2,3})\s+over\s+(\d{2,3})\b`)
	bpSystolicRe  = regexp.MustCompile(`\bsystolic\s*(?:of|is|was|at|:|=)?\s*(\d{2,3})\b`)
	bpDiastolicRe = regexp.MustCompile(`\bdiastolic\s*(?:of|is|was|at|:|=)?\s*(\d{2,3})\b`)
	pulseRe       = regexp.MustCompile(`\b(?:pulse|heart\s*rate|hr)\s*(?:of|is|was|at|:|=)?\s*(\d{2,3})\b|\b(\d{2,3})\s*bpm\b`)

	positions = []struct {
		re   *regexp.Regexp
		name string
	}{
		{regexp.MustCompile(`\b(?:sitting|seated|sat\s+down)\b`), "sitting"},
		{regexp.MustCompile(`\bstanding\b`), "standing"},
		{regexp.MustCompile(`\b(?:lying|laying|supine)\b`), "lying"},
	}
)

// ParseBloodPressure extracts a reading from "120/80", "120 over 80" or
// "systolic 120 diastolic 80". Labeled values are taken as labeled:
// "diastolic 130 systolic 120" is rejected rather than swapped. An unlabeled
// pair written bottom-first is swapped at reduced confidence.
func ParseBloodPressure(text string) (*BloodPressure, bool) {
	text = strings.ToLower(text)

	bp, ok := parseLabeledBP(text)
	if !ok {
		bp, ok = parseUnlabeledBP(text)
	}
	if !ok {
		return nil, false
	}

	if !ValidBloodPressure(bp.Systolic, bp.Diastolic) {
		return nil, false
	}

	bp.Pulse = parsePulse(text)
	for _, pos := range positions {
		if pos.re.MatchString(text) {
			bp.Position = pos.name
			break
		}
	}

	return bp, true
}

// ValidBloodPressure applies the range and ordering checks.
func ValidBloodPressure(systolic, diastolic int) bool {
	if systolic < MinSystolic || systolic > MaxSystolic {
		return false
	}
	if diastolic < MinDiastolic || diastolic > MaxDiastolic {
		return false
	}
	return diastolic <= systolic+DiastolicTolerance
}

func parseLabeledBP(text string) (*BloodPressure, bool) {
	sm := bpSystolicRe.FindStringSubmatch(text)
	dm := bpDiastolicRe.FindStringSubmatch(text)
	if sm == nil || dm == nil {
		return nil, false
	}
	return &BloodPressure{
		Systolic:   firstInt(sm[1:]),
		Diastolic:  firstInt(dm[1:]),
		Confidence: 0.95,
	}, true
}

// parseUnlabeledBP takes the first pair that passes the range checks, so a
// date like "10/12" earlier in the text does not hide the reading.
func parseUnlabeledBP(text string) (*BloodPressure, bool) {
	for _, c := range []struct {
		re         *regexp.Regexp
		confidence float64
	}{{bpSlashRe, 0.95}, {bpOverRe, 0.9}} {
		for _, m := range c.re.FindAllStringSubmatch(text, -1) {
			top, _ := strconv.Atoi(m[1])
			bottom, _ := strconv.Atoi(m[2])
			confidence := c.confidence

			if bottom > top+DiastolicTolerance {
				// "80/120": the larger value is almost certainly systolic
				top, bottom = bottom, top
				confidence = 0.6
			}
			if ValidBloodPressure(top, bottom) {
				return &BloodPressure{Systolic: top, Diastolic: bottom, Confidence: confidence}, true
			}
		}
	}
	return nil, false
}

func parsePulse(text string) int {
	m := pulseRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	p := firstInt(m[1:])
	if p < MinPulse || p > MaxPulse {
		return 0
	}
	return p
}

func firstInt(groups []string) int {
	for _, g := range groups {
		if g == "" {
			continue
		}
		if n, err := strconv.Atoi(g); err == nil {
			return n
		}
	}
	return 0
}
