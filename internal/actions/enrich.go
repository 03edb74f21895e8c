package actions

import (
	"fmt"
	"time"

	"github.com/gmsas95/myrai-care/internal/capability"
	"github.com/gmsas95/myrai-care/internal/extract"
	"github.com/gmsas95/myrai-care/internal/skills"
)

// EnricherFunc normalizes free-text parameters of a request in place and
// records one ExtractionOutcome per field it looked at. It never guesses:
// a phrase it cannot read is recorded as unmatched.
type EnricherFunc func(req *ActionRequest, now time.Time)

// Enrichers maps capability ids to their enrichment step
type Enrichers map[string]EnricherFunc

// Enrich runs the enricher for req's capability, if any.
func (e Enrichers) Enrich(req *ActionRequest, now time.Time) {
	if fn, ok := e[req.Capability]; ok {
		fn(req, now)
	}
}

// DefaultEnrichers returns the enrichment steps for the built-in catalog.
func DefaultEnrichers() Enrichers {
	return Enrichers{
		capability.LogBloodPressure:   enrichBloodPressure,
		capability.LogHydration:       enrichHydration,
		capability.CreateReminder:     enrichReminder,
		capability.AddClinicalDate:    enrichClinicalDate,
		capability.RecordVisitOutcome: enrichVisitOutcome,
		capability.SaveRecommendation: enrichRecommendation,
	}
}

func (r *ActionRequest) record(field string, matched bool, confidence float64, summary string) {
	r.Extractions = append(r.Extractions, ExtractionOutcome{
		Field:      field,
		Matched:    matched,
		Confidence: confidence,
		Summary:    summary,
	})
}

func enrichBloodPressure(req *ActionRequest, _ time.Time) {
	p := req.Parameters

	if reading := skills.StringArg(p, "reading"); reading != "" {
		bp, ok := extract.ParseBloodPressure(reading)
		if !ok {
			req.record("reading", false, 0, "")
			return
		}
		p["systolic"] = float64(bp.Systolic)
		p["diastolic"] = float64(bp.Diastolic)
		if bp.Pulse > 0 {
			p["pulse"] = float64(bp.Pulse)
		}
		if bp.Position != "" {
			if _, set := p["position"]; !set {
				p["position"] = bp.Position
			}
		}
		req.record("reading", true, bp.Confidence, bp.Summary())
		return
	}

	sys, okS := skills.NumberArg(p, "systolic")
	dia, okD := skills.NumberArg(p, "diastolic")
	if !okS || !okD {
		// the validator reports the missing numbers
		return
	}
	if !extract.ValidBloodPressure(int(sys), int(dia)) {
		req.record("reading", false, 0, "")
		return
	}
	bp := extract.BloodPressure{Systolic: int(sys), Diastolic: int(dia)}
	if pulse, ok := skills.NumberArg(p, "pulse"); ok {
		bp.Pulse = int(pulse)
	}
	bp.Position = skills.StringArg(p, "position")
	req.record("reading", true, 1, bp.Summary())
}

func enrichHydration(req *ActionRequest, _ time.Time) {
	p := req.Parameters
	quantity := skills.StringArg(p, "quantity")
	if quantity == "" {
		if ml, ok := skills.NumberArg(p, "amount_ml"); ok {
			if ml <= 0 || ml > 5000 {
				req.record("amount_ml", false, 0, "")
			}
		}
		return
	}

	h, ok := extract.ParseHydration(quantity)
	if !ok {
		req.record("quantity", false, 0, "")
		return
	}
	p["amount_ml"] = float64(h.AmountML)
	req.record("quantity", true, h.Confidence, h.Summary())
}

func enrichReminder(req *ActionRequest, now time.Time) {
	p := req.Parameters
	schedule := skills.StringArg(p, "schedule")
	if schedule == "" {
		return
	}

	if rec, ok := extract.ParseRecurrence(schedule); ok {
		p["time"] = rec.Time.String()
		if len(rec.Days) > 0 {
			days := make([]int, len(rec.Days))
			for i, d := range rec.Days {
				days[i] = int(d)
			}
			p["days"] = days
		}
		if rec.IntervalDays > 0 {
			p["interval_days"] = float64(rec.IntervalDays)
		}
		req.record("schedule", true, rec.Confidence, rec.Summary())
		return
	}

	if date, ok := extract.ParseInterval(schedule, now); ok {
		at := date.Date
		if !date.HasTime {
			tod := extract.DefaultReminderTime
			at = time.Date(at.Year(), at.Month(), at.Day(), tod.Hour, tod.Minute, 0, 0, at.Location())
		}
		p["remind_at"] = at.Format(time.RFC3339)
		p["time"] = fmt.Sprintf("%02d:%02d", at.Hour(), at.Minute())
		req.record("schedule", true, date.Confidence, "once on "+at.Format("Mon Jan 2, 2006 at 15:04"))
		return
	}

	req.record("schedule", false, 0, "")
}

func enrichClinicalDate(req *ActionRequest, now time.Time) {
	p := req.Parameters
	text := skills.StringArg(p, "date")
	if text == "" {
		return
	}
	date, ok := extract.ParseInterval(text, now)
	if !ok {
		req.record("date", false, 0, "")
		return
	}
	p["date_iso"] = date.Date.Format(time.RFC3339)
	req.record("date", true, date.Confidence, date.Summary())
}

func enrichVisitOutcome(req *ActionRequest, now time.Time) {
	p := req.Parameters

	if followUp := skills.StringArg(p, "follow_up"); followUp != "" {
		date, ok := extract.ParseInterval(followUp, now)
		if !ok {
			req.record("follow_up", false, 0, "")
			return
		}
		p["follow_up_date"] = date.Date.Format("2006-01-02")
		req.record("follow_up", true, date.Confidence, "follow-up "+date.Summary())
	}

	summary := skills.StringArg(p, "summary")
	if summary == "" {
		return
	}
	outcome := extract.ExtractVisitOutcome(summary, now)

	if skills.StringArg(p, "provider") == "" && outcome.Provider != "" {
		p["provider"] = outcome.Provider
	}
	if _, set := p["follow_up_date"]; !set && outcome.FollowUp != nil {
		p["follow_up_date"] = outcome.FollowUp.Date.Format("2006-01-02")
		req.record("follow_up", true, outcome.FollowUp.Confidence, "follow-up "+outcome.FollowUp.Summary())
	}
	if len(skills.StringSliceArg(p, "medication_changes")) == 0 && len(outcome.MedicationChanges) > 0 {
		changes := make([]string, len(outcome.MedicationChanges))
		for i, c := range outcome.MedicationChanges {
			changes[i] = c.Action + " " + c.Name
		}
		p["medication_changes"] = changes
	}
	if len(skills.StringSliceArg(p, "recommendations")) == 0 && len(outcome.Recommendations) > 0 {
		recs := make([]string, len(outcome.Recommendations))
		for i, r := range outcome.Recommendations {
			recs[i] = r.Text
		}
		p["recommendations"] = recs
	}
}

func enrichRecommendation(req *ActionRequest, _ time.Time) {
	p := req.Parameters
	text := skills.StringArg(p, "text")
	if text == "" {
		return
	}
	rec, ok := extract.ExtractRecommendation(text)
	if !ok {
		return
	}
	if skills.StringArg(p, "category") == "" {
		p["category"] = rec.Category
	}
	if rec.Cadence != nil && skills.StringArg(p, "cadence") == "" {
		p["cadence"] = rec.Cadence.Summary()
	}
}
