package memory

import (
	"fmt"
	"strings"

	"github.com/gmsas95/myrai-care/internal/actions"
	"github.com/gmsas95/myrai-care/internal/persona"
)

// SystemPrompt renders the grounding context for the completion provider
func (a *Assembler) SystemPrompt(mc *Context) string {
	var parts []string

	parts = append(parts, a.clock.Context(mc.Now))
	parts = append(parts, a.identity.Prompt(mc.LongTerm.Personality, mc.LongTerm.RelationshipStage))
	parts = append(parts, renderLongTerm(mc))
	parts = append(parts, renderWorking(mc))

	if mc.Summary != "" {
		parts = append(parts, "## Earlier in this conversation\n"+mc.Summary)
	}
	if len(mc.MoodTrend) > 0 {
		parts = append(parts, renderMoodTrend(mc.MoodTrend))
	}
	if mc.LastMedication != nil {
		parts = append(parts, renderMedicationDetail(mc))
	}
	if mc.Working.EmergencyActive || mc.Intents.Crisis {
		parts = append(parts, "## Urgent\nThe person may be in an emergency. Put their safety first, keep it short, and urge them to contact emergency services or someone nearby. Do not propose routine actions.")
	}
	if a.catalog != nil {
		parts = append(parts, actionInstructions+"\n\nAvailable actions:\n"+a.catalog.PromptCatalog())
	}

	return strings.Join(parts, "\n\n")
}

func renderLongTerm(mc *Context) string {
	lt := mc.LongTerm
	lines := []string{"## About the person"}

	name := lt.FirstName
	if name == "" {
		name = "(not shared yet)"
	}
	lines = append(lines, "Name: "+name)

	if len(lt.Conditions) > 0 {
		lines = append(lines, "Conditions: "+strings.Join(lt.Conditions, ", "))
	}

	if len(lt.Medications) == 0 {
		lines = append(lines, "Medications: none on file")
	} else {
		lines = append(lines, "Medications:")
		for _, m := range lt.Medications {
			line := "- " + m.Name
			if m.Dosage != "" {
				line += " " + m.Dosage
			}
			if m.Schedule != "" {
				line += " (" + m.Schedule + ")"
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func renderWorking(mc *Context) string {
	w := mc.Working
	lines := []string{"## Today"}

	if w.TodayMood != "" {
		lines = append(lines, "Mood at check-in: "+w.TodayMood)
	} else {
		lines = append(lines, "No check-in yet today.")
	}
	if w.LastCheckInDate != "" && w.TodayMood == "" {
		lines = append(lines, "Last check-in: "+w.LastCheckInDate)
	}
	if w.LastMedication != nil {
		lines = append(lines, fmt.Sprintf("Last medication event: %s %s, %s",
			w.LastMedication.Name, w.LastMedication.Status, persona.FormatSince(w.LastMedication.OccurredAt, mc.Now)))
	}
	if w.ActiveLocation != "" {
		lines = append(lines, "Currently at: "+w.ActiveLocation)
	}
	return strings.Join(lines, "\n")
}

func renderMoodTrend(points []MoodPoint) string {
	lines := []string{"## Mood over the last days"}
	for _, p := range points {
		line := fmt.Sprintf("- %s: %s", p.Day, p.Mood)
		if p.Energy > 0 {
			line += fmt.Sprintf(", energy %d/5", p.Energy)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderMedicationDetail(mc *Context) string {
	d := mc.LastMedication
	lines := []string{"## Medication history (7 days)"}
	if d.LastTaken != nil {
		lines = append(lines, fmt.Sprintf("Last taken: %s, %s", d.LastTaken.Name, persona.FormatSince(d.LastTaken.OccurredAt, mc.Now)))
	}
	if len(d.Recent) == 0 {
		lines = append(lines, "Nothing logged this week.")
	} else {
		lines = append(lines, fmt.Sprintf("Doses logged: %d, taken %.0f%%", len(d.Recent), d.Adherence))
	}
	return strings.Join(lines, "\n")
}

var actionInstructions = fmt.Sprintf(`## Recording things
You never write to the person's records yourself. To record something, add an action marker to your reply:
%s{"id": "<short id>", "tool": "<action id>", "parameters": {...}, "confidence": 0.0-1.0, "reasoning": "<why>"}%s
- Only add a marker when the person clearly asked for it or clearly reported it.
- Set confidence honestly. If you are unsure, ask a question instead of adding a marker.
- Markers are removed before the person sees your reply, so also say in words what you are doing.`, actions.ToolCallOpen, actions.ToolCallClose)
