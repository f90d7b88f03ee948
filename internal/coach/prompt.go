package coach

import (
	"fmt"
	"strings"
)

// HabitContext is what the coach knows about the user.
type HabitContext struct {
	HabitTitles   []string
	CheckIns30Day int
}

const persona = `You are "HabitFlow Coach", a friendly coach inside a habit tracking app.

Personality: warm, supportive and conversational. Keep every reply short, two to five simple sentences.

You can talk about habits, routines, motivation, productivity, goals and wellness, as well as everyday topics like work, study, stress or a quick joke.

Rules:
1. Answer the user's message directly first.
2. Then ask one gentle follow-up about their habits, wellbeing or day, whichever fits.
3. Do not force the conversation back to habits when the question is about something else.
4. Do not introduce yourself or say you are an AI in every reply.
5. Plain text only: no markdown, no lists, no emojis unless the user uses them first.

Safety: if the user mentions self-harm, suicide, severe depression or medical treatment, be kind, say you are not a professional, and encourage them to contact someone they trust or a local helpline. Never give instructions for dangerous behaviour.`

// BuildPrompt combines the coach persona, the user's habit context and
// their message into a single prompt.
func BuildPrompt(hc HabitContext, message string) string {
	titles := strings.Join(hc.HabitTitles, ", ")
	if titles == "" {
		titles = "no habits yet"
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\nWhat you know about the user (use it only when it helps):\n")
	fmt.Fprintf(&sb, "- Active habits: %d\n", len(hc.HabitTitles))
	fmt.Fprintf(&sb, "- Habit titles: %s\n", titles)
	fmt.Fprintf(&sb, "- Check-ins in the last 30 days: %d\n", hc.CheckIns30Day)
	fmt.Fprintf(&sb, "\nUser message: %q\n\nReply once, following the rules above.", message)
	return sb.String()
}
