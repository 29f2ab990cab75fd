package reminder

import (
	"math/rand"
	"strings"
)

// templates are the varied phrasings used for plain reminder texts, so a
// recurring reminder does not read identically every time.
var templates = []string{
	"🔔 ¡Recordatorio! %s",
	"⏰ Ey! No te olvides: %s",
	"📌 Te recuerdo: %s",
	"🔔 Che! Tenías pendiente: %s",
	"⏰ Es hora: %s",
	"📝 Anotado tenías: %s",
	"🔔 ¡Atención! %s",
}

// preComposedEmoji marks machine-generated messages (digests, summaries)
// that must pass through verbatim instead of being wrapped again.
var preComposedEmoji = []string{"🔔", "⏰", "📌", "📝", "📅", "📰", "💸", "✅", "💡", "🚨"}

// preComposedOpeners are phrasings the assistant itself produces.
var preComposedOpeners = []string{"Te ", "Ey!", "Che!", "Hola"}

// Compose turns stored reminder text into the outgoing message. Already
// composed text is used verbatim; anything else gets a random template.
// Template choice is deliberately non-deterministic.
func Compose(text string) string {
	if IsPreComposed(text) {
		return text
	}
	t := templates[rand.Intn(len(templates))]
	return strings.Replace(t, "%s", text, 1)
}

func IsPreComposed(text string) bool {
	s := strings.TrimSpace(text)
	for _, e := range preComposedEmoji {
		if strings.HasPrefix(s, e) {
			return true
		}
	}
	for _, o := range preComposedOpeners {
		if strings.HasPrefix(s, o) {
			return true
		}
	}
	return false
}
