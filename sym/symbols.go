// Package sym holds the glyphs postpulse prints in logs and CLI output.
// Each glyph marks a subsystem so a mixed log stream can be scanned by eye.
package sym

// Subsystem glyphs.
const (
	AM = "≡" // am: configuration
	SO = "⟶" // so: outbound post delivered to a platform
	AT = "✦" // at: analytics snapshot moment
	IX = "⨳" // ix: draft generation and knowledge ingest
)

// Scheduler and storage glyphs.
const (
	Pulse      = "꩜" // scheduler runs, retries, budget
	PulseOpen  = "✿" // startup and stale-lock recovery
	PulseClose = "❀" // graceful shutdown
	DB         = "⊔" // database/storage layer
)

// CommandPrefix returns the glyph that heads a CLI command's output.
func CommandPrefix(command string) string {
	switch command {
	case "am":
		return AM
	case "db":
		return DB
	case "run-posting", "jobs", "serve":
		return Pulse
	case "fetch-analytics":
		return AT
	case "draft":
		return IX
	}
	return ""
}
