// ABOUTME: Terminal UI formatting utilities
// ABOUTME: Provides human-readable output for positions, levels and call history

package ui

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/models"
)

var faint = color.New(color.Faint)

// FormatCoordinate formats a coordinate pair.
func FormatCoordinate(lat, lng float64) string {
	return fmt.Sprintf("(%.6f, %.6f)", lat, lng)
}

// FormatAccuracy formats an accuracy radius, or "unknown" when absent.
func FormatAccuracy(acc *float64) string {
	if acc == nil {
		return "unknown"
	}
	if *acc >= 1000 {
		return fmt.Sprintf("±%.1f km", *acc/1000)
	}
	return fmt.Sprintf("±%.0f m", *acc)
}

// FormatPosition formats a served position with the level that produced it.
func FormatPosition(pos models.Position, levelName, outcome string) string {
	return fmt.Sprintf("%s %s %s - %s",
		color.CyanString(FormatCoordinate(pos.Coords.Latitude, pos.Coords.Longitude)),
		faint.Sprint(FormatAccuracy(pos.Coords.Accuracy)),
		FormatOutcome(outcome),
		color.GreenString(levelName))
}

// FormatOutcome colors an outcome label.
func FormatOutcome(outcome string) string {
	switch outcome {
	case "real":
		return color.RedString("[real]")
	case "fixed":
		return color.MagentaString("[fixed]")
	case "cached":
		return color.YellowString("[cached]")
	default:
		return color.GreenString("[%s]", outcome)
	}
}

// FormatLevel formats one level for the level list. isDefault marks the
// default level.
func FormatLevel(l level.Level, isDefault bool) string {
	marker := "  "
	if isDefault {
		marker = color.GreenString("* ")
	}
	switch l.Kind {
	case level.KindRadius:
		return fmt.Sprintf("%s%s %s",
			marker,
			color.CyanString("%-8s", l.Name),
			faint.Sprintf("radius %.0f m, cache %s", l.Radius, FormatDuration(l.CacheTTL)))
	case level.KindFixed:
		return fmt.Sprintf("%s%s %s", marker, color.CyanString("%-8s", l.Name), faint.Sprint("fixed position"))
	default:
		return fmt.Sprintf("%s%s %s", marker, color.CyanString("%-8s", l.Name), faint.Sprint("unmodified location"))
	}
}

// FormatDomainLevel formats a per-domain override.
func FormatDomainLevel(domain, levelName string) string {
	return fmt.Sprintf("  %s %s", color.GreenString("%-30s", domain), levelName)
}

// FormatEvent formats one history entry.
func FormatEvent(ev *models.CallEvent) string {
	if ev == nil {
		return faint.Sprint("  (no event)")
	}
	return fmt.Sprintf("  %s %s %s %s - %s",
		ev.RecordedAt.Local().Format("Jan 2, 3:04 PM"),
		color.GreenString(ev.Origin),
		FormatOutcome(ev.Outcome),
		color.CyanString(FormatCoordinate(ev.Latitude, ev.Longitude)),
		faint.Sprint(ev.Level))
}

// FormatPaused formats the global pause state.
func FormatPaused(paused bool) string {
	if paused {
		return color.RedString("paused (real location served to top-level pages)")
	}
	return color.GreenString("active")
}

// FormatDuration formats a cache TTL in minutes or hours.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "off"
	}
	if d < time.Hour || d%time.Hour != 0 {
		return fmt.Sprintf("%.0f min", d.Minutes())
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}

// FormatRelativeTime formats a time as relative to now.
func FormatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	// Handle future times (clock skew, bad data)
	if diff < 0 {
		return color.YellowString("in the future")
	}

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(diff.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
