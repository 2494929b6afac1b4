// Package report renders read-only textual views of the master ontology and
// the recipe index. It never mutates state and works on published snapshots,
// so it is safe to call at any time.
package report

import (
	"fmt"
	"sort"
	"strings"

	"clipOntology/brain"
	"clipOntology/core"
	"clipOntology/ontology"
)

const lineWidth = 70

func rule(ch string) string {
	return strings.Repeat(ch, lineWidth)
}

// RenderMasterReport renders the accumulated ontology: top values per
// category with counts and share bars, duration statistics per clip
// function, top correlation pairs and top function transitions.
func RenderMasterReport(m *ontology.MasterOntology, r *brain.RecipeIndex) string {
	var b strings.Builder

	b.WriteString("╔" + strings.Repeat("═", lineWidth-2) + "╗\n")
	b.WriteString("║" + center("MASTER CLIP ONTOLOGY REPORT", lineWidth-2) + "║\n")
	b.WriteString("╚" + strings.Repeat("═", lineWidth-2) + "╝\n\n")

	b.WriteString("METADATA\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Created: %s\n", m.CreatedAt)
	fmt.Fprintf(&b, "Last Updated: %s\n", m.UpdatedAt)
	fmt.Fprintf(&b, "Videos Analyzed: %d\n", m.VideosAnalyzed)
	fmt.Fprintf(&b, "Total Clips Analyzed: %d\n", m.TotalClips)
	if m.VideosAnalyzed > 0 {
		fmt.Fprintf(&b, "Average Clips per Video: %.1f\n", float64(m.TotalClips)/float64(m.VideosAnalyzed))
	}
	b.WriteString("\n")

	for _, def := range ontology.Categories {
		known := m.KnownValues(def.Name)
		if len(known) == 0 {
			continue
		}
		total := 0
		for _, vf := range known {
			total += vf.Frequency
		}

		b.WriteString(rule("=") + "\n")
		b.WriteString(strings.ToUpper(def.Title) + "\n")
		fmt.Fprintf(&b, "(%s)\n", def.Description)
		b.WriteString(rule("-") + "\n")
		for _, vf := range known {
			pct := 0.0
			if total > 0 {
				pct = float64(vf.Frequency) / float64(total) * 100
			}
			bar := strings.Repeat("█", int(pct/2)) // 50 char max bar
			fmt.Fprintf(&b, "  %s\n", vf.Token)
			fmt.Fprintf(&b, "    %s %dx (%.1f%%)\n", bar, vf.Frequency, pct)
		}
		b.WriteString("\n")
	}

	if len(m.DurationStats) > 0 {
		b.WriteString(rule("=") + "\n")
		b.WriteString("CLIP FUNCTION DURATION STATISTICS\n")
		b.WriteString(rule("-") + "\n")
		for _, function := range sortedKeysByMean(m.DurationStats) {
			stat := m.DurationStats[function]
			bar := strings.Repeat("▓", minInt(int(stat.Mean*5), 50)) // 5 chars per second
			fmt.Fprintf(&b, "  %s: mean %.2fs, stddev %.2fs (%d clips)\n", function, stat.Mean, stat.StdDev(), stat.Count)
			fmt.Fprintf(&b, "    %s\n", bar)
		}
		b.WriteString("\n")
	}

	for _, pair := range ontology.TrackablePairs {
		table := m.Correlation(pair[0], pair[1])
		if table == nil || table.Total() == 0 {
			continue
		}
		b.WriteString(rule("=") + "\n")
		fmt.Fprintf(&b, "%s / %s CORRELATIONS\n", strings.ToUpper(pair[0]), strings.ToUpper(pair[1]))
		b.WriteString(rule("-") + "\n")
		for _, row := range table.Top(10) {
			fmt.Fprintf(&b, "  %s + %s: %dx\n", row.ValueA, row.ValueB, row.Count)
		}
		b.WriteString("\n")
	}

	if r != nil && len(r.Transitions) > 0 {
		b.WriteString(rule("=") + "\n")
		b.WriteString("FUNCTION TRANSITIONS\n")
		b.WriteString(rule("-") + "\n")
		for _, t := range topTransitions(r, 15) {
			fmt.Fprintf(&b, "  %s: %dx\n", t.key, t.count)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule("=") + "\n")
	return b.String()
}

// RenderVideoReport renders one video's clip-by-clip annotated breakdown,
// including the full transcript, resolved canonical values and the raw
// purpose text. Built from the in-flight batch; clips are never persisted
// individually.
func RenderVideoReport(batch core.ValidatedBatch, annotated []ontology.AnnotatedClip) string {
	var b strings.Builder

	b.WriteString(rule("=") + "\n")
	b.WriteString("VIDEO CLIP ONTOLOGY ANALYSIS\n")
	b.WriteString(rule("=") + "\n")
	fmt.Fprintf(&b, "Video: %s\n", batch.VideoID)
	fmt.Fprintf(&b, "Duration: %.2f seconds\n", batch.DurationSeconds)
	fmt.Fprintf(&b, "Total Clips: %d\n", len(annotated))
	if len(batch.Dropped) > 0 {
		fmt.Fprintf(&b, "Dropped Clips: %d\n", len(batch.Dropped))
	}
	b.WriteString("\n")

	b.WriteString(rule("=") + "\n")
	b.WriteString("FULL TRANSCRIPT\n")
	b.WriteString(rule("=") + "\n")
	if batch.Transcript != "" {
		b.WriteString(batch.Transcript + "\n")
	} else {
		b.WriteString("[No transcript]\n")
	}
	b.WriteString("\n")

	b.WriteString(rule("=") + "\n")
	b.WriteString("CLIP-BY-CLIP ONTOLOGY\n")
	b.WriteString(rule("=") + "\n")

	for i, clip := range annotated {
		b.WriteString(rule("─") + "\n")
		fmt.Fprintf(&b, "CLIP %d\n", i+1)
		fmt.Fprintf(&b, "Timestamp: %s → %s (%.2fs)\n", formatTime(clip.Start), formatTime(clip.End), clip.Duration())
		b.WriteString(rule("─") + "\n\n")

		b.WriteString("SCRIPT SEGMENT:\n")
		if clip.ScriptSegment != "" {
			fmt.Fprintf(&b, "  %q\n", clip.ScriptSegment)
		} else {
			b.WriteString("  [No speech]\n")
		}
		b.WriteString("\n")

		b.WriteString("CANONICAL VALUES:\n")
		for _, def := range ontology.Categories {
			token, ok := clip.Canonical[def.Name]
			if !ok {
				continue
			}
			raw := clip.Labels[def.Name]
			if ontology.Normalize(raw) == token {
				fmt.Fprintf(&b, "  %s: %s\n", def.Name, token)
			} else {
				fmt.Fprintf(&b, "  %s: %s (raw %q)\n", def.Name, token, raw)
			}
		}
		b.WriteString("\n")

		b.WriteString("PURPOSE:\n")
		if clip.PurposeSummary != "" {
			fmt.Fprintf(&b, "  %s\n", clip.PurposeSummary)
		} else {
			b.WriteString("  [Not stated]\n")
		}
		b.WriteString("\n")
	}

	if len(batch.Dropped) > 0 {
		b.WriteString(rule("=") + "\n")
		b.WriteString("DROPPED CLIPS\n")
		b.WriteString(rule("=") + "\n")
		for _, f := range batch.Dropped {
			fmt.Fprintf(&b, "  %s\n", f.String())
		}
		b.WriteString("\n")
	}

	b.WriteString(rule("=") + "\n")
	return b.String()
}

// RenderPlaybook renders the recipe index as a script-to-clip playbook:
// per-function example listings plus the transition table.
func RenderPlaybook(r *brain.RecipeIndex) string {
	var b strings.Builder

	b.WriteString(rule("=") + "\n")
	b.WriteString("SCRIPT-TO-CLIP PLAYBOOK\n")
	b.WriteString(rule("=") + "\n")
	fmt.Fprintf(&b, "Videos Learned From: %d\n", r.VideosLearnedFrom)
	fmt.Fprintf(&b, "Last Updated: %s\n", r.UpdatedAt)
	b.WriteString("\n")
	b.WriteString("This playbook shows what clips accompanied different script content.\n")
	b.WriteString("Use it as a reference when breaking down a new script.\n\n")

	for _, function := range r.Functions() {
		examples := r.ExamplesFor(function, 5)
		b.WriteString(rule("-") + "\n")
		fmt.Fprintf(&b, "## %s\n", strings.ToUpper(function))
		b.WriteString(rule("-") + "\n")
		fmt.Fprintf(&b, "Examples in library: %d\n\n", len(r.ByFunction[function]))

		for _, ex := range examples {
			script := ex.Script
			if script == "" {
				script = "[no dialogue]"
			}
			script = truncate(script, 80)
			fmt.Fprintf(&b, "  Script: %q\n", script)
			if shot := ex.Labels[ontology.CategoryShotType]; shot != "" {
				fmt.Fprintf(&b, "    Shot: %s", shot)
				if subject := ex.Labels[ontology.CategorySubjectType]; subject != "" {
					fmt.Fprintf(&b, " / %s", subject)
				}
				b.WriteString("\n")
			}
			if ex.Purpose != "" {
				fmt.Fprintf(&b, "    Why: %s\n", truncate(ex.Purpose, 60))
			}
			b.WriteString("\n")
		}

		if successors := r.TopTransitions(function, 3); len(successors) > 0 {
			b.WriteString("  Most often followed by:\n")
			for _, t := range successors {
				fmt.Fprintf(&b, "    -> %s (%dx)\n", t.Next, t.Count)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(rule("=") + "\n")
	return b.String()
}

func sortedKeysByMean(stats map[string]*ontology.DurationStat) []string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if stats[keys[i]].Mean != stats[keys[j]].Mean {
			return stats[keys[i]].Mean < stats[keys[j]].Mean
		}
		return keys[i] < keys[j]
	})
	return keys
}

type transitionRow struct {
	key   string
	count int
}

func topTransitions(r *brain.RecipeIndex, k int) []transitionRow {
	rows := make([]transitionRow, 0, len(r.Transitions))
	for key, count := range r.Transitions {
		rows = append(rows, transitionRow{key, count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	if k > 0 && k < len(rows) {
		rows = rows[:k]
	}
	return rows
}

func formatTime(seconds float64) string {
	minutes := int(seconds) / 60
	secs := seconds - float64(minutes*60)
	return fmt.Sprintf("%02d:%06.3f", minutes, secs)
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-left-len(s))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// truncate 按 rune 截断，避免劈开多字节字符
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
