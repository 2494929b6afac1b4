package ontology

import (
	"fmt"
	"strconv"
	"strings"

	"clipOntology/core"
)

// ParseTimestamp converts an annotation timestamp into seconds. The AI
// collaborator emits "MM:SS.mmm" (optionally "HH:MM:SS.mmm"); plain numeric
// seconds are accepted too.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if !strings.Contains(s, ":") {
		sec, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		return sec, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	total := 0.0
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// ValidateBatch checks every raw clip of one video against the schema's
// structural contract and returns the well-formed annotations plus a record
// of each dropped clip. It never touches the master ontology.
func ValidateBatch(ann *core.VideoAnnotations) core.ValidatedBatch {
	batch := core.ValidatedBatch{
		VideoID:         ann.VideoID,
		DurationSeconds: ann.DurationSeconds,
		Transcript:      ann.Transcript,
	}

	for i, raw := range ann.Clips {
		clip, err := validateClip(i, raw, ann.DurationSeconds)
		if err != nil {
			batch.Dropped = append(batch.Dropped, core.ValidationFailure{ClipIndex: i, Reason: err.Error()})
			continue
		}
		batch.Clips = append(batch.Clips, clip)
	}
	return batch
}

func validateClip(index int, raw core.RawClip, videoDuration float64) (core.ClipAnnotation, error) {
	var clip core.ClipAnnotation

	start, err := ParseTimestamp(raw.TimestampStart)
	if err != nil {
		return clip, fmt.Errorf("bad start timestamp: %v", err)
	}
	end, err := ParseTimestamp(raw.TimestampEnd)
	if err != nil {
		return clip, fmt.Errorf("bad end timestamp: %v", err)
	}
	if start < 0 {
		return clip, fmt.Errorf("start %.3f is negative", start)
	}
	if end <= start {
		return clip, fmt.Errorf("end %.3f <= start %.3f", end, start)
	}
	if videoDuration > 0 && end > videoDuration {
		return clip, fmt.Errorf("end %.3f beyond video duration %.3f", end, videoDuration)
	}

	// Hallucinated category keys are dropped silently, per contract.
	labels := make(map[string]string, len(raw.Labels))
	for name, value := range raw.Labels {
		if IsKnownCategory(name) {
			labels[name] = value
		}
	}
	for _, required := range RequiredCategories() {
		if strings.TrimSpace(labels[required]) == "" {
			return clip, fmt.Errorf("missing required category %q", required)
		}
	}

	return core.ClipAnnotation{
		Index:          index,
		Start:          start,
		End:            end,
		ScriptSegment:  strings.TrimSpace(raw.ScriptSegment),
		PurposeSummary: strings.TrimSpace(raw.PurposeSummary),
		Labels:         labels,
	}, nil
}
