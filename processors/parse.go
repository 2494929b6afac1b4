package processors

import (
	"encoding/json"
	"fmt"
	"strings"

	"clipOntology/core"
)

// ========== AI响应的线格式 ==========

type wireResponse struct {
	VideoSummary wireSummary `json:"video_summary"`
	Clips        []wireClip  `json:"clips"`
}

type wireSummary struct {
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	TotalClips           int     `json:"total_clips"`
	FullTranscript       string  `json:"full_transcript"`
}

type wireClip struct {
	ClipNumber      int               `json:"clip_number"`
	TimestampStart  string            `json:"timestamp_start"`
	TimestampEnd    string            `json:"timestamp_end"`
	DurationSeconds float64           `json:"duration_seconds"`
	ScriptSegment   string            `json:"script_segment"`
	Visual          map[string]string `json:"visual"`
	Emotional       map[string]string `json:"emotional"`
	Functional      map[string]string `json:"functional"`
	TransitionIn    string            `json:"transition_in"`
	TransitionOut   string            `json:"transition_out"`
	PurposeSummary  string            `json:"purpose_summary"`
}

// ParseAnnotationResponse 解析模型返回的JSON，容忍markdown代码块包裹和
// 前后杂质文本；嵌套的visual/emotional/functional对象展平为类目映射
func ParseAnnotationResponse(responseText, videoID string) (*core.VideoAnnotations, error) {
	payload, err := extractJSON(responseText)
	if err != nil {
		return nil, err
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, fmt.Errorf("JSON parse error: %v", err)
	}

	ann := &core.VideoAnnotations{
		VideoID:         videoID,
		DurationSeconds: wire.VideoSummary.TotalDurationSeconds,
		Transcript:      strings.TrimSpace(wire.VideoSummary.FullTranscript),
		Clips:           make([]core.RawClip, 0, len(wire.Clips)),
	}
	for _, wc := range wire.Clips {
		ann.Clips = append(ann.Clips, flattenClip(wc))
	}
	return ann, nil
}

// flattenClip 将嵌套对象展平为 类目名->原始标签 映射
func flattenClip(wc wireClip) core.RawClip {
	labels := make(map[string]string)
	for k, v := range wc.Visual {
		labels[k] = v
	}
	if v := wc.Emotional["primary_emotion"]; v != "" {
		labels["emotion"] = v
	}
	if v := wc.Emotional["emotional_intensity"]; v != "" {
		labels["emotional_intensity"] = v
	}
	for k, v := range wc.Functional {
		labels[k] = v
	}
	if wc.TransitionIn != "" {
		labels["transition_type"] = wc.TransitionIn
	}

	return core.RawClip{
		ClipNumber:      wc.ClipNumber,
		TimestampStart:  wc.TimestampStart,
		TimestampEnd:    wc.TimestampEnd,
		DurationSeconds: wc.DurationSeconds,
		ScriptSegment:   wc.ScriptSegment,
		PurposeSummary:  wc.PurposeSummary,
		Labels:          labels,
	}
}

// extractJSON 去掉markdown围栏；仍解析失败时做括号配对提取
func extractJSON(responseText string) (string, error) {
	clean := strings.TrimSpace(responseText)
	if strings.HasPrefix(clean, "```json") {
		clean = clean[len("```json"):]
	} else if strings.HasPrefix(clean, "```") {
		clean = clean[len("```"):]
	}
	clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
	clean = strings.TrimSpace(clean)

	if json.Valid([]byte(clean)) {
		return clean, nil
	}

	// 找到第一个配平的JSON对象
	start := strings.IndexByte(responseText, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON found in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(responseText); i++ {
		c := responseText[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := responseText[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, nil
				}
				return "", fmt.Errorf("JSON parse error in extracted block")
			}
		}
	}
	return "", fmt.Errorf("could not parse JSON: unbalanced braces")
}
