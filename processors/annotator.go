package processors

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clipOntology/config"
	"clipOntology/core"
	"clipOntology/ontology"

	openai "github.com/sashabaranov/go-openai"
)

// VideoAnnotator AI视频理解协作方的边界接口：输入视频与当前词表提示，
// 输出一批clip标注加完整转录
type VideoAnnotator interface {
	AnnotateVideo(ctx context.Context, videoPath, videoID string, hint map[string][]string) (*core.VideoAnnotations, error)
}

// LLMVideoAnnotator 基于多模态模型的标注器
type LLMVideoAnnotator struct {
	cli *openai.Client
}

// MockVideoAnnotator Mock标注器，离线与测试使用
type MockVideoAnnotator struct{}

// NewVideoAnnotator 创建视频标注器；ANNOTATOR=mock 强制Mock，
// 无有效API配置时退回Mock
func NewVideoAnnotator() VideoAnnotator {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("ANNOTATOR")))
	if provider == "mock" {
		return &MockVideoAnnotator{}
	}

	cfg, err := config.LoadConfig()
	if err != nil || !cfg.HasValidAPI() {
		if provider == "llm" || provider == "openai" {
			config.PrintConfigInstructions()
		}
		log.Printf("[ANNOTATE] no valid API configuration, using mock annotator")
		return &MockVideoAnnotator{}
	}
	return &LLMVideoAnnotator{cli: createAnnotatorClient(cfg)}
}

func createAnnotatorClient(cfg *config.Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// MockVideoAnnotator 实现：返回固定的三段式样例标注
func (m *MockVideoAnnotator) AnnotateVideo(ctx context.Context, videoPath, videoID string, hint map[string][]string) (*core.VideoAnnotations, error) {
	log.Printf("[Mock] 使用Mock模式标注视频 %s", videoID)

	return &core.VideoAnnotations{
		VideoID:         videoID,
		DurationSeconds: 9.0,
		Transcript:      "Tired of messy footage? Meet the clip ontology builder. Try it today.",
		Clips: []core.RawClip{
			{
				ClipNumber:     1,
				TimestampStart: "00:00.000",
				TimestampEnd:   "00:02.000",
				ScriptSegment:  "Tired of messy footage?",
				PurposeSummary: "Grab attention with a pain question",
				Labels: map[string]string{
					"shot_type":     "close_up",
					"emotion":       "curiosity",
					"clip_function": "hook",
					"subject_type":  "person",
				},
			},
			{
				ClipNumber:     2,
				TimestampStart: "00:02.000",
				TimestampEnd:   "00:05.000",
				ScriptSegment:  "Meet the clip ontology builder.",
				PurposeSummary: "Name the problem and pivot to the product",
				Labels: map[string]string{
					"shot_type":     "medium",
					"emotion":       "frustration",
					"clip_function": "problem",
					"subject_type":  "product",
				},
			},
			{
				ClipNumber:     3,
				TimestampStart: "00:05.000",
				TimestampEnd:   "00:09.000",
				ScriptSegment:  "Try it today.",
				PurposeSummary: "Present the product as the answer",
				Labels: map[string]string{
					"shot_type":     "wide",
					"emotion":       "hope",
					"clip_function": "solution",
					"subject_type":  "product",
				},
			},
		},
	}, nil
}

// LLMVideoAnnotator 实现
func (l *LLMVideoAnnotator) AnnotateVideo(ctx context.Context, videoPath, videoID string, hint map[string][]string) (*core.VideoAnnotations, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %v", err)
	}

	log.Printf("[ANNOTATE] 标注视频 %s (model %s)", videoID, cfg.ChatModel)

	videoBytes, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("read video: %v", err)
	}
	if len(videoBytes) > 200*1024*1024 {
		return nil, fmt.Errorf("video too large: %.2f MB (max 200MB)", float64(len(videoBytes))/(1024*1024))
	}
	mimeType := mimeTypeForVideo(videoPath)
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(videoBytes))

	prompt := buildAnnotationPrompt(hint)

	// 标注调用无内部超时策略，由调用方通过ctx控制
	req := openai.ChatCompletionRequest{
		Model: cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURI},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
				},
			},
		},
		Temperature: 0.2,
	}

	resp, err := l.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("annotation API call failed: %v", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no annotation response received")
	}

	ann, err := ParseAnnotationResponse(resp.Choices[0].Message.Content, videoID)
	if err != nil {
		return nil, fmt.Errorf("parse annotation response: %v", err)
	}
	log.Printf("[ANNOTATE] 视频 %s 返回 %d 个clip", videoID, len(ann.Clips))
	return ann, nil
}

// buildAnnotationPrompt 构建标注提示词，嵌入当前已知词表以保持标签一致
func buildAnnotationPrompt(hint map[string][]string) string {
	var b strings.Builder
	b.WriteString(`You are an expert video editor analyzing a video advertisement. Identify EVERY clip change and describe each clip using the visual, emotional and functional categories below.

## KNOWN ONTOLOGY VALUES

`)
	b.WriteString(formatHint(hint))
	b.WriteString(`

## OUTPUT FORMAT - JSON

{
  "video_summary": {
    "total_duration_seconds": <float>,
    "total_clips": <integer>,
    "full_transcript": "<complete verbatim transcript>"
  },
  "clips": [
    {
      "clip_number": <int>,
      "timestamp_start": "<MM:SS.mmm>",
      "timestamp_end": "<MM:SS.mmm>",
      "duration_seconds": <float>,
      "script_segment": "<EXACT words spoken in THIS clip>",
      "visual": {
        "shot_type": "...", "camera_angle": "...", "camera_movement": "...",
        "composition": "...", "setting_type": "...", "lighting_style": "...",
        "color_mood": "...", "subject_type": "...", "subject_action": "...",
        "text_purpose": "..."
      },
      "emotional": {
        "primary_emotion": "...", "emotional_intensity": "..."
      },
      "functional": {
        "clip_function": "<hook|problem|agitation|solution|demo|benefit|proof|cta|transition>",
        "narrative_role": "...", "persuasion_mechanism": "..."
      },
      "transition_in": "<cut|dissolve|fade|wipe|zoom>",
      "purpose_summary": "<WHY this clip exists here>"
    }
  ]
}

## REQUIREMENTS

1. Catch EVERY clip - no gaps, no overlaps
2. script_segment = EXACT verbatim words for THAT clip only
3. Prefer the known ontology values above; invent new values only when none fits
4. OUTPUT ONLY VALID JSON`)
	return b.String()
}

// formatHint 按类目声明顺序渲染词表提示
func formatHint(hint map[string][]string) string {
	if len(hint) == 0 {
		return "First analysis - discover all values."
	}
	names := make([]string, 0, len(hint))
	for _, def := range ontology.Categories {
		if len(hint[def.Name]) > 0 {
			names = append(names, def.Name)
		}
	}
	// 词表里不在固定类目表中的键按字母序附在最后（防御性，正常不会出现）
	var extra []string
	for name := range hint {
		if !ontology.IsKnownCategory(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	var lines []string
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(hint[name], ", ")))
	}
	return strings.Join(lines, "\n")
}

func mimeTypeForVideo(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	default:
		return "video/mp4"
	}
}
