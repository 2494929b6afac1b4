package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"clipOntology/config"
)

// ========== 基础数据结构 ==========

// RawClip AI服务返回的单个clip原始标注（未经校验）
type RawClip struct {
	ClipNumber      int               `json:"clip_number"`
	TimestampStart  string            `json:"timestamp_start"` // "MM:SS.mmm" 或纯秒数
	TimestampEnd    string            `json:"timestamp_end"`
	DurationSeconds float64           `json:"duration_seconds"`
	ScriptSegment   string            `json:"script_segment"`
	PurposeSummary  string            `json:"purpose_summary"`
	Labels          map[string]string `json:"labels"` // 类目名 -> 原始标签
}

// VideoAnnotations 一个视频的完整标注批次（AI协作方的输出边界）
type VideoAnnotations struct {
	VideoID         string    `json:"video_id"`
	DurationSeconds float64   `json:"duration_seconds"`
	Transcript      string    `json:"transcript"`
	Clips           []RawClip `json:"clips"`
}

// ClipAnnotation 校验通过后的clip标注，时间戳已解析为秒
type ClipAnnotation struct {
	Index          int               `json:"index"`
	Start          float64           `json:"start"`
	End            float64           `json:"end"`
	ScriptSegment  string            `json:"script_segment"`
	PurposeSummary string            `json:"purpose_summary"`
	Labels         map[string]string `json:"labels"`
}

// Duration clip时长（秒）
func (c ClipAnnotation) Duration() float64 {
	return c.End - c.Start
}

// ValidationFailure 单个clip的结构性校验失败，批次内局部恢复
type ValidationFailure struct {
	ClipIndex int    `json:"clip_index"`
	Reason    string `json:"reason"`
}

func (f ValidationFailure) String() string {
	return fmt.Sprintf("clip %d: %s", f.ClipIndex, f.Reason)
}

// ValidatedBatch 校验阶段的输出：通过的clip加上被丢弃的记录
type ValidatedBatch struct {
	VideoID         string              `json:"video_id"`
	DurationSeconds float64             `json:"duration_seconds"`
	Transcript      string              `json:"transcript"`
	Clips           []ClipAnnotation    `json:"clips"`
	Dropped         []ValidationFailure `json:"dropped,omitempty"`
}

// ========== 合并结果 ==========

// MergeSummary 一次合并的结果摘要
type MergeSummary struct {
	VideoID          string              `json:"video_id"`
	ClipsMerged      int                 `json:"clips_merged"`
	ClipsDropped     []ValidationFailure `json:"clips_dropped,omitempty"`
	NewValues        map[string][]string `json:"new_values,omitempty"` // 类目 -> 本次新发现的规范值
	AmbiguousMatches int                 `json:"ambiguous_matches"`
	VideosAnalyzed   int                 `json:"videos_analyzed"` // 合并后的累计视频数
}

// NewValueCount 本次新发现规范值的总数
func (s MergeSummary) NewValueCount() int {
	n := 0
	for _, vals := range s.NewValues {
		n += len(vals)
	}
	return n
}

// ========== 案例库结构 ==========

// RecipeEntry 脚本片段与其clip标注的配对案例
type RecipeEntry struct {
	VideoID string            `json:"video_id"`
	Script  string            `json:"script"`
	Purpose string            `json:"purpose,omitempty"`
	Start   float64           `json:"start"`
	End     float64           `json:"end"`
	Labels  map[string]string `json:"labels"` // 类目名 -> 规范值
}

// Function 案例所属的clip功能桶
func (e RecipeEntry) Function() string {
	return e.Labels["clip_function"]
}

// TransitionCount 某个前驱功能之后出现 Next 功能的次数
type TransitionCount struct {
	Next  string `json:"next"`
	Count int    `json:"count"`
}

// ========== 工具函数 ==========

// DataRoot 持久化状态目录：环境变量 > config.json > 默认 ./data
func DataRoot() string {
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		return dir
	}
	if cfg, err := config.LoadConfig(); err == nil && cfg.DataDir != "" {
		return cfg.DataDir
	}
	return filepath.Join(".", "data")
}

// WriteJSON 写出JSON响应
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "write json error: %v", err)
	}
}
