package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"clipOntology/config"
	"clipOntology/core"
)

var videoExtensions = []string{".mp4", ".mov", ".webm", ".avi", ".mkv"}

// FindVideos 列出目录下的视频文件，按文件名排序
func FindVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read video dir: %w", err)
	}
	var videos []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range videoExtensions {
			if ext == want {
				videos = append(videos, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	sort.Strings(videos)
	return videos, nil
}

// ========== 处理日志 ==========

// ProcessingLog 记录已合并/失败/跳过的视频ID。合并器自身不做按视频去重，
// 去重靠这里：已在Processed中的视频不会被二次合并
type ProcessingLog struct {
	Started     string   `json:"started"`
	LastUpdated string   `json:"last_updated"`
	Processed   []string `json:"processed"`
	Failed      []string `json:"failed"`
	Skipped     []string `json:"skipped"`
}

func processingLogPath() string {
	return filepath.Join(core.DataRoot(), "processing_log.json")
}

// LoadProcessingLog 读取或新建处理日志
func LoadProcessingLog() *ProcessingLog {
	data, err := os.ReadFile(processingLogPath())
	if err == nil {
		var plog ProcessingLog
		if json.Unmarshal(data, &plog) == nil {
			return &plog
		}
	}
	return &ProcessingLog{Started: time.Now().UTC().Format(time.RFC3339)}
}

func (l *ProcessingLog) Save() error {
	l.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(core.DataRoot(), 0755); err != nil {
		return err
	}
	return os.WriteFile(processingLogPath(), data, 0644)
}

// HasProcessed 该视频是否已合并过
func (l *ProcessingLog) HasProcessed(videoID string) bool {
	for _, id := range l.Processed {
		if id == videoID {
			return true
		}
	}
	return false
}

// ========== 批处理 ==========

// BatchResult 一次批处理的汇总
type BatchResult struct {
	Processed []core.MergeSummary `json:"processed"`
	Failed    []string            `json:"failed"`
	Skipped   []string            `json:"skipped"`
}

type annotationResult struct {
	videoPath string
	videoID   string
	ann       *core.VideoAnnotations
	err       error
}

// ProcessDirectory 顺序合并一个目录下的所有视频。合并严格串行；
// 下一个视频的AI标注调用与上一个视频的合并流水线并行（标注不触碰主本体，
// 代价是其词表提示取自上一次合并前的快照）
func (p *Pipeline) ProcessDirectory(ctx context.Context, dir string) (*BatchResult, error) {
	videos, err := FindVideos(dir)
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Writer(), "[BATCH] ", log.LstdFlags)
	logger.Printf("found %d videos in %s", len(videos), dir)

	plog := LoadProcessingLog()
	result := &BatchResult{}

	pending := make([]string, 0, len(videos))
	for _, videoPath := range videos {
		videoID := VideoIDFromPath(videoPath)
		if plog.HasProcessed(videoID) {
			logger.Printf("skip %s: already merged", videoID)
			plog.Skipped = appendUnique(plog.Skipped, videoID)
			result.Skipped = append(result.Skipped, videoID)
			continue
		}
		pending = append(pending, videoPath)
	}

	hintSize := 10
	if cfg, err := config.LoadConfig(); err == nil {
		hintSize = cfg.HintValuesPerCat
	}

	// 标注流水线：无缓冲通道让生产者恰好领先一个视频
	results := make(chan annotationResult)
	go func() {
		defer close(results)
		for _, videoPath := range pending {
			videoID := VideoIDFromPath(videoPath)
			hint := p.merger.VocabularyHint(hintSize)
			ann, err := p.annotator.AnnotateVideo(ctx, videoPath, videoID, hint)
			select {
			case results <- annotationResult{videoPath: videoPath, videoID: videoID, ann: ann, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for r := range results {
		if r.err != nil {
			logger.Printf("annotate %s failed: %v", r.videoID, r.err)
			plog.Failed = appendUnique(plog.Failed, r.videoID)
			result.Failed = append(result.Failed, r.videoID)
			continue
		}
		summary, err := p.ProcessAnnotations(r.ann)
		if err != nil {
			logger.Printf("merge %s failed: %v", r.videoID, err)
			plog.Failed = appendUnique(plog.Failed, r.videoID)
			result.Failed = append(result.Failed, r.videoID)
			continue
		}
		logger.Printf("merged %s: %d clips, %d new values", r.videoID, summary.ClipsMerged, summary.NewValueCount())
		plog.Processed = appendUnique(plog.Processed, r.videoID)
		result.Processed = append(result.Processed, *summary)
		if err := plog.Save(); err != nil {
			logger.Printf("save processing log failed: %v", err)
		}
	}

	if err := plog.Save(); err != nil {
		logger.Printf("save processing log failed: %v", err)
	}
	return result, nil
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
