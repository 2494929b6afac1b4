package processors

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"clipOntology/config"
	"clipOntology/core"
	"clipOntology/ontology"
	"clipOntology/report"
	"clipOntology/storage"
)

// Pipeline 单个视频的处理链：标注 -> 校验 -> 合并 -> 案例入库 -> 视频报告
type Pipeline struct {
	annotator VideoAnnotator
	merger    *ontology.Merger
	recipes   storage.RecipeVectorStore
	logger    *log.Logger
}

func NewPipeline(annotator VideoAnnotator, merger *ontology.Merger, recipes storage.RecipeVectorStore) *Pipeline {
	return &Pipeline{
		annotator: annotator,
		merger:    merger,
		recipes:   recipes,
		logger:    log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
}

// Merger 暴露给读侧（报告、检索）
func (p *Pipeline) Merger() *ontology.Merger {
	return p.merger
}

// VideoIDFromPath 从文件名推导视频ID
func VideoIDFromPath(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ProcessVideo 处理一个视频文件：调用AI协作方取得标注批次后合并入主本体
func (p *Pipeline) ProcessVideo(ctx context.Context, videoPath string) (*core.MergeSummary, error) {
	videoID := VideoIDFromPath(videoPath)

	hintSize := 10
	if cfg, err := config.LoadConfig(); err == nil {
		hintSize = cfg.HintValuesPerCat
	}
	hint := p.merger.VocabularyHint(hintSize)

	ann, err := p.annotator.AnnotateVideo(ctx, videoPath, videoID, hint)
	if err != nil {
		return nil, fmt.Errorf("annotate video %s: %w", videoID, err)
	}
	return p.ProcessAnnotations(ann)
}

// ProcessAnnotations 合并一个已取得的标注批次；合并本身在merger的
// 临界区内串行执行
func (p *Pipeline) ProcessAnnotations(ann *core.VideoAnnotations) (*core.MergeSummary, error) {
	batch := ontology.ValidateBatch(ann)
	for _, f := range batch.Dropped {
		p.logger.Printf("video %s validation failure: %s", ann.VideoID, f.String())
	}

	summary, annotated, err := p.merger.MergeVideo(batch)
	if err != nil {
		return nil, fmt.Errorf("merge video %s: %w", ann.VideoID, err)
	}

	// 案例入向量库与视频报告都是合并后的附属输出，失败不影响合并结果
	if p.recipes != nil {
		entries := make([]core.RecipeEntry, 0, len(annotated))
		for _, clip := range annotated {
			function := clip.Canonical[ontology.CategoryClipFunction]
			if function == "" || function == ontology.UnknownToken {
				continue
			}
			entries = append(entries, core.RecipeEntry{
				VideoID: ann.VideoID,
				Script:  clip.ScriptSegment,
				Purpose: clip.PurposeSummary,
				Start:   clip.Start,
				End:     clip.End,
				Labels:  clip.Canonical,
			})
		}
		if n := p.recipes.Upsert(ann.VideoID, entries); n < len(entries) {
			p.logger.Printf("video %s: recipe store kept %d/%d entries", ann.VideoID, n, len(entries))
		}
	}

	if err := p.writeVideoReport(batch, annotated); err != nil {
		p.logger.Printf("video %s: write report failed: %v", ann.VideoID, err)
	}

	return summary, nil
}

// VideoReportPath 某视频的报告文件位置
func VideoReportPath(videoID string) string {
	return filepath.Join(core.DataRoot(), "reports", videoID+".txt")
}

func (p *Pipeline) writeVideoReport(batch core.ValidatedBatch, annotated []ontology.AnnotatedClip) error {
	dir := filepath.Join(core.DataRoot(), "reports")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	text := report.RenderVideoReport(batch, annotated)
	return os.WriteFile(VideoReportPath(batch.VideoID), []byte(text), 0644)
}
