package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"clipOntology/config"
	"clipOntology/core"
	"clipOntology/ontology"
	"clipOntology/processors"
	"clipOntology/report"
	"clipOntology/server"
	"clipOntology/storage"
)

// 全局组件
var (
	pipeline    *processors.Pipeline
	recipeStore storage.RecipeVectorStore
)

// initPipeline 装配整条处理链：状态存储 -> 合并器 -> 标注器 -> 流水线
func initPipeline() error {
	stateStore := storage.NewStateStore()

	master, err := stateStore.LoadOntology()
	if err != nil {
		return fmt.Errorf("failed to load master ontology: %v", err)
	}
	index, err := stateStore.LoadBrain()
	if err != nil {
		return fmt.Errorf("failed to load recipe index: %v", err)
	}
	log.Printf("Ontology loaded: %d videos analyzed, %d clips", master.VideosAnalyzed, master.TotalClips)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	policy := ontology.ResolvePolicy{Threshold: cfg.SimilarityThreshold, Margin: cfg.AmbiguityMargin}
	index.MaxPerBucket = cfg.MaxExamplesPerFunc

	merger := ontology.NewMerger(master, index, stateStore, policy)
	recipeStore = storage.NewRecipeVectorStore()
	annotator := processors.NewVideoAnnotator()
	pipeline = processors.NewPipeline(annotator, merger, recipeStore)
	return nil
}

func main() {
	if err := os.MkdirAll(core.DataRoot(), 0755); err != nil {
		log.Fatalf("failed to create data dir: %v", err)
	}

	if err := config.Validate(); err != nil {
		log.Printf("Warning: config validation: %v", err)
		config.PrintConfigInstructions()
	}

	if err := initPipeline(); err != nil {
		log.Fatalf("failed to init pipeline: %v", err)
	}

	if len(os.Args) > 1 {
		runCommand(os.Args[1], os.Args[2:])
		return
	}

	srv := server.New(pipeline, recipeStore)
	srv.Register(http.DefaultServeMux)

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}
	log.Printf("Server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

// runCommand 命令行模式：单视频、批量目录、各类报告
func runCommand(cmd string, args []string) {
	ctx := context.Background()

	switch cmd {
	case "analyze":
		if len(args) < 1 {
			log.Fatal("usage: analyze <video-file>")
		}
		summary, err := pipeline.ProcessVideo(ctx, args[0])
		if err != nil {
			log.Fatalf("analyze failed: %v", err)
		}
		log.Printf("Merged %s: %d clips merged, %d dropped, %d new values",
			summary.VideoID, summary.ClipsMerged, len(summary.ClipsDropped), summary.NewValueCount())

	case "batch":
		if len(args) < 1 {
			log.Fatal("usage: batch <video-directory>")
		}
		result, err := pipeline.ProcessDirectory(ctx, args[0])
		if err != nil {
			log.Fatalf("batch failed: %v", err)
		}
		log.Printf("Batch done: %d processed, %d failed, %d skipped",
			len(result.Processed), len(result.Failed), len(result.Skipped))

	case "report":
		master, index := pipeline.Merger().Snapshot()
		fmt.Println(report.RenderMasterReport(master, index))

	case "playbook":
		_, index := pipeline.Merger().Snapshot()
		fmt.Println(report.RenderPlaybook(index))

	case "vocabulary":
		hint := pipeline.Merger().VocabularyHint(10)
		for _, cat := range ontology.Categories {
			values := hint[cat.Name]
			if len(values) == 0 {
				continue
			}
			fmt.Printf("%s:\n", cat.Name)
			for _, v := range values {
				fmt.Printf("  - %s\n", v)
			}
		}

	case "status":
		master, index := pipeline.Merger().Snapshot()
		fmt.Printf("Videos analyzed: %d\n", master.VideosAnalyzed)
		fmt.Printf("Total clips:    %d\n", master.TotalClips)
		fmt.Printf("Last updated:   %s\n", master.UpdatedAt)
		fmt.Printf("Recipe examples: %d\n", index.TotalExamples())

	default:
		log.Printf("未知参数: %s\n", cmd)
		log.Println("可用参数:")
		log.Println("  analyze <file>  - 标注并合并单个视频")
		log.Println("  batch <dir>     - 批量处理目录下的视频")
		log.Println("  report          - 打印主本体报告")
		log.Println("  playbook        - 打印脚本案例playbook")
		log.Println("  vocabulary      - 打印当前词表提示")
		log.Println("  status          - 打印本体概况")
	}
}
