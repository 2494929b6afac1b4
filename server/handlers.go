// Package server exposes the core's boundary operations over HTTP. The web
// surface itself is a thin collaborator; all semantics live in the ontology,
// brain and processors packages.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"

	"clipOntology/core"
	"clipOntology/processors"
	"clipOntology/report"
	"clipOntology/storage"
)

// Server 持有处理链与案例向量库
type Server struct {
	pipeline *processors.Pipeline
	recipes  storage.RecipeVectorStore
}

func New(pipeline *processors.Pipeline, recipes storage.RecipeVectorStore) *Server {
	return &Server{pipeline: pipeline, recipes: recipes}
}

// Register 挂载所有路由
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/analyze", s.AnalyzeHandler)
	mux.HandleFunc("/merge-annotations", s.MergeAnnotationsHandler)
	mux.HandleFunc("/report", s.ReportHandler)
	mux.HandleFunc("/video-report", s.VideoReportHandler)
	mux.HandleFunc("/playbook", s.PlaybookHandler)
	mux.HandleFunc("/vocabulary", s.VocabularyHandler)
	mux.HandleFunc("/examples", s.ExamplesHandler)
	mux.HandleFunc("/search-recipes", s.SearchRecipesHandler)
	mux.HandleFunc("/transitions", s.TransitionsHandler)
	mux.HandleFunc("/status", s.StatusHandler)
}

type analyzeRequest struct {
	VideoPath string `json:"video_path"`
}

// AnalyzeHandler 标注并合并一个本地视频文件
func (s *Server) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.VideoPath) == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "video_path required"})
		return
	}
	if _, err := os.Stat(req.VideoPath); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "video not found: " + req.VideoPath})
		return
	}

	summary, err := s.pipeline.ProcessVideo(r.Context(), req.VideoPath)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, summary)
}

// MergeAnnotationsHandler 合并一个调用方已取得的标注批次（AI调用在外部完成时）
func (s *Server) MergeAnnotationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var ann core.VideoAnnotations
	if err := json.NewDecoder(r.Body).Decode(&ann); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(ann.VideoID) == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "video_id required"})
		return
	}
	summary, err := s.pipeline.ProcessAnnotations(&ann)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, summary)
}

// ReportHandler 主本体报告（纯读）
func (s *Server) ReportHandler(w http.ResponseWriter, r *http.Request) {
	master, index := s.pipeline.Merger().Snapshot()
	writeText(w, report.RenderMasterReport(master, index))
}

// VideoReportHandler 读取某视频合并时产出的报告
func (s *Server) VideoReportHandler(w http.ResponseWriter, r *http.Request) {
	videoID := strings.TrimSpace(r.URL.Query().Get("video_id"))
	if videoID == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "video_id required"})
		return
	}
	data, err := os.ReadFile(processors.VideoReportPath(videoID))
	if err != nil {
		core.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no report for video " + videoID})
		return
	}
	writeText(w, string(data))
}

// PlaybookHandler 案例库渲染为playbook文本
func (s *Server) PlaybookHandler(w http.ResponseWriter, r *http.Request) {
	_, index := s.pipeline.Merger().Snapshot()
	writeText(w, report.RenderPlaybook(index))
}

// VocabularyHandler 导出当前词表提示，供外部提示构建方使用
func (s *Server) VocabularyHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	core.WriteJSON(w, http.StatusOK, s.pipeline.Merger().VocabularyHint(limit))
}

// ExamplesHandler 某功能桶的案例，最近优先；无function参数时按子串检索脚本
func (s *Server) ExamplesHandler(w http.ResponseWriter, r *http.Request) {
	_, index := s.pipeline.Merger().Snapshot()
	function := strings.TrimSpace(r.URL.Query().Get("function"))
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := queryInt(r, "limit", 10)

	var entries []core.RecipeEntry
	switch {
	case function != "":
		entries = index.ExamplesFor(function, limit)
	case query != "":
		entries = index.Search(query)
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
	default:
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "function or q required"})
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"count": len(entries), "entries": entries})
}

type searchRecipesRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// SearchRecipesHandler 语义检索相似脚本案例（向量库）
func (s *Server) SearchRecipesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req searchRecipesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "query required"})
		return
	}
	hits := s.recipes.Search(req.Query, req.TopK)
	core.WriteJSON(w, http.StatusOK, map[string]any{"query": req.Query, "hits": hits})
}

// TransitionsHandler 某功能之后最常出现的功能
func (s *Server) TransitionsHandler(w http.ResponseWriter, r *http.Request) {
	function := strings.TrimSpace(r.URL.Query().Get("function"))
	if function == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "function required"})
		return
	}
	_, index := s.pipeline.Merger().Snapshot()
	k := queryInt(r, "k", 5)
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"function":    function,
		"transitions": index.TopTransitions(function, k),
	})
}

// StatusHandler 本体与案例库的概况
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	master, index := s.pipeline.Merger().Snapshot()
	categories := make(map[string]int, len(master.Stores))
	for name, store := range master.Stores {
		categories[name] = store.Len()
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"videos_analyzed":     master.VideosAnalyzed,
		"total_clips":         master.TotalClips,
		"updated_at":          master.UpdatedAt,
		"category_values":     categories,
		"recipe_examples":     index.TotalExamples(),
		"videos_learned_from": index.VideosLearnedFrom,
	})
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
