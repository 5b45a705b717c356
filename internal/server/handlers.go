package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/RecoveryAshes/MovieCrawler/internal/core"
	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
)

// maxBodySize 请求体最大大小 (1MB)
const maxBodySize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type changedResponse struct {
	Changed bool         `json:"changed"`
	Task    *models.Task `json:"task,omitempty"`
}

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Busy bool   `json:"busy"`
}

type analysisResponse struct {
	Analyzing bool                   `json:"analyzing"`
	Result    *models.AnalysisResult `json:"result"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Debugf("写入响应失败: %v", err)
	}
}

// writeError 按错误类型映射HTTP状态码
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case models.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrAnalysisInFlight):
		status = http.StatusConflict
	case errors.Is(err, core.ErrTaskNotFound), errors.Is(err, core.ErrLinkNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		utils.Error(err, "请求处理失败")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &models.ValidationError{
			Field:  "body",
			Reason: "请求体不是有效的JSON: " + err.Error(),
		}
	}
	return nil
}

func pathInt(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.ValidationError{
			Field:  name,
			Value:  raw,
			Reason: "必须是整数",
		}
	}
	return n, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Store().Tasks())
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var input models.CreateTaskInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, err)
		return
	}

	task, err := s.dash.CreateTask(input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	task, err := s.dash.Store().Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// 未知ID按静默忽略处理,返回200和changed=false
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changedResponse{Changed: s.dash.DeleteTask(id)})
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	task, changed := s.dash.ToggleTaskStatus(id)
	resp := changedResponse{Changed: changed}
	if task.ID != 0 {
		resp.Task = &task
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	resp := changedResponse{Changed: s.dash.RetryTask(id)}
	if resp.Changed {
		if task, err := s.dash.Store().Get(id); err == nil {
			resp.Task = &task
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	// 分析在请求结束后继续,绑定服务生命周期而不是请求
	h, err := s.dash.AnalyzeURL(s.baseCtx, req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, analyzeResponse{ID: h.ID(), URL: h.URL(), Busy: true})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	snap := s.dash.Snapshot()
	writeJSON(w, http.StatusOK, analysisResponse{Analyzing: snap.Analyzing, Result: snap.Analysis})
}

func (s *Server) handleCancelAnalysis(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, changedResponse{Changed: s.dash.CancelAnalysis()})
}

func (s *Server) handleCreateFromLink(w http.ResponseWriter, r *http.Request) {
	index, err := pathInt(r, "index")
	if err != nil {
		writeError(w, err)
		return
	}

	task, err := s.dash.CreateTaskFromLink(index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Store().Stats())
}

func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Monitoring())
}

func (s *Server) handleGetAntiCrawler(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.dash.AntiCrawler()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// 请求体中缺失的字段保留当前值
func (s *Server) handleSaveAntiCrawler(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.dash.AntiCrawler()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeError(w, err)
		return
	}

	if err := s.dash.SaveAntiCrawler(cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleResetAntiCrawler(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.dash.ResetAntiCrawler()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	headers, err := s.dash.SafeHeaders()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, headers)
}
