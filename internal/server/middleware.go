package server

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDHeader 请求ID头部
const RequestIDHeader = "X-Request-ID"

// RequestIDFrom 返回请求上下文中的请求ID
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID 沿用客户端提供的请求ID,没有时生成一个
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(p []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(p)
	sr.bytes += n
	return n, err
}

// accessLog 记录每个请求
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		event := utils.Logger.Info()
		if status >= http.StatusInternalServerError {
			event = utils.Logger.Error()
		}
		event.
			Str("request_id", RequestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("HTTP请求")
	})
}

// recoverer 将panic转换为500响应
// 响应头已发出时只记录日志,不再追加错误体
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == http.ErrAbortHandler {
				panic(rv)
			}
			utils.Logger.Error().
				Str("request_id", RequestIDFrom(r.Context())).
				Str("panic", fmt.Sprint(rv)).
				Bytes("stack", debug.Stack()).
				Bool("headers_sent", rec.status != 0).
				Msg("处理请求时发生panic")
			if rec.status != 0 {
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "服务器内部错误"})
		}()
		next.ServeHTTP(rec, r)
	})
}

// compressWriter 首次写入时按协商结果创建编码器
type compressWriter struct {
	http.ResponseWriter
	encoding    string
	encoder     io.WriteCloser
	wroteHeader bool
	bypass      bool
}

func (cw *compressWriter) WriteHeader(code int) {
	if cw.wroteHeader {
		return
	}
	cw.wroteHeader = true

	if code == http.StatusNoContent || code == http.StatusNotModified ||
		cw.Header().Get("Content-Encoding") != "" {
		cw.bypass = true
		cw.ResponseWriter.WriteHeader(code)
		return
	}

	h := cw.Header()
	h.Set("Content-Encoding", cw.encoding)
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressWriter) Write(p []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	if cw.bypass {
		return cw.ResponseWriter.Write(p)
	}
	if cw.encoder == nil {
		switch cw.encoding {
		case "br":
			cw.encoder = brotli.NewWriterLevel(cw.ResponseWriter, brotli.DefaultCompression)
		default:
			cw.encoder = gzip.NewWriter(cw.ResponseWriter)
		}
	}
	return cw.encoder.Write(p)
}

func (cw *compressWriter) Close() error {
	if cw.encoder == nil {
		return nil
	}
	return cw.encoder.Close()
}

// negotiateEncoding 优先br,其次gzip
func negotiateEncoding(accept string) string {
	var gz bool
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(params) == "q=0" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "br":
			return "br"
		case "gzip":
			gz = true
		}
	}
	if gz {
		return "gzip"
	}
	return ""
}

// compress 按Accept-Encoding压缩响应
func compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if encoding == "" || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, encoding: encoding}
		defer func() {
			if err := cw.Close(); err != nil {
				utils.Debugf("关闭压缩编码器失败: %v", err)
			}
		}()
		next.ServeHTTP(cw, r)
	})
}
