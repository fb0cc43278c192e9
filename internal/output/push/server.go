package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ladder-optimizer/internal/config"
	"ladder-optimizer/internal/output/jsonl"
)

// EngineSource 返回当前生效的引擎参数
type EngineSource func() config.EngineConfig

// Server 推送与查询服务
// 路由:
//   - GET  /ws          WebSocket 推送
//   - GET  /metrics     Prometheus 指标
//   - GET  /healthz     存活检查
//   - GET  /api/ladders 最近一次周期结果
//   - GET  /api/config  当前引擎参数
//   - POST /api/config  提交引擎参数修改
type Server struct {
	router  *mux.Router
	server  *http.Server
	hub     *Hub
	engine  EngineSource
	metrics http.Handler
	latest  atomic.Pointer[jsonl.LadderRecord]
	started time.Time
	logger  *zap.Logger
}

// NewServer 创建服务
// 参数 cfg: 服务配置
// 参数 hub: 推送中心
// 参数 engine: 当前引擎参数来源
// 参数 metrics: 指标处理器，可为 nil
// 参数 logger: 日志记录器
func NewServer(cfg config.ServerConfig, hub *Hub, engine EngineSource, metrics http.Handler, logger *zap.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		hub:     hub,
		engine:  engine,
		metrics: metrics,
		started: time.Now(),
		logger:  logger.Named("server"),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler 返回路由（测试使用）
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	// WebSocket 需要 Hijack，不经过响应包装
	s.router.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.requestIDMiddleware)
	api.Use(s.requestLoggingMiddleware)
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/api/ladders", s.handleLadders).Methods(http.MethodGet)
	api.HandleFunc("/api/config", s.handleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/api/config", s.handlePostConfig).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
}

// Publish 保存并广播一个周期结果
// 参数 rec: 周期输出记录
func (s *Server) Publish(rec *jsonl.LadderRecord) {
	if rec == nil {
		return
	}
	s.latest.Store(rec)
	s.hub.Broadcast(MsgLadders, rec)
}

// Latest 返回最近一次发布的周期结果
func (s *Server) Latest() *jsonl.LadderRecord {
	return s.latest.Load()
}

// Start 启动服务（阻塞直到关闭）
func (s *Server) Start() error {
	s.logger.Info("HTTP 服务启动", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭服务
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP 服务关闭")
	return s.server.Shutdown(ctx)
}

type errorBody struct {
	Error string `json:"error"`
}

type healthBody struct {
	OK       bool   `json:"ok"`
	Time     string `json:"time"`
	UptimeS  int64  `json:"uptime_s"`
	Clients  int    `json:"clients"`
	HasCycle bool   `json:"has_cycle"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, healthBody{
		OK:       true,
		Time:     now.UTC().Format(time.RFC3339),
		UptimeS:  int64(now.Sub(s.started).Seconds()),
		Clients:  s.hub.ClientCount(),
		HasCycle: s.latest.Load() != nil,
	})
}

func (s *Server) handleLadders(w http.ResponseWriter, r *http.Request) {
	rec := s.latest.Load()
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "尚无周期结果"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine())
}

// handlePostConfig 先在当前参数上试应用以便同步返回验证错误，再投递给计算循环
func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var u config.EngineUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "参数格式错误: " + err.Error()})
		return
	}

	next, err := s.engine().Apply(u)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	if !s.hub.Submit(u) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "参数修改队列已满"})
		return
	}
	writeJSON(w, http.StatusAccepted, next)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		id, _ := r.Context().Value(requestIDKey).(string)
		s.logger.Debug("请求",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapper.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr))
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
