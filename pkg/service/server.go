package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ljjTYJR/deep-image-matching/internal/logger"
	"github.com/ljjTYJR/deep-image-matching/pkg/config"
	"github.com/ljjTYJR/deep-image-matching/pkg/features"
)

// Server 特征提取服务
// 按方法缓存适配器，同一方法的模型句柄在服务生命周期内复用
type Server struct {
	cfg      *config.ExtractionConfig
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu       sync.Mutex
	adapters map[features.Method]*features.LocalFeatures
}

// NewServer 创建服务
func NewServer(cfg *config.ExtractionConfig) *Server {
	if cfg == nil {
		cfg = config.DefaultExtractionConfig()
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 提取服务运行在受信环境中
			CheckOrigin: func(*http.Request) bool { return true },
		},
		adapters: make(map[features.Method]*features.LocalFeatures),
	}
}

// Handler 返回服务的 HTTP 处理器
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/extract", s.handleWs)
	return mux
}

// ListenAndServe 启动服务并阻塞
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	logger.Info("特征提取服务启动: %s", addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown 关闭服务，释放全部模型句柄
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for method, adapter := range s.adapters {
		if err := adapter.Close(); err != nil {
			logger.Warn("关闭 %s 后端失败: %v", method, err)
		}
	}
	s.adapters = make(map[features.Method]*features.LocalFeatures)
	s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// adapter 获取或创建指定方法的适配器
func (s *Server) adapter(method features.Method, nFeatures int) (*features.LocalFeatures, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.adapters[method]; ok {
		return a, nil
	}

	a, err := features.NewLocalFeatures(method, nFeatures, &s.cfg.Features)
	if err != nil {
		return nil, err
	}
	s.adapters[method] = a
	return a, nil
}

// handleWs 处理 WebSocket 连接
func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	logger.Info("客户端连接: %s", conn.RemoteAddr())

	var writeMu sync.Mutex
	send := func(msg *WsServerMessage) error {
		msg.Timestamp = time.Now().UnixMilli()
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	// 连接成功后发送系统信息
	if err := send(&WsServerMessage{Welcome: &WsWelcome{SystemInfo: GetSystemInfo()}}); err != nil {
		logger.Error("发送欢迎消息失败: %v", err)
		return
	}

	for {
		var msg WsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("读取消息失败: %v", err)
			}
			return
		}

		var reply *WsServerMessage
		switch {
		case msg.Ping != nil:
			reply = &WsServerMessage{
				MessageId: msg.MessageId,
				Pong: &WsPong{
					ClientTimestamp: msg.Ping.Timestamp,
					ServerTimestamp: time.Now().UnixMilli(),
				},
			}

		case msg.Extract != nil:
			result, err := s.runExtract(msg.Extract)
			if err != nil {
				logger.Error("提取失败: %v", err)
				reply = &WsServerMessage{
					MessageId: msg.MessageId,
					Error:     &WsError{Message: err.Error()},
				}
				break
			}
			reply = &WsServerMessage{MessageId: msg.MessageId, ExtractResult: result}

		default:
			reply = &WsServerMessage{
				MessageId: msg.MessageId,
				Error:     &WsError{Message: "未知的消息类型"},
			}
		}

		if err := send(reply); err != nil {
			logger.Error("发送响应失败: %v", err)
			return
		}
	}
}

// runExtract 执行一次成对图像提取
func (s *Server) runExtract(req *WsExtractRequest) (*WsExtractResult, error) {
	if len(req.Images) != 2 {
		return nil, fmt.Errorf("提取请求需要恰好 2 张图像, 收到 %d 张", len(req.Images))
	}

	method, err := features.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}

	nFeatures := req.NFeatures
	if nFeatures <= 0 {
		nFeatures = s.cfg.NFeatures
	}

	adapter, err := s.adapter(method, nFeatures)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &WsExtractResult{Method: string(method)}
	for _, path := range req.Images {
		stem, res, err := adapter.Extract(path)
		if err != nil {
			return nil, err
		}
		logger.LogExtraction(string(method), stem, res.Keypoints.Rows,
			float64(time.Since(start).Microseconds())/1000.0)
		result.Images = append(result.Images, WsImageFeatures{
			Stem:        stem,
			Keypoints:   res.Keypoints,
			Descriptors: res.Descriptors,
			LAF:         res.LAF,
		})
	}
	result.DurationMs = time.Since(start).Milliseconds()

	return result, nil
}
