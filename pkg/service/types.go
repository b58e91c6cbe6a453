// Package service 提供基于 WebSocket 的特征提取服务
package service

import (
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/ljjTYJR/deep-image-matching/pkg/features"
)

// Version 服务版本 (可通过 ldflags 注入)
var Version = "1.0.0"

// ==================== WebSocket 消息类型 ====================

// WsClientMessage 客户端消息
type WsClientMessage struct {
	MessageId string            `json:"messageId"`
	Timestamp int64             `json:"timestamp"`
	Extract   *WsExtractRequest `json:"extract,omitempty"`
	Ping      *WsPing           `json:"ping,omitempty"`
}

// WsExtractRequest 特征提取请求
type WsExtractRequest struct {
	// Method 提取方法名称
	Method string `json:"method"`
	// NFeatures 目标关键点数量，0 使用服务端配置
	NFeatures int `json:"nFeatures,omitempty"`
	// Images 一对图像的路径
	Images []string `json:"images"`
}

// WsPing Ping 命令
type WsPing struct {
	Timestamp int64 `json:"timestamp"`
}

// WsServerMessage 服务端消息
type WsServerMessage struct {
	MessageId     string           `json:"messageId"`
	Timestamp     int64            `json:"timestamp"`
	Welcome       *WsWelcome       `json:"welcome,omitempty"`
	ExtractResult *WsExtractResult `json:"extractResult,omitempty"`
	Pong          *WsPong          `json:"pong,omitempty"`
	Error         *WsError         `json:"error,omitempty"`
}

// WsWelcome 连接成功后的欢迎消息
type WsWelcome struct {
	SystemInfo *SystemInfo `json:"systemInfo"`
}

// WsExtractResult 提取结果
type WsExtractResult struct {
	Method     string            `json:"method"`
	Images     []WsImageFeatures `json:"images"`
	DurationMs int64             `json:"durationMs"`
}

// WsImageFeatures 单张图像的特征
type WsImageFeatures struct {
	Stem        string           `json:"stem"`
	Keypoints   features.Matrix  `json:"keypoints"`
	Descriptors features.Matrix  `json:"descriptors"`
	LAF         *features.Tensor `json:"laf,omitempty"`
}

// WsPong Pong 响应
type WsPong struct {
	ClientTimestamp int64 `json:"clientTimestamp"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// WsError 错误响应
type WsError struct {
	Message string `json:"message"`
}

// ==================== 系统信息 ====================

// SystemInfo 服务端系统信息
type SystemInfo struct {
	Hostname       string   `json:"hostname"`
	Platform       string   `json:"platform"`
	ServiceVersion string   `json:"serviceVersion"`
	CPUCores       int      `json:"cpuCores"`
	TotalMemoryMB  uint64   `json:"totalMemoryMb"`
	Methods        []string `json:"methods"`
}

// GetSystemInfo 获取当前系统信息
func GetSystemInfo() *SystemInfo {
	hostname, _ := os.Hostname()

	platform := strings.ToUpper(runtime.GOOS)
	if platform == "DARWIN" {
		platform = "MACOS"
	}

	cores, err := cpu.Counts(true)
	if err != nil {
		cores = runtime.NumCPU()
	}

	var totalMB uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMB = vm.Total / 1024 / 1024
	}

	methods := make([]string, 0, len(features.Methods()))
	for _, m := range features.Methods() {
		methods = append(methods, string(m))
	}

	return &SystemInfo{
		Hostname:       hostname,
		Platform:       platform,
		ServiceVersion: Version,
		CPUCores:       cores,
		TotalMemoryMB:  totalMB,
		Methods:        methods,
	}
}
