// Package config 提供提取配置的加载与保存
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ljjTYJR/deep-image-matching/pkg/features"
)

// ExtractionConfig 特征提取配置
type ExtractionConfig struct {
	// Method 默认提取方法
	Method string `json:"method"`
	// NFeatures 目标关键点数量
	NFeatures int `json:"n_features"`
	// Features 各后端参数
	Features features.Config `json:"features"`
	// LogLevel 日志级别
	LogLevel string `json:"log_level"`
	// LogFile 日志文件路径，空表示仅控制台输出
	LogFile string `json:"log_file"`
}

// DefaultExtractionConfig 默认提取配置
func DefaultExtractionConfig() *ExtractionConfig {
	return &ExtractionConfig{
		Method:    string(features.MethodORB),
		NFeatures: 1024,
		Features:  *features.DefaultConfig(),
		LogLevel:  "INFO",
	}
}

// Manager 配置管理器
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := filepath.Join(homeDir, ".deep-image-matching")
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// ensureDir 确保配置目录存在
func (m *Manager) ensureDir() error {
	return os.MkdirAll(m.configDir, 0755)
}

// Load 加载配置，文件不存在时返回默认配置
func (m *Manager) Load() (*ExtractionConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return DefaultExtractionConfig(), nil
	}

	data, err := os.ReadFile(m.configFile)
	if err != nil {
		return DefaultExtractionConfig(), fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := DefaultExtractionConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return DefaultExtractionConfig(), fmt.Errorf("解析配置文件失败: %w", err)
	}

	return config, nil
}

// Save 保存配置
func (m *Manager) Save(config *ExtractionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureDir(); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Clear 清除配置
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return nil
	}

	return os.Remove(m.configFile)
}

// GetConfigDir 获取配置目录
func (m *Manager) GetConfigDir() string {
	return m.configDir
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}

// 全局配置管理器
var defaultManager = NewManager()

// GetDefaultManager 获取默认配置管理器
func GetDefaultManager() *Manager {
	return defaultManager
}

// Load 使用默认管理器加载配置
func Load() (*ExtractionConfig, error) {
	return defaultManager.Load()
}

// Save 使用默认管理器保存配置
func Save(config *ExtractionConfig) error {
	return defaultManager.Save(config)
}
