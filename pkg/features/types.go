// Package features 提供局部特征提取功能
//
// 支持以下提取方法:
//   - ORB (OpenCV 经典角点检测 + 二进制描述子)
//   - ALIKE (深度学习关键点检测, ONNX)
//   - DISK (深度学习提取器, ONNX)
//   - SuperPoint (深度学习提取器, ONNX)
//   - KeyNetAffNetHardNet (仿射协变检测管线, ONNX)
//
// 基本用法:
//
//	extractor, err := features.NewLocalFeatureExtractor(features.MethodORB, 1024, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer extractor.Close()
//
//	kpts, descs, lafs, err := extractor.Run("im0.png", "im1.png")
package features

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Method 特征提取方法枚举
type Method string

const (
	MethodORB                 Method = "ORB"                 // ORB 角点检测（确定性，无需模型文件）
	MethodALIKE               Method = "ALIKE"               // ALIKE 深度关键点检测
	MethodDISK                Method = "DISK"                // DISK 深度提取器
	MethodSuperPoint          Method = "SuperPoint"          // SuperPoint 深度提取器
	MethodKeyNetAffNetHardNet Method = "KeyNetAffNetHardNet" // KeyNet+AffNet+HardNet 仿射协变管线
)

// Methods 返回所有支持的提取方法
func Methods() []Method {
	return []Method{
		MethodORB,
		MethodALIKE,
		MethodDISK,
		MethodSuperPoint,
		MethodKeyNetAffNetHardNet,
	}
}

// ParseMethod 解析方法名称
// 未知名称在此处报错，而不是等到首次调用
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("不支持的特征提取方法: %q", s)
}

// Device 推理设备
type Device string

const (
	DeviceCPU    Device = "cpu"
	DeviceCUDA   Device = "cuda"
	DeviceCoreML Device = "coreml"
)

// ParseDevice 解析设备名称
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(s) {
	case "", "cpu":
		return DeviceCPU, nil
	case "cuda", "gpu":
		return DeviceCUDA, nil
	case "coreml":
		return DeviceCoreML, nil
	default:
		return "", fmt.Errorf("不支持的推理设备: %q", s)
	}
}

// Matrix 行主序 float32 矩阵
// 关键点为 k×2 或 k×4，描述子为 k×D
type Matrix struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float32 `json:"data"`
}

// NewMatrix 创建指定形状的矩阵
func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// At 获取 (row, col) 处的元素
func (m Matrix) At(row, col int) float32 {
	return m.Data[row*m.Cols+col]
}

// Set 设置 (row, col) 处的元素
func (m *Matrix) Set(row, col int, v float32) {
	m.Data[row*m.Cols+col] = v
}

// Row 获取第 row 行（共享底层存储）
func (m Matrix) Row(row int) []float32 {
	return m.Data[row*m.Cols : (row+1)*m.Cols]
}

// Empty 矩阵是否为空
func (m Matrix) Empty() bool {
	return m.Rows == 0
}

// Tensor 带显式形状的 float32 张量
// 仅用于局部仿射框架 (LAF): [stages, k, 2, 3]
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// NewTensor 创建指定形状的张量
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{Shape: append([]int{}, shape...), Data: make([]float32, n)}
}

// Result 单张图像的特征提取结果
// 不变式: Descriptors.Rows == Keypoints.Rows
type Result struct {
	// Keypoints 关键点坐标矩阵
	Keypoints Matrix `json:"keypoints"`
	// Descriptors 描述子矩阵，与关键点按行对齐
	Descriptors Matrix `json:"descriptors"`
	// LAF 局部仿射框架，仅 KeyNetAffNetHardNet 产生，其余为 nil
	LAF *Tensor `json:"laf,omitempty"`
}

// ImageStem 获取图像文件名主干（不含目录和扩展名）
func ImageStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
