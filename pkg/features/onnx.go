package features

import (
	"fmt"
	"os"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX Runtime 环境全局初始化一次
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initONNXRuntime 初始化 ONNX Runtime 环境
// libPath 为动态库路径，空则使用库的默认查找逻辑
func initONNXRuntime(libPath string) error {
	ortInitOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return fmt.Errorf("初始化 ONNX Runtime 失败: %w", ortInitErr)
	}
	return nil
}

// onnxSession 单个 ONNX 模型的推理会话
// 会话在后端构造时创建，生命周期与后端一致
type onnxSession struct {
	session     *ort.DynamicAdvancedSession
	outputNames []string
}

// newONNXSession 创建推理会话
func newONNXSession(modelPath, libPath string, device Device, inputNames, outputNames []string) (*onnxSession, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("模型文件不存在: %s", modelPath)
	}

	if err := initONNXRuntime(libPath); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("创建会话选项失败: %w", err)
	}
	defer options.Destroy()

	switch device {
	case DeviceCPU, "":
		// 默认 CPU 执行
	case DeviceCUDA:
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("创建 CUDA 选项失败: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return nil, fmt.Errorf("启用 CUDA 失败: %w", err)
		}
	case DeviceCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return nil, fmt.Errorf("启用 CoreML 失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的推理设备: %q", device)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("加载模型失败 %s: %w", modelPath, err)
	}

	return &onnxSession{session: session, outputNames: outputNames}, nil
}

// run 执行一次前向推理（无梯度，ONNX Runtime 本身只做前向计算）
// 返回与 outputNames 对齐的输出张量，调用方负责 Destroy
func (s *onnxSession) run(inputs []ort.Value) ([]*ort.Tensor[float32], error) {
	outputs := make([]ort.Value, len(s.outputNames))
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("模型推理失败: %w", err)
	}

	tensors := make([]*ort.Tensor[float32], len(outputs))
	for i, out := range outputs {
		t, ok := out.(*ort.Tensor[float32])
		if !ok {
			for _, o := range outputs {
				if o != nil {
					o.Destroy()
				}
			}
			return nil, fmt.Errorf("模型输出 %s 不是 float32 张量", s.outputNames[i])
		}
		tensors[i] = t
	}
	return tensors, nil
}

// close 释放会话
func (s *onnxSession) close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

// destroyTensors 释放一组输出张量
func destroyTensors(tensors []*ort.Tensor[float32]) {
	for _, t := range tensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// newImageTensor 从 CHW 数据创建输入张量
func newImageTensor(data []float32, channels, h, w int) (*ort.Tensor[float32], error) {
	tensor, err := ort.NewTensor(ort.NewShape(1, int64(channels), int64(h), int64(w)), data)
	if err != nil {
		return nil, fmt.Errorf("创建输入张量失败: %w", err)
	}
	return tensor, nil
}

// selectTopK 按得分降序选出前 k 个索引
// k <= 0 或大于候选数时返回全部（仍按得分排序）
func selectTopK(scores []float32, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k > 0 && k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

// gatherRows 按索引收集矩阵行
func gatherRows(rows [][]float32, idx []int, cols int) Matrix {
	m := NewMatrix(len(idx), cols)
	for i, j := range idx {
		copy(m.Row(i), rows[j])
	}
	return m
}

// gatherLAF 按索引在每个阶段收集 LAF 帧
// lafData 为 [S,N,2,3] 张量数据，返回 [S,len(idx),2,3]
func gatherLAF(lafData []float32, stages, n int, idx []int) *Tensor {
	t := NewTensor(stages, len(idx), 2, 3)
	for s := 0; s < stages; s++ {
		base := s * n * 6
		for i, j := range idx {
			copy(t.Data[(s*len(idx)+i)*6:], lafData[base+j*6:base+(j+1)*6])
		}
	}
	return t
}

// tensorRows 将 [N,D] 张量数据切分为行视图
func tensorRows(data []float32, n, d int) [][]float32 {
	rows := make([][]float32, n)
	for i := 0; i < n; i++ {
		rows[i] = data[i*d : (i+1)*d]
	}
	return rows
}
