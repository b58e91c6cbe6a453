package features

import (
	"fmt"
	"image"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"
)

// ALIKE 模型的输入输出名称（官方导出图的约定）
var (
	alikeInputNames  = []string{"image"}
	alikeOutputNames = []string{"keypoints", "descriptors", "scores"}
)

// alikeModels 支持的 ALIKE 模型变体
var alikeModels = map[string]bool{
	"alike-t": true,
	"alike-s": true,
	"alike-n": true,
	"alike-l": true,
}

// alikeBackend ALIKE 提取后端
// 与其他后端不同，ALIKE 直接在预解码的图像上运行
type alikeBackend struct {
	session *onnxSession
	cfg     ALIKEConfig
}

// newALIKEBackend 创建 ALIKE 后端
func newALIKEBackend(cfg ALIKEConfig, libPath string) (*alikeBackend, error) {
	if !alikeModels[cfg.Model] {
		return nil, fmt.Errorf("不支持的 ALIKE 模型: %q", cfg.Model)
	}

	device, err := ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	modelPath := filepath.Join(cfg.ModelDir, cfg.Model+".onnx")
	session, err := newONNXSession(modelPath, libPath, device, alikeInputNames, alikeOutputNames)
	if err != nil {
		return nil, err
	}

	return &alikeBackend{session: session, cfg: cfg}, nil
}

// Extract 提取 ALIKE 特征
// 接受 image.Image 或文件路径；返回模型原生的关键点和描述子，不做补零或重归一化
func (b *alikeBackend) Extract(input interface{}) (*Result, error) {
	img, err := loadDecodedInput(input)
	if err != nil {
		return nil, err
	}

	data, h, w := imageToCHW(img, 0)
	tensor, err := newImageTensor(data, 3, h, w)
	if err != nil {
		return nil, err
	}
	defer tensor.Destroy()

	outputs, err := b.session.run([]ort.Value{tensor})
	if err != nil {
		return nil, err
	}
	defer destroyTensors(outputs)

	kpts, kptDim := matrixFromOutput(outputs[0])
	descs, descDim := matrixFromOutput(outputs[1])
	scores := outputs[2].GetData()

	// 得分阈值过滤，再按得分取 top_k，最后受 n_limit 约束
	kept := make([]int, 0, len(scores))
	keptScores := make([]float32, 0, len(scores))
	for i, s := range scores {
		if s >= b.cfg.ScoresTh {
			kept = append(kept, i)
			keptScores = append(keptScores, s)
		}
	}

	order := selectTopK(keptScores, b.cfg.TopK)
	if b.cfg.NLimit > 0 && len(order) > b.cfg.NLimit {
		order = order[:b.cfg.NLimit]
	}

	idx := make([]int, len(order))
	for i, j := range order {
		idx[i] = kept[j]
	}

	return &Result{
		Keypoints:   gatherRows(kpts, idx, kptDim),
		Descriptors: gatherRows(descs, idx, descDim),
	}, nil
}

// Close 释放资源
func (b *alikeBackend) Close() error {
	return b.session.close()
}

// loadDecodedInput 加载预解码图像输入
// 支持 image.Image 或 string (文件路径，纯 Go 解码)
func loadDecodedInput(input interface{}) (image.Image, error) {
	switch v := input.(type) {
	case image.Image:
		return v, nil
	case string:
		return loadImageFile(v)
	default:
		return nil, fmt.Errorf("不支持的图像输入类型: %T", input)
	}
}

// matrixFromOutput 将 [..., N, D] 输出张量切分为行视图
// 折叠前导的批次维度
func matrixFromOutput(t *ort.Tensor[float32]) ([][]float32, int) {
	shape := t.GetShape()
	if len(shape) < 2 {
		return nil, 0
	}
	d := int(shape[len(shape)-1])
	n := len(t.GetData()) / maxInt(d, 1)
	return tensorRows(t.GetData(), n, d), d
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
