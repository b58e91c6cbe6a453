package features

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// DISK 网络要求输入尺寸为 16 的整数倍
const diskStride = 16

// DISK 模型的输入输出名称
var (
	diskInputNames  = []string{"image"}
	diskOutputNames = []string{"keypoints", "descriptors", "scores"}
)

// diskBackend DISK 提取后端
type diskBackend struct {
	session   *onnxSession
	nFeatures int
}

// newDISKBackend 创建 DISK 后端
func newDISKBackend(nFeatures int, cfg DeepConfig, libPath string) (*diskBackend, error) {
	device, err := ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	session, err := newONNXSession(cfg.ModelPath, libPath, device, diskInputNames, diskOutputNames)
	if err != nil {
		return nil, err
	}

	return &diskBackend{session: session, nFeatures: nFeatures}, nil
}

// Extract 提取 DISK 特征
// 图像先填充到网络步长的整数倍，输出按得分截断到配置的关键点上限
func (b *diskBackend) Extract(input interface{}) (*Result, error) {
	path, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("不支持的图像输入类型: %T", input)
	}

	img, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	origW := img.Cols()
	origH := img.Rows()

	padded := padToMultiple(img, diskStride)
	defer padded.Close()

	data, h, w, err := matToCHW(padded)
	if err != nil {
		return nil, err
	}

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

	// 过滤落在填充区域内的关键点
	kept := make([]int, 0, len(kpts))
	keptScores := make([]float32, 0, len(kpts))
	for i, kp := range kpts {
		if kptDim >= 2 && (kp[0] >= float32(origW) || kp[1] >= float32(origH)) {
			continue
		}
		kept = append(kept, i)
		keptScores = append(keptScores, scores[i])
	}

	order := selectTopK(keptScores, b.nFeatures)
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
func (b *diskBackend) Close() error {
	return b.session.close()
}
