package features

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// SuperPoint 模型的输入输出名称
var (
	superPointInputNames  = []string{"image"}
	superPointOutputNames = []string{"keypoints", "scores", "descriptors"}
)

// superPointBackend SuperPoint 提取后端
type superPointBackend struct {
	session   *onnxSession
	nFeatures int
}

// newSuperPointBackend 创建 SuperPoint 后端
func newSuperPointBackend(nFeatures int, cfg DeepConfig, libPath string) (*superPointBackend, error) {
	device, err := ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	session, err := newONNXSession(cfg.ModelPath, libPath, device, superPointInputNames, superPointOutputNames)
	if err != nil {
		return nil, err
	}

	return &superPointBackend{session: session, nFeatures: nFeatures}, nil
}

// Extract 提取 SuperPoint 特征
// 灰度输入，输出按得分截断到配置上限并整形为 (k,2)/(k,D)
func (b *superPointBackend) Extract(input interface{}) (*Result, error) {
	path, ok := input.(string)
	if !ok {
		return nil, fmt.Errorf("不支持的图像输入类型: %T", input)
	}

	img, err := ReadImageGray(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	data, h, w, err := matToGrayTensor(img)
	if err != nil {
		return nil, err
	}

	tensor, err := newImageTensor(data, 1, h, w)
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
	scores := outputs[1].GetData()
	descs, descDim := matrixFromOutput(outputs[2])

	idx := selectTopK(scores, b.nFeatures)

	return &Result{
		Keypoints:   gatherRows(kpts, idx, kptDim),
		Descriptors: gatherRows(descs, idx, descDim),
	}, nil
}

// Close 释放资源
func (b *superPointBackend) Close() error {
	return b.session.close()
}
