package features

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// KeyNetAffNetHardNet 导出图输出逐阶段堆叠的张量:
// lafs [S,N,2,3], responses [S,N], descriptors [S,N,D]
var (
	keyNetInputNames  = []string{"image"}
	keyNetOutputNames = []string{"lafs", "responses", "descriptors"}
)

// keyNetBackend KeyNet+AffNet+HardNet 仿射协变提取后端
// 唯一产生局部仿射框架 (LAF) 的后端
type keyNetBackend struct {
	session   *onnxSession
	nFeatures int
}

// newKeyNetBackend 创建 KeyNetAffNetHardNet 后端
func newKeyNetBackend(nFeatures int, cfg DeepConfig, libPath string) (*keyNetBackend, error) {
	device, err := ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	session, err := newONNXSession(cfg.ModelPath, libPath, device, keyNetInputNames, keyNetOutputNames)
	if err != nil {
		return nil, err
	}

	return &keyNetBackend{session: session, nFeatures: nFeatures}, nil
}

// Extract 提取仿射协变特征
// 按最后阶段的响应值截取前 nFeatures 个关键点，LAF 张量在每个阶段保留同一组索引
func (b *keyNetBackend) Extract(input interface{}) (*Result, error) {
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

	lafShape := outputs[0].GetShape()
	if len(lafShape) != 4 || lafShape[2] != 2 || lafShape[3] != 3 {
		return nil, fmt.Errorf("LAF 输出形状异常: %v", lafShape)
	}

	stages := int(lafShape[0])
	n := int(lafShape[1])
	lafData := outputs[0].GetData()
	respData := outputs[1].GetData()

	descShape := outputs[2].GetShape()
	if len(descShape) != 3 {
		return nil, fmt.Errorf("描述子输出形状异常: %v", descShape)
	}
	d := int(descShape[2])
	descData := outputs[2].GetData()

	kpts, descs, laf := sliceKeyNetOutputs(lafData, respData, descData, stages, n, d, b.nFeatures)

	return &Result{
		Keypoints:   kpts,
		Descriptors: descs,
		LAF:         laf,
	}, nil
}

// sliceKeyNetOutputs 从逐阶段堆叠的输出中按最后阶段的响应值截取前 k 个关键点
// 关键点坐标取最后阶段 LAF 的平移列，LAF 张量在每个阶段保留同一组索引
func sliceKeyNetOutputs(lafData, respData, descData []float32, stages, n, d, k int) (Matrix, Matrix, *Tensor) {
	idx := selectTopK(respData[(stages-1)*n:stages*n], k)

	laf := gatherLAF(lafData, stages, n, idx)

	kpts := NewMatrix(len(idx), 2)
	lastStage := lafData[(stages-1)*n*6:]
	for i, j := range idx {
		frame := lastStage[j*6 : (j+1)*6]
		kpts.Set(i, 0, frame[2]) // x = laf[0][2]
		kpts.Set(i, 1, frame[5]) // y = laf[1][2]
	}

	lastDescs := tensorRows(descData[(stages-1)*n*d:], n, d)
	descs := gatherRows(lastDescs, idx, d)

	return kpts, descs, laf
}

// Close 释放资源
func (b *keyNetBackend) Close() error {
	return b.session.close()
}
