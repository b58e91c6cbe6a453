package features

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

const (
	orbRawDescBytes = 32  // OpenCV ORB 原始描述子字节数
	orbDescDim      = 128 // 补零后的描述子维度
	orbDescNorm     = 512 // 重归一化的 L2 范数
)

// orbBackend ORB 提取后端
type orbBackend struct {
	orb gocv.ORB
	cfg ORBConfig
}

// newORBBackend 创建 ORB 后端
func newORBBackend(nFeatures int, cfg ORBConfig) (*orbBackend, error) {
	scoreType := gocv.ORBScoreTypeHarris
	switch cfg.ScoreType {
	case "", "harris":
		scoreType = gocv.ORBScoreTypeHarris
	case "fast":
		scoreType = gocv.ORBScoreTypeFAST
	default:
		return nil, fmt.Errorf("不支持的 ORB 评分类型: %q", cfg.ScoreType)
	}

	orb := gocv.NewORBWithParams(
		nFeatures,
		cfg.ScaleFactor,
		cfg.NLevels,
		cfg.EdgeThreshold,
		cfg.FirstLevel,
		cfg.WTAK,
		scoreType,
		cfg.PatchSize,
		cfg.FastThreshold,
	)

	return &orbBackend{orb: orb, cfg: cfg}, nil
}

// Extract 提取 ORB 特征
// 返回关键点 (k,4) 和描述子 (k,128)，不产生 LAF
func (b *orbBackend) Extract(input interface{}) (*Result, error) {
	gray, err := loadGrayInput(input)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	kps, desc := b.orb.DetectAndCompute(gray, mask)
	defer desc.Close()

	if len(kps) == 0 {
		return &Result{
			Keypoints:   Matrix{Rows: 0, Cols: 4},
			Descriptors: Matrix{Rows: 0, Cols: orbDescDim},
		}, nil
	}

	raw := desc.ToBytes()
	return &Result{
		Keypoints:   padORBKeypoints(kps),
		Descriptors: quantizeORBDescriptors(raw, len(kps)),
	}, nil
}

// Close 释放资源
func (b *orbBackend) Close() error {
	return b.orb.Close()
}

// padORBKeypoints 将关键点扩展为 (k,4): x, y, 常量 1, 常量 0
// 补齐到与其他后端一致的列数
func padORBKeypoints(kps []gocv.KeyPoint) Matrix {
	m := NewMatrix(len(kps), 4)
	for i, kp := range kps {
		m.Set(i, 0, float32(kp.X))
		m.Set(i, 1, float32(kp.Y))
		m.Set(i, 2, 1)
		m.Set(i, 3, 0)
	}
	return m
}

// quantizeORBDescriptors 规范化 ORB 二进制描述子
// 32 字节补零到 128 维，取绝对值，按行 L2 归一化到 512，四舍五入后量化为 8 位
// 使二进制描述子与其他后端的浮点描述子在数值尺度上可比
func quantizeORBDescriptors(raw []byte, k int) Matrix {
	m := NewMatrix(k, orbDescDim)
	for i := 0; i < k; i++ {
		row := m.Row(i)
		src := raw[i*orbRawDescBytes : (i+1)*orbRawDescBytes]

		var norm float64
		for j, v := range src {
			f := float64(v)
			row[j] = float32(f)
			norm += f * f
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			continue
		}

		for j := 0; j < orbRawDescBytes; j++ {
			scaled := math.Round(float64(row[j]) * orbDescNorm / norm)
			row[j] = float32(uint8(int(scaled)))
		}
	}
	return m
}

// loadGrayInput 加载灰度图像输入
// 支持 string (文件路径)、image.Image、gocv.Mat
func loadGrayInput(input interface{}) (gocv.Mat, error) {
	switch v := input.(type) {
	case string:
		return ReadImageGray(v)
	case image.Image:
		mat, err := gocv.ImageToMatRGB(v)
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("图像转换失败: %w", err)
		}
		defer mat.Close()
		gray := gocv.NewMat()
		gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)
		return gray, nil
	case gocv.Mat:
		if v.Channels() == 1 {
			return v.Clone(), nil
		}
		gray := gocv.NewMat()
		gocv.CvtColor(v, &gray, gocv.ColorBGRToGray)
		return gray, nil
	default:
		return gocv.Mat{}, fmt.Errorf("不支持的图像输入类型: %T", input)
	}
}
