package features

import (
	"fmt"
	"time"

	"github.com/ljjTYJR/deep-image-matching/internal/logger"
)

// backend 单个提取后端的统一接口
// 封闭的变体集合，在构造时选定，取代按名称的反射式分发
type backend interface {
	// Extract 提取单张图像的特征
	Extract(input interface{}) (*Result, error)
	// Close 释放资源
	Close() error
}

// LocalFeatures 局部特征提取适配器
// 持有一个已配置的后端，生命周期内复用同一个模型句柄
type LocalFeatures struct {
	method  Method
	backend backend
	cache   *featureCache
}

// NewLocalFeatures 创建适配器
// 未知方法在此处报错；cfg 为 nil 时使用默认配置
func NewLocalFeatures(method Method, nFeatures int, cfg *Config, opts ...Option) (*LocalFeatures, error) {
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var (
		b   backend
		err error
	)
	switch method {
	case MethodORB:
		b, err = newORBBackend(nFeatures, cfg.ORB)
	case MethodALIKE:
		b, err = newALIKEBackend(cfg.ALIKE, cfg.OnnxLibPath)
	case MethodDISK:
		b, err = newDISKBackend(nFeatures, cfg.DISK, cfg.OnnxLibPath)
	case MethodSuperPoint:
		b, err = newSuperPointBackend(nFeatures, cfg.SuperPoint, cfg.OnnxLibPath)
	case MethodKeyNetAffNetHardNet:
		b, err = newKeyNetBackend(nFeatures, cfg.KeyNet, cfg.OnnxLibPath)
	}
	if err != nil {
		return nil, fmt.Errorf("创建 %s 后端失败: %w", method, err)
	}

	return newLocalFeaturesWithBackend(method, b, opts...), nil
}

// newLocalFeaturesWithBackend 用指定后端组装适配器（测试亦经此注入）
func newLocalFeaturesWithBackend(method Method, b backend, opts ...Option) *LocalFeatures {
	o := &extractOptions{}
	for _, opt := range opts {
		opt(o)
	}

	lf := &LocalFeatures{method: method, backend: b}
	if o.cacheCapacity > 0 {
		lf.cache = newFeatureCache(o.cacheCapacity)
	}
	return lf
}

// Method 当前适配器的提取方法
func (lf *LocalFeatures) Method() Method {
	return lf.method
}

// Extract 提取单张图像的特征
// input 支持文件路径；ALIKE 额外支持预解码的 image.Image
// 返回图像主干名和提取结果
func (lf *LocalFeatures) Extract(input interface{}) (string, *Result, error) {
	stem := inputStem(input)

	start := time.Now()
	result, err := lf.backend.Extract(input)
	if err != nil {
		return stem, nil, err
	}

	logger.Debug("%s 提取完成: %s, %d 个关键点, %.1fms",
		lf.method, stem, result.Keypoints.Rows, float64(time.Since(start).Microseconds())/1000.0)

	if lf.cache != nil && stem != "" {
		lf.cache.Put(stem, result)
	}
	return stem, result, nil
}

// Cached 查询缓存的提取结果（未启用缓存时总是未命中）
func (lf *LocalFeatures) Cached(stem string) (*Result, bool) {
	if lf.cache == nil {
		return nil, false
	}
	return lf.cache.Get(stem)
}

// Close 释放后端资源
func (lf *LocalFeatures) Close() error {
	return lf.backend.Close()
}

// inputStem 从输入推导图像主干名
// 预解码图像没有文件名，返回空串（不参与缓存）
func inputStem(input interface{}) string {
	if path, ok := input.(string); ok {
		return ImageStem(path)
	}
	return ""
}

// LocalFeatureExtractor 成对图像特征提取门面
// 对一对图像依次调用同一个后端，返回按图像对齐的并行切片
type LocalFeatureExtractor struct {
	features *LocalFeatures
}

// NewLocalFeatureExtractor 创建门面
// 方法合法性在构造时校验，而不是首次调用时
func NewLocalFeatureExtractor(method Method, nFeatures int, cfg *Config, opts ...Option) (*LocalFeatureExtractor, error) {
	lf, err := NewLocalFeatures(method, nFeatures, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &LocalFeatureExtractor{features: lf}, nil
}

// Run 对一对图像提取特征
// 返回长度为 2 的关键点、描述子、LAF 切片，下标与输入图像对应
func (e *LocalFeatureExtractor) Run(im0, im1 interface{}) ([]Matrix, []Matrix, []*Tensor, error) {
	keypoints := make([]Matrix, 0, 2)
	descriptors := make([]Matrix, 0, 2)
	lafs := make([]*Tensor, 0, 2)

	for _, img := range []interface{}{im0, im1} {
		_, result, err := e.features.Extract(img)
		if err != nil {
			return nil, nil, nil, err
		}
		keypoints = append(keypoints, result.Keypoints)
		descriptors = append(descriptors, result.Descriptors)
		lafs = append(lafs, result.LAF)
	}

	return keypoints, descriptors, lafs, nil
}

// Features 访问底层适配器
func (e *LocalFeatureExtractor) Features() *LocalFeatures {
	return e.features
}

// Close 释放资源
func (e *LocalFeatureExtractor) Close() error {
	return e.features.Close()
}

// 编译期确认各后端实现统一接口
var (
	_ backend = (*orbBackend)(nil)
	_ backend = (*alikeBackend)(nil)
	_ backend = (*diskBackend)(nil)
	_ backend = (*superPointBackend)(nil)
	_ backend = (*keyNetBackend)(nil)
)
