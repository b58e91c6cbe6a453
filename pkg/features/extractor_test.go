package features

import (
	"fmt"
	"testing"
)

// stubBackend 测试用后端，记录调用并返回固定结果
type stubBackend struct {
	calls   int
	withLAF bool
	failOn  string
	closed  bool
}

func (s *stubBackend) Extract(input interface{}) (*Result, error) {
	s.calls++
	path, _ := input.(string)
	if s.failOn != "" && path == s.failOn {
		return nil, fmt.Errorf("模拟提取失败: %s", path)
	}

	result := &Result{
		Keypoints:   NewMatrix(3, 2),
		Descriptors: NewMatrix(3, 64),
	}
	// 用调用次数区分每次结果
	result.Keypoints.Set(0, 0, float32(s.calls))
	if s.withLAF {
		result.LAF = NewTensor(1, 3, 2, 3)
	}
	return result, nil
}

func (s *stubBackend) Close() error {
	s.closed = true
	return nil
}

func TestNewLocalFeaturesUnknownMethod(t *testing.T) {
	// 未知方法在构造时报错
	if _, err := NewLocalFeatures("SIFT", 1024, nil); err == nil {
		t.Error("未知方法应在构造时报错")
	}
	if _, err := NewLocalFeatureExtractor("LoFTR", 1024, nil); err == nil {
		t.Error("门面对未知方法也应在构造时报错")
	}
}

func TestLocalFeaturesRowAlignment(t *testing.T) {
	stub := &stubBackend{}
	lf := newLocalFeaturesWithBackend(MethodORB, stub)
	defer lf.Close()

	_, result, err := lf.Extract("pair/im0.png")
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}
	if result.Descriptors.Rows != result.Keypoints.Rows {
		t.Errorf("描述子行数 %d 应等于关键点行数 %d",
			result.Descriptors.Rows, result.Keypoints.Rows)
	}
}

func TestLocalFeaturesCacheOverwrite(t *testing.T) {
	stub := &stubBackend{}
	lf := newLocalFeaturesWithBackend(MethodORB, stub, WithCache(8))
	defer lf.Close()

	stem, first, err := lf.Extract("data/scene.png")
	if err != nil {
		t.Fatalf("首次提取失败: %v", err)
	}
	if stem != "scene" {
		t.Errorf("主干名期望 scene, 实际 %s", stem)
	}

	// 同名图像重复提取覆盖旧条目，而不是并存
	_, second, err := lf.Extract("other/dir/scene.png")
	if err != nil {
		t.Fatalf("重复提取失败: %v", err)
	}

	cached, ok := lf.Cached("scene")
	if !ok {
		t.Fatal("缓存应命中")
	}
	if cached == first {
		t.Error("缓存条目应被覆盖为最新结果")
	}
	if cached != second {
		t.Error("缓存条目应指向最新结果")
	}
	if lf.cache.Len() != 1 {
		t.Errorf("缓存条目数期望 1, 实际 %d", lf.cache.Len())
	}
}

func TestLocalFeaturesCacheBounded(t *testing.T) {
	stub := &stubBackend{}
	lf := newLocalFeaturesWithBackend(MethodORB, stub, WithCache(2))
	defer lf.Close()

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if _, _, err := lf.Extract(name); err != nil {
			t.Fatalf("提取 %s 失败: %v", name, err)
		}
	}

	if lf.cache.Len() != 2 {
		t.Errorf("缓存条目数期望 2, 实际 %d", lf.cache.Len())
	}
	if _, ok := lf.Cached("a"); ok {
		t.Error("最早的条目应被淘汰")
	}
	if _, ok := lf.Cached("c"); !ok {
		t.Error("最新的条目应保留")
	}
}

func TestLocalFeaturesNoCacheByDefault(t *testing.T) {
	stub := &stubBackend{}
	lf := newLocalFeaturesWithBackend(MethodORB, stub)
	defer lf.Close()

	if _, _, err := lf.Extract("a.png"); err != nil {
		t.Fatalf("提取失败: %v", err)
	}
	if _, ok := lf.Cached("a"); ok {
		t.Error("未启用缓存时不应命中")
	}
}

func TestExtractorRunPair(t *testing.T) {
	stub := &stubBackend{}
	e := &LocalFeatureExtractor{features: newLocalFeaturesWithBackend(MethodORB, stub)}
	defer e.Close()

	keypoints, descriptors, lafs, err := e.Run("im0.png", "im1.png")
	if err != nil {
		t.Fatalf("Run 失败: %v", err)
	}

	if len(keypoints) != 2 || len(descriptors) != 2 || len(lafs) != 2 {
		t.Fatalf("返回切片长度应为 2, 实际 %d/%d/%d",
			len(keypoints), len(descriptors), len(lafs))
	}
	if stub.calls != 2 {
		t.Errorf("后端应被调用 2 次, 实际 %d", stub.calls)
	}

	// 非 KeyNetAffNetHardNet 后端 LAF 恒为 nil
	for i, laf := range lafs {
		if laf != nil {
			t.Errorf("第 %d 张图像的 LAF 应为 nil", i)
		}
	}
}

func TestExtractorRunPairWithLAF(t *testing.T) {
	stub := &stubBackend{withLAF: true}
	e := &LocalFeatureExtractor{features: newLocalFeaturesWithBackend(MethodKeyNetAffNetHardNet, stub)}
	defer e.Close()

	_, _, lafs, err := e.Run("im0.png", "im1.png")
	if err != nil {
		t.Fatalf("Run 失败: %v", err)
	}
	for i, laf := range lafs {
		if laf == nil {
			t.Errorf("第 %d 张图像应有 LAF", i)
		}
	}
}

func TestExtractorRunFailFast(t *testing.T) {
	// 错误直接向上传播，无重试无部分结果
	stub := &stubBackend{failOn: "im1.png"}
	e := &LocalFeatureExtractor{features: newLocalFeaturesWithBackend(MethodORB, stub)}
	defer e.Close()

	if _, _, _, err := e.Run("im0.png", "im1.png"); err == nil {
		t.Error("后端失败应向上传播")
	}
}

func TestExtractorClose(t *testing.T) {
	stub := &stubBackend{}
	e := &LocalFeatureExtractor{features: newLocalFeaturesWithBackend(MethodORB, stub)}

	if err := e.Close(); err != nil {
		t.Fatalf("Close 失败: %v", err)
	}
	if !stub.closed {
		t.Error("Close 应传递到后端")
	}
}
