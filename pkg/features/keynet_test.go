package features

import "testing"

// 构造 [S,N,2,3] 堆叠 LAF 数据，第 s 阶段第 j 个帧的平移列为 (10j+s, 100j+s)
func stackedLAFData(stages, n int) []float32 {
	data := make([]float32, stages*n*6)
	for s := 0; s < stages; s++ {
		for j := 0; j < n; j++ {
			frame := data[(s*n+j)*6:]
			frame[0] = 1
			frame[2] = float32(10*j + s)
			frame[4] = 1
			frame[5] = float32(100*j + s)
		}
	}
	return data
}

func TestSliceKeyNetOutputsTopK(t *testing.T) {
	const stages, n, d = 2, 4, 3

	lafData := stackedLAFData(stages, n)
	respData := []float32{
		0.5, 0.5, 0.5, 0.5, // 第一阶段的响应值不参与截取
		0.1, 0.9, 0.5, 0.7,
	}
	descData := make([]float32, stages*n*d)
	for j := 0; j < n; j++ {
		for c := 0; c < d; c++ {
			descData[((stages-1)*n+j)*d+c] = float32(j)
		}
	}

	kpts, descs, laf := sliceKeyNetOutputs(lafData, respData, descData, stages, n, d, 2)

	if kpts.Rows != 2 {
		t.Fatalf("截取后关键点数期望 2, 实际 %d", kpts.Rows)
	}
	if descs.Rows != 2 || descs.Cols != d {
		t.Fatalf("描述子形状期望 (2,%d), 实际 (%d,%d)", d, descs.Rows, descs.Cols)
	}

	// 最后阶段响应值降序前两名是索引 1 和 3
	if kpts.At(0, 0) != 11 || kpts.At(0, 1) != 101 {
		t.Errorf("第一个关键点期望 (11,101), 实际 (%v,%v)", kpts.At(0, 0), kpts.At(0, 1))
	}
	if kpts.At(1, 0) != 31 || kpts.At(1, 1) != 301 {
		t.Errorf("第二个关键点期望 (31,301), 实际 (%v,%v)", kpts.At(1, 0), kpts.At(1, 1))
	}
	if descs.At(0, 0) != 1 || descs.At(1, 0) != 3 {
		t.Errorf("描述子行应与关键点对齐, 实际 [%v %v]", descs.At(0, 0), descs.At(1, 0))
	}

	// LAF 在每个阶段保留同一组索引
	if laf.Shape[0] != stages || laf.Shape[1] != 2 {
		t.Fatalf("LAF 形状期望 [%d 2 2 3], 实际 %v", stages, laf.Shape)
	}
	if laf.Data[2] != 10 || laf.Data[5] != 100 {
		t.Errorf("第一阶段首帧平移列期望 (10,100), 实际 (%v,%v)", laf.Data[2], laf.Data[5])
	}
	if laf.Data[8] != 30 || laf.Data[11] != 300 {
		t.Errorf("第一阶段次帧平移列期望 (30,300), 实际 (%v,%v)", laf.Data[8], laf.Data[11])
	}
}

func TestSliceKeyNetOutputsNoLimit(t *testing.T) {
	const stages, n, d = 1, 3, 2

	lafData := stackedLAFData(stages, n)
	respData := []float32{0.3, 0.2, 0.8}
	descData := make([]float32, n*d)

	// k <= 0 时保留全部关键点
	kpts, descs, laf := sliceKeyNetOutputs(lafData, respData, descData, stages, n, d, -1)
	if kpts.Rows != n || descs.Rows != n || laf.Shape[1] != n {
		t.Errorf("k <= 0 应保留全部 %d 个关键点, 实际 (%d,%d,%d)",
			n, kpts.Rows, descs.Rows, laf.Shape[1])
	}

	// k 大于候选数时同样保留全部
	kpts, _, _ = sliceKeyNetOutputs(lafData, respData, descData, stages, n, d, 100)
	if kpts.Rows != n {
		t.Errorf("k 超限时应保留全部 %d 个关键点, 实际 %d", n, kpts.Rows)
	}
}

func TestGatherLAF(t *testing.T) {
	lafData := stackedLAFData(2, 3)

	laf := gatherLAF(lafData, 2, 3, []int{2, 0})
	if laf.Shape[0] != 2 || laf.Shape[1] != 2 || laf.Shape[2] != 2 || laf.Shape[3] != 3 {
		t.Fatalf("形状期望 [2 2 2 3], 实际 %v", laf.Shape)
	}

	// 第二阶段第一帧对应原索引 2: 平移列 (21, 201)
	frame := laf.Data[(1*2+0)*6:]
	if frame[2] != 21 || frame[5] != 201 {
		t.Errorf("平移列期望 (21,201), 实际 (%v,%v)", frame[2], frame[5])
	}
}
