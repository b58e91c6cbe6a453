package features

import "testing"

func TestSelectTopK(t *testing.T) {
	scores := []float32{0.1, 0.9, 0.5, 0.7}

	idx := selectTopK(scores, 2)
	if len(idx) != 2 {
		t.Fatalf("期望 2 个索引, 实际 %d", len(idx))
	}
	if idx[0] != 1 || idx[1] != 3 {
		t.Errorf("top-2 索引期望 [1 3], 实际 %v", idx)
	}
}

func TestSelectTopKAll(t *testing.T) {
	scores := []float32{0.3, 0.2, 0.8}

	// k <= 0 返回全部，仍按得分降序
	idx := selectTopK(scores, -1)
	if len(idx) != 3 {
		t.Fatalf("期望全部 3 个索引, 实际 %d", len(idx))
	}
	if idx[0] != 2 || idx[1] != 0 || idx[2] != 1 {
		t.Errorf("排序结果期望 [2 0 1], 实际 %v", idx)
	}

	// k 大于候选数时返回全部
	idx = selectTopK(scores, 100)
	if len(idx) != 3 {
		t.Errorf("k 超限时应返回全部, 实际 %d", len(idx))
	}
}

func TestSelectTopKEmpty(t *testing.T) {
	// 零关键点输出不应崩溃
	idx := selectTopK(nil, 10)
	if len(idx) != 0 {
		t.Errorf("空得分应返回空索引, 实际 %v", idx)
	}
}

func TestGatherRows(t *testing.T) {
	rows := [][]float32{
		{1, 2},
		{3, 4},
		{5, 6},
	}

	m := gatherRows(rows, []int{2, 0}, 2)
	if m.Rows != 2 || m.Cols != 2 {
		t.Fatalf("形状期望 (2,2), 实际 (%d,%d)", m.Rows, m.Cols)
	}
	if m.At(0, 0) != 5 || m.At(0, 1) != 6 {
		t.Errorf("第一行期望 [5 6], 实际 %v", m.Row(0))
	}
	if m.At(1, 0) != 1 || m.At(1, 1) != 2 {
		t.Errorf("第二行期望 [1 2], 实际 %v", m.Row(1))
	}
}

func TestGatherRowsEmpty(t *testing.T) {
	m := gatherRows(nil, nil, 128)
	if m.Rows != 0 {
		t.Errorf("空索引应产生空矩阵, 实际 %d 行", m.Rows)
	}
	if m.Cols != 128 {
		t.Errorf("空矩阵仍应保持列数 128, 实际 %d", m.Cols)
	}
}

func TestTensorRows(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	rows := tensorRows(data, 3, 2)

	if len(rows) != 3 {
		t.Fatalf("期望 3 行, 实际 %d", len(rows))
	}
	if rows[1][0] != 3 || rows[1][1] != 4 {
		t.Errorf("第二行期望 [3 4], 实际 %v", rows[1])
	}
}

func TestNewTensorShape(t *testing.T) {
	tensor := NewTensor(2, 5, 2, 3)
	if len(tensor.Data) != 60 {
		t.Errorf("张量数据长度期望 60, 实际 %d", len(tensor.Data))
	}
	if len(tensor.Shape) != 4 {
		t.Errorf("张量维度期望 4, 实际 %d", len(tensor.Shape))
	}
}
