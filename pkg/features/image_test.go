package features

import (
	"image"
	"image/color"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func TestImageToCHW(t *testing.T) {
	// 2x2 图像，每个像素颜色不同
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	img.Set(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	data, h, w := imageToCHW(img, 0)

	if h != 2 || w != 2 {
		t.Fatalf("尺寸期望 2x2, 实际 %dx%d", h, w)
	}
	if len(data) != 3*2*2 {
		t.Fatalf("数据长度期望 12, 实际 %d", len(data))
	}

	// CHW 布局: R 平面在前
	if data[0] != 1 || data[1] != 0 {
		t.Errorf("R 平面不正确: %v", data[:4])
	}
	if data[4] != 0 || data[5] != 1 {
		t.Errorf("G 平面不正确: %v", data[4:8])
	}
	if data[8] != 0 || data[11] != 1 {
		t.Errorf("B 平面不正确: %v", data[8:12])
	}
}

func TestImageToCHWMaxDim(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))

	_, h, w := imageToCHW(img, 100)

	if w != 100 {
		t.Errorf("最长边应缩放到 100, 实际 %d", w)
	}
	if h != 50 {
		t.Errorf("短边应等比缩放到 50, 实际 %d", h)
	}
}

func TestToRGBAPassthrough(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if toRGBA(img) != img {
		t.Error("RGBA 图像应直接返回")
	}

	grayImg := image.NewGray(image.Rect(0, 0, 4, 4))
	rgba := toRGBA(grayImg)
	if rgba.Bounds().Dx() != 4 || rgba.Bounds().Dy() != 4 {
		t.Error("转换后尺寸应保持不变")
	}
}

func TestPadToMultiple(t *testing.T) {
	mat := gocv.Zeros(30, 45, gocv.MatTypeCV8UC3)
	defer mat.Close()

	padded := padToMultiple(mat, 16)
	defer padded.Close()

	if padded.Rows() != 32 || padded.Cols() != 48 {
		t.Errorf("填充后尺寸期望 32x48, 实际 %dx%d", padded.Rows(), padded.Cols())
	}
}

func TestPadToMultipleAligned(t *testing.T) {
	mat := gocv.Zeros(32, 64, gocv.MatTypeCV8UC3)
	defer mat.Close()

	padded := padToMultiple(mat, 16)
	defer padded.Close()

	if padded.Rows() != 32 || padded.Cols() != 64 {
		t.Errorf("已对齐的图像不应填充, 实际 %dx%d", padded.Rows(), padded.Cols())
	}
}

func TestMatToGrayTensor(t *testing.T) {
	mat := gocv.Zeros(8, 10, gocv.MatTypeCV8U)
	defer mat.Close()

	data, h, w, err := matToGrayTensor(mat)
	if err != nil {
		t.Fatalf("转换失败: %v", err)
	}
	if h != 8 || w != 10 {
		t.Errorf("尺寸期望 8x10, 实际 %dx%d", h, w)
	}
	if len(data) != 80 {
		t.Errorf("数据长度期望 80, 实际 %d", len(data))
	}
	for _, v := range data {
		if v != 0 {
			t.Fatalf("零图像的张量值应为 0, 实际 %v", v)
		}
	}
}

func TestMatToCHWRange(t *testing.T) {
	mat := gocv.Zeros(6, 6, gocv.MatTypeCV8UC3)
	defer mat.Close()
	gocv.Rectangle(&mat, image.Rect(1, 1, 5, 5), color.RGBA{R: 255, G: 128, B: 64, A: 255}, -1)

	data, h, w, err := matToCHW(mat)
	if err != nil {
		t.Fatalf("转换失败: %v", err)
	}
	if len(data) != 3*h*w {
		t.Fatalf("数据长度期望 %d, 实际 %d", 3*h*w, len(data))
	}
	for _, v := range data {
		if v < 0 || v > 1 || math.IsNaN(float64(v)) {
			t.Fatalf("张量值 %v 超出 [0,1]", v)
		}
	}
}

func TestReadImageMissing(t *testing.T) {
	if _, err := ReadImage("testdata/no_such_file.png"); err == nil {
		t.Error("不存在的文件应报错")
	}
	if _, err := ReadImageGray("testdata/no_such_file.png"); err == nil {
		t.Error("不存在的文件应报错")
	}
}
