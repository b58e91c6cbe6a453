package features

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gocv.io/x/gocv"
	xdraw "golang.org/x/image/draw"
)

// 填充用黑色边界
var borderBlack = color.RGBA{}

// ReadImage 读取彩色图像文件
func ReadImage(filename string) (gocv.Mat, error) {
	mat := gocv.IMRead(filename, gocv.IMReadColor)
	if mat.Empty() {
		return mat, fmt.Errorf("无法读取图像: %s", filename)
	}
	return mat, nil
}

// ReadImageGray 读取灰度图像
func ReadImageGray(filename string) (gocv.Mat, error) {
	mat := gocv.IMRead(filename, gocv.IMReadGrayScale)
	if mat.Empty() {
		return mat, fmt.Errorf("无法读取图像: %s", filename)
	}
	return mat, nil
}

// loadImageFile 解码图像文件为 image.Image (纯 Go 路径)
func loadImageFile(filename string) (image.Image, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("无法打开图像: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("解码图像失败 %s: %w", filename, err)
	}
	return img, nil
}

// toRGBA 将任意 image.Image 转为 RGBA
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Copy(rgba, image.Point{}, img, bounds, xdraw.Src, nil)
	return rgba
}

// resizeRGBA 缩放 RGBA 图像到指定尺寸
func resizeRGBA(src *image.RGBA, width, height int) *image.RGBA {
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// imageToCHW 将 image.Image 转为 [1,3,H,W] 的 RGB float32 张量，值域 [0,1]
// maxDim > 0 时按最长边缩放到不超过 maxDim
func imageToCHW(img image.Image, maxDim int) ([]float32, int, int) {
	rgba := toRGBA(img)
	w := rgba.Bounds().Dx()
	h := rgba.Bounds().Dy()

	if maxDim > 0 && (w > maxDim || h > maxDim) {
		scale := float64(maxDim) / float64(w)
		if h > w {
			scale = float64(maxDim) / float64(h)
		}
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
		rgba = resizeRGBA(rgba, w, h)
	}

	data := make([]float32, 3*h*w)
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := rgba.PixOffset(x, y)
			data[0*plane+y*w+x] = float32(rgba.Pix[i+0]) / 255.0
			data[1*plane+y*w+x] = float32(rgba.Pix[i+1]) / 255.0
			data[2*plane+y*w+x] = float32(rgba.Pix[i+2]) / 255.0
		}
	}
	return data, h, w
}

// matToCHW 将 BGR Mat 转为 [1,3,H,W] 的 RGB float32 张量，值域 [0,1]
func matToCHW(mat gocv.Mat) ([]float32, int, int, error) {
	if mat.Empty() {
		return nil, 0, 0, fmt.Errorf("图像为空")
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB)

	h := rgb.Rows()
	w := rgb.Cols()
	raw := rgb.ToBytes() // HWC, uint8

	data := make([]float32, 3*h*w)
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := (y*w + x) * 3
			data[0*plane+y*w+x] = float32(raw[base+0]) / 255.0
			data[1*plane+y*w+x] = float32(raw[base+1]) / 255.0
			data[2*plane+y*w+x] = float32(raw[base+2]) / 255.0
		}
	}
	return data, h, w, nil
}

// matToGrayTensor 将 Mat 转为 [1,1,H,W] 的灰度 float32 张量，值域 [0,1]
func matToGrayTensor(mat gocv.Mat) ([]float32, int, int, error) {
	if mat.Empty() {
		return nil, 0, 0, fmt.Errorf("图像为空")
	}

	gray := mat
	owned := false
	if mat.Channels() != 1 {
		gray = gocv.NewMat()
		owned = true
		gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	}
	if owned {
		defer gray.Close()
	}

	h := gray.Rows()
	w := gray.Cols()
	raw := gray.ToBytes()

	data := make([]float32, h*w)
	for i, v := range raw {
		data[i] = float32(v) / 255.0
	}
	return data, h, w, nil
}

// padToMultiple 将图像用零填充到 stride 的整数倍（右侧和底部）
// 返回填充后的新 Mat，调用方负责 Close
func padToMultiple(mat gocv.Mat, stride int) gocv.Mat {
	h := mat.Rows()
	w := mat.Cols()
	padH := (stride - h%stride) % stride
	padW := (stride - w%stride) % stride
	if padH == 0 && padW == 0 {
		return mat.Clone()
	}

	dst := gocv.NewMat()
	gocv.CopyMakeBorder(mat, &dst, 0, padH, 0, padW, gocv.BorderConstant, borderBlack)
	return dst
}
