package features

// ORBConfig ORB 提取参数（与 OpenCV 参数一一对应）
type ORBConfig struct {
	ScaleFactor   float32 `json:"scale_factor"`   // 金字塔缩放因子
	NLevels       int     `json:"nlevels"`        // 金字塔层数
	EdgeThreshold int     `json:"edge_threshold"` // 边缘阈值
	FirstLevel    int     `json:"first_level"`    // 起始层
	WTAK          int     `json:"wta_k"`          // BRIEF 比较点数
	ScoreType     string  `json:"score_type"`     // 评分类型 (harris / fast)
	PatchSize     int     `json:"patch_size"`     // 描述子采样块大小
	FastThreshold int     `json:"fast_threshold"` // FAST 角点阈值
}

// DefaultORBConfig 默认 ORB 参数（OpenCV 默认值）
func DefaultORBConfig() ORBConfig {
	return ORBConfig{
		ScaleFactor:   1.2,
		NLevels:       8,
		EdgeThreshold: 31,
		FirstLevel:    0,
		WTAK:          2,
		ScoreType:     "harris",
		PatchSize:     31,
		FastThreshold: 20,
	}
}

// ALIKEConfig ALIKE 提取参数
type ALIKEConfig struct {
	Model    string  `json:"model"`     // 模型名称 (alike-t / alike-s / alike-n / alike-l)
	ModelDir string  `json:"model_dir"` // 模型文件目录
	Device   string  `json:"device"`    // 推理设备
	TopK     int     `json:"top_k"`     // 取得分最高的 K 个关键点，-1 表示不限
	ScoresTh float32 `json:"scores_th"` // 关键点得分阈值
	NLimit   int     `json:"n_limit"`   // 关键点数量上限，0 表示不限
	Subpixel bool    `json:"subpixel"`  // 是否亚像素精化（由模型内部完成）
}

// DefaultALIKEConfig 默认 ALIKE 参数
func DefaultALIKEConfig() ALIKEConfig {
	return ALIKEConfig{
		Model:    "alike-t",
		Device:   "cpu",
		TopK:     -1,
		ScoresTh: 0.2,
		NLimit:   5000,
		Subpixel: true,
	}
}

// DeepConfig 通用深度提取器参数 (DISK / SuperPoint / KeyNetAffNetHardNet)
type DeepConfig struct {
	ModelPath string `json:"model_path"` // ONNX 模型文件路径
	Device    string `json:"device"`     // 推理设备
}

// Config 全部后端的提取配置
type Config struct {
	// OnnxLibPath ONNX Runtime 动态库路径，空则使用默认查找
	OnnxLibPath string      `json:"onnx_lib_path"`
	ORB         ORBConfig   `json:"orb"`
	ALIKE       ALIKEConfig `json:"alike"`
	DISK        DeepConfig  `json:"disk"`
	SuperPoint  DeepConfig  `json:"superpoint"`
	KeyNet      DeepConfig  `json:"keynet"`
}

// DefaultConfig 默认提取配置
func DefaultConfig() *Config {
	return &Config{
		ORB:        DefaultORBConfig(),
		ALIKE:      DefaultALIKEConfig(),
		DISK:       DeepConfig{ModelPath: "models/disk-depth.onnx", Device: "cpu"},
		SuperPoint: DeepConfig{ModelPath: "models/superpoint.onnx", Device: "cpu"},
		KeyNet:     DeepConfig{ModelPath: "models/keynet_affnet_hardnet.onnx", Device: "cpu"},
	}
}

// Option 提取器可选配置
type Option func(*extractOptions)

type extractOptions struct {
	cacheCapacity int
}

// WithCache 启用有界特征缓存
// capacity 为缓存的图像数量上限，重复提取同名图像会覆盖旧条目
func WithCache(capacity int) Option {
	return func(o *extractOptions) {
		o.cacheCapacity = capacity
	}
}
