package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ljjTYJR/deep-image-matching/internal/logger"
	"github.com/ljjTYJR/deep-image-matching/pkg/config"
	"github.com/ljjTYJR/deep-image-matching/pkg/features"
	"github.com/ljjTYJR/deep-image-matching/pkg/service"
)

// 版本信息 (可通过 ldflags 注入)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// 命令行参数
	var (
		method      = flag.String("method", "", "提取方法 (ORB/ALIKE/DISK/SuperPoint/KeyNetAffNetHardNet)")
		nFeatures   = flag.Int("n", 0, "目标关键点数量")
		outDir      = flag.String("out", "features", "输出目录")
		configDir   = flag.String("config-dir", "", "配置目录 (默认 ~/.deep-image-matching)")
		logLevel    = flag.String("log-level", "", "日志级别 (DEBUG/INFO/WARN/ERROR)")
		serve       = flag.Bool("serve", false, "以服务模式运行")
		addr        = flag.String("addr", "localhost:8089", "服务监听地址")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	if *showHelp {
		printHelp()
		return
	}

	// 加载配置
	manager := config.GetDefaultManager()
	if *configDir != "" {
		manager = config.NewManagerWithDir(*configDir)
	}
	cfg, err := manager.Load()
	if err != nil {
		fmt.Printf("[WARN] 加载配置失败: %v\n", err)
	}

	// 命令行参数优先级高于配置文件
	if *method != "" {
		cfg.Method = *method
	}
	if *nFeatures > 0 {
		cfg.NFeatures = *nFeatures
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger.Default().SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		if err := logger.Default().SetFile(cfg.LogFile); err != nil {
			logger.Warn("打开日志文件失败: %v", err)
		}
	}

	if *serve {
		runServer(cfg, *addr)
		return
	}

	if flag.NArg() != 2 {
		fmt.Println("错误: 需要恰好 2 张图像")
		printHelp()
		os.Exit(1)
	}

	if err := runPair(cfg, flag.Arg(0), flag.Arg(1), *outDir); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// runPair 对一对图像执行一次提取并写出结果
func runPair(cfg *config.ExtractionConfig, im0, im1, outDir string) error {
	m, err := features.ParseMethod(cfg.Method)
	if err != nil {
		return err
	}

	extractor, err := features.NewLocalFeatureExtractor(m, cfg.NFeatures, &cfg.Features)
	if err != nil {
		return err
	}
	defer extractor.Close()

	start := time.Now()
	keypoints, descriptors, lafs, err := extractor.Run(im0, im1)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	for i, path := range []string{im0, im1} {
		stem := features.ImageStem(path)
		result := features.Result{
			Keypoints:   keypoints[i],
			Descriptors: descriptors[i],
			LAF:         lafs[i],
		}
		outPath := filepath.Join(outDir, stem+".json")
		if err := writeResult(outPath, &result); err != nil {
			return err
		}
		logger.LogExtraction(cfg.Method, stem, result.Keypoints.Rows,
			float64(time.Since(start).Microseconds())/1000.0)
	}

	logger.Info("提取完成, 结果已写入 %s", outDir)
	return nil
}

// writeResult 将提取结果写为 JSON 文件
func writeResult(path string, result *features.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入结果失败: %w", err)
	}
	return nil
}

// runServer 以服务模式运行，直到收到退出信号
func runServer(cfg *config.ExtractionConfig, addr string) {
	srv := service.NewServer(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("收到信号 %v, 正在关闭...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("关闭服务失败: %v", err)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("服务异常退出: %v", err)
			os.Exit(1)
		}
	}
}

func printVersion() {
	fmt.Printf("dimatch %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git 提交: %s\n", GitCommit)
}

func printHelp() {
	fmt.Println("用法: dimatch [选项] <图像0> <图像1>")
	fmt.Println()
	fmt.Println("对一对图像提取局部特征 (关键点/描述子/LAF)。")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  dimatch -method ORB -n 1024 im0.png im1.png")
	fmt.Println("  dimatch -serve -addr localhost:8089")
}
