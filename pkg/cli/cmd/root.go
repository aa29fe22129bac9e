// Package cmd taskqueue 命令行入口
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/LENAX/task-queue/pkg/config"
)

var (
	// 全局变量
	configPath string
	outputJSON bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "taskqueue",
	Short: "Task Queue CLI - 单worker任务队列演示工具",
	Long: `Task Queue CLI 用于在本地运行任务队列和批处理列表。

支持的功能：
  - 按FIFO顺序运行演示任务并打印队列事件
  - 按Cron表达式定时投递任务
  - 顺序执行一批任务并在结束时汇总

使用示例：
  # 运行队列直到全部任务完成
  taskqueue run --config ./configs/taskqueue.yaml

  # 带定时投递运行30秒
  taskqueue run --for 30s

  # 顺序执行一批任务
  taskqueue batch --tasks 10`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/taskqueue.yaml", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "使用JSON格式输出")

	// 添加子命令
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig 加载配置，taskCount>0 时覆盖配置中的任务数
func loadConfig(taskCount int) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if taskCount > 0 {
		cfg.TaskQueue.Queue.TaskCount = taskCount
	}
	return cfg, nil
}
