// Package config 任务队列的YAML配置
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LENAX/task-queue/pkg/core/scheduler"
)

// Schedule 定时投递配置
type Schedule struct {
	Name  string `yaml:"name"`
	Cron  string `yaml:"cron"`
	Title string `yaml:"title"` // 生成任务的标题，为空时使用 Name
}

// Step 批处理步骤配置
type Step struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`
}

// Config 任务队列配置（对外导出）
type Config struct {
	TaskQueue struct {
		General struct {
			InstanceName string `yaml:"instance_name"`
			LogLevel     string `yaml:"log_level"`
		} `yaml:"general"`
		Dispatcher struct {
			Name string `yaml:"name"`
		} `yaml:"dispatcher"`
		Queue struct {
			Name         string        `yaml:"name"`
			TaskCount    int           `yaml:"task_count"`
			TaskDuration time.Duration `yaml:"task_duration"`
			FailEvery    int           `yaml:"fail_every"` // 每N个任务模拟一次失败，0表示不失败
		} `yaml:"queue"`
		EventBus struct {
			Enabled      bool  `yaml:"enabled"`
			OutputBuffer int64 `yaml:"output_buffer"`
			Trace        bool  `yaml:"trace"`
		} `yaml:"eventbus"`
		Cache struct {
			Enabled       bool          `yaml:"enabled"`
			DefaultTTL    time.Duration `yaml:"default_ttl"`
			CleanInterval time.Duration `yaml:"clean_interval"`
		} `yaml:"cache"`
		Batch struct {
			Steps []Step `yaml:"steps"` // 为空时按 task_count 生成独立任务
		} `yaml:"batch"`
		Schedules []Schedule `yaml:"schedules"`
	} `yaml:"task-queue"`
}

// Default 返回填充默认值的配置
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load 加载配置文件，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults 应用默认值
func (c *Config) ApplyDefaults() {
	tq := &c.TaskQueue

	// General默认值
	if tq.General.InstanceName == "" {
		tq.General.InstanceName = "task-queue"
	}
	if tq.General.LogLevel == "" {
		tq.General.LogLevel = "info"
	}

	if tq.Dispatcher.Name == "" {
		tq.Dispatcher.Name = "notifications"
	}

	// Queue默认值
	if tq.Queue.TaskCount <= 0 {
		tq.Queue.TaskCount = 5
	}
	if tq.Queue.TaskDuration <= 0 {
		tq.Queue.TaskDuration = 200 * time.Millisecond
	}

	// EventBus默认值
	if tq.EventBus.OutputBuffer <= 0 {
		tq.EventBus.OutputBuffer = 64
	}

	// Cache默认值
	if tq.Cache.DefaultTTL <= 0 {
		tq.Cache.DefaultTTL = 10 * time.Minute
	}
	if tq.Cache.CleanInterval <= 0 {
		tq.Cache.CleanInterval = 1 * time.Minute
	}

	for i := range tq.Schedules {
		if tq.Schedules[i].Title == "" {
			tq.Schedules[i].Title = tq.Schedules[i].Name
		}
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	tq := &c.TaskQueue

	switch tq.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("无效的log_level: %s", tq.General.LogLevel)
	}
	if tq.Queue.FailEvery < 0 {
		return fmt.Errorf("fail_every不能为负数: %d", tq.Queue.FailEvery)
	}

	steps := make(map[string]bool, len(tq.Batch.Steps))
	for i, st := range tq.Batch.Steps {
		if st.Name == "" {
			return fmt.Errorf("batch.steps[%d]: 名称为空", i)
		}
		if steps[st.Name] {
			return fmt.Errorf("batch.steps[%d]: 名称重复: %s", i, st.Name)
		}
		steps[st.Name] = true
	}
	for _, st := range tq.Batch.Steps {
		for _, dep := range st.DependsOn {
			if !steps[dep] {
				return fmt.Errorf("batch.steps %s: 依赖的步骤不存在: %s", st.Name, dep)
			}
		}
	}

	seen := make(map[string]bool, len(tq.Schedules))
	for i, s := range tq.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedules[%d]: 名称为空", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("schedules[%d]: 名称重复: %s", i, s.Name)
		}
		seen[s.Name] = true
		if err := scheduler.ParseExpr(s.Cron); err != nil {
			return fmt.Errorf("schedules[%d] %s: %w", i, s.Name, err)
		}
	}
	return nil
}

// IsDebug 是否开启debug日志
func (c *Config) IsDebug() bool {
	return c.TaskQueue.General.LogLevel == "debug"
}

// GetInstanceName 获取实例名称
func (c *Config) GetInstanceName() string {
	return c.TaskQueue.General.InstanceName
}

// GetQueueName 获取队列名称，为空时由队列自动命名
func (c *Config) GetQueueName() string {
	return c.TaskQueue.Queue.Name
}
