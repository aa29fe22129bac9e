package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "创建测试配置文件失败")
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
task-queue:
  general:
    instance_name: "test-queue"
    log_level: "debug"
  dispatcher:
    name: "events"
  queue:
    name: "ingest"
    task_count: 3
    task_duration: "50ms"
    fail_every: 2
  eventbus:
    enabled: true
    output_buffer: 8
  cache:
    enabled: true
    default_ttl: "2h"
    clean_interval: "1h"
  batch:
    steps:
      - name: extract
      - name: load
        depends_on: [extract]
  schedules:
    - name: heartbeat
      cron: "*/10 * * * * *"
    - name: nightly
      cron: "0 0 2 * * *"
      title: "夜间汇总"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	tq := cfg.TaskQueue
	assert.Equal(t, "test-queue", cfg.GetInstanceName())
	assert.True(t, cfg.IsDebug())
	assert.Equal(t, "events", tq.Dispatcher.Name)
	assert.Equal(t, "ingest", cfg.GetQueueName())
	assert.Equal(t, 3, tq.Queue.TaskCount)
	assert.Equal(t, 50*time.Millisecond, tq.Queue.TaskDuration)
	assert.Equal(t, 2, tq.Queue.FailEvery)
	assert.True(t, tq.EventBus.Enabled)
	assert.Equal(t, int64(8), tq.EventBus.OutputBuffer)
	assert.Equal(t, 2*time.Hour, tq.Cache.DefaultTTL)
	require.Len(t, tq.Batch.Steps, 2)
	assert.Equal(t, []string{"extract"}, tq.Batch.Steps[1].DependsOn)
	require.Len(t, tq.Schedules, 2)
	assert.Equal(t, "heartbeat", tq.Schedules[0].Title, "标题默认使用名称")
	assert.Equal(t, "夜间汇总", tq.Schedules[1].Title)
}

func TestLoad_WithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "task-queue:\n  queue:\n    task_count: 7\n"))
	require.NoError(t, err)

	tq := cfg.TaskQueue
	assert.Equal(t, "task-queue", tq.General.InstanceName)
	assert.Equal(t, "info", tq.General.LogLevel)
	assert.Equal(t, 7, tq.Queue.TaskCount)
	assert.Equal(t, 200*time.Millisecond, tq.Queue.TaskDuration)
	assert.Equal(t, 10*time.Minute, tq.Cache.DefaultTTL)
	assert.Empty(t, cfg.GetQueueName())
	assert.False(t, cfg.IsDebug())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "task-queue: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "默认配置", mutate: func(c *Config) {}},
		{name: "无效日志级别", mutate: func(c *Config) { c.TaskQueue.General.LogLevel = "verbose" }, wantErr: true},
		{name: "负数fail_every", mutate: func(c *Config) { c.TaskQueue.Queue.FailEvery = -1 }, wantErr: true},
		{name: "无效Cron", mutate: func(c *Config) {
			c.TaskQueue.Schedules = []Schedule{{Name: "x", Cron: "every day"}}
		}, wantErr: true},
		{name: "名称重复", mutate: func(c *Config) {
			c.TaskQueue.Schedules = []Schedule{{Name: "x", Cron: "@every 1m"}, {Name: "x", Cron: "@every 2m"}}
		}, wantErr: true},
		{name: "名称为空", mutate: func(c *Config) {
			c.TaskQueue.Schedules = []Schedule{{Cron: "@every 1m"}}
		}, wantErr: true},
		{name: "步骤依赖不存在", mutate: func(c *Config) {
			c.TaskQueue.Batch.Steps = []Step{{Name: "load", DependsOn: []string{"extract"}}}
		}, wantErr: true},
		{name: "步骤名称重复", mutate: func(c *Config) {
			c.TaskQueue.Batch.Steps = []Step{{Name: "a"}, {Name: "a"}}
		}, wantErr: true},
		{name: "有效步骤", mutate: func(c *Config) {
			c.TaskQueue.Batch.Steps = []Step{{Name: "b", DependsOn: []string{"a"}}, {Name: "a"}}
		}},
		{name: "有效定时任务", mutate: func(c *Config) {
			c.TaskQueue.Schedules = []Schedule{{Name: "x", Cron: "0 */5 * * * *"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
