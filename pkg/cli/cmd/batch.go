package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LENAX/task-queue/pkg/cli/output"
	"github.com/LENAX/task-queue/pkg/core/executor"
	"github.com/LENAX/task-queue/pkg/core/plan"
)

var batchTasks int

// batchCmd batch命令
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "顺序执行一批任务",
	Long: `创建任务列表并顺序执行全部演示任务，完成后输出汇总。批处理开始后不能取消。
配置了 batch.steps 时按依赖关系排序后执行。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(batchTasks)
		if err != nil {
			output.Error(cmd.ErrOrStderr(), "加载配置失败: %v", err)
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := newSession(cfg, cmd.OutOrStdout(), outputJSON)
		if err != nil {
			return err
		}
		defer s.close()

		if err := runBatch(ctx, s); err != nil {
			output.Error(cmd.ErrOrStderr(), "批处理失败: %v", err)
			return err
		}
		return s.report()
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchTasks, "tasks", "n", 0, "演示任务数量（覆盖配置）")
}

// runBatch 执行批处理并等待完成事件投递
func runBatch(ctx context.Context, s *session) error {
	l, err := buildList(s)
	if err != nil {
		return err
	}
	s.watchList(l)

	if err := l.Process(); err != nil {
		return err
	}
	return l.AwaitTermination(ctx)
}

// buildList 按 batch.steps 的依赖顺序或 task_count 创建任务列表
func buildList(s *session) (*executor.TaskList, error) {
	cfg := s.cfg.TaskQueue
	opts := []executor.Option{executor.WithName(cfg.Queue.Name), executor.WithSink(s.sink)}

	if len(cfg.Batch.Steps) == 0 {
		l := executor.NewTaskList(opts...)
		for i := 1; i <= cfg.Queue.TaskCount; i++ {
			if err := l.Add(s.newTask(fmt.Sprintf("item-%d", i))); err != nil {
				return nil, err
			}
		}
		return l, nil
	}

	p := plan.New()
	for _, st := range cfg.Batch.Steps {
		if err := p.Add(st.Name, s.newTask(st.Name)); err != nil {
			return nil, err
		}
	}
	for _, st := range cfg.Batch.Steps {
		for _, dep := range st.DependsOn {
			if err := p.Depend(st.Name, dep); err != nil {
				return nil, err
			}
		}
	}
	return p.ToList(opts...)
}
