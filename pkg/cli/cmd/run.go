package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LENAX/task-queue/pkg/cli/output"
	"github.com/LENAX/task-queue/pkg/core/executor"
	"github.com/LENAX/task-queue/pkg/core/scheduler"
	"github.com/LENAX/task-queue/pkg/core/task"
)

// 等待worker退出的上限
const shutdownTimeout = 30 * time.Second

var (
	runTasks int
	runFor   time.Duration
)

// runCmd run命令
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "运行任务队列",
	Long: `创建一个任务队列，加入演示任务并启动worker。
未配置定时投递时，全部任务完成后退出；配置了 schedules 时一直运行到 --for 到期或收到中断信号。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(runTasks)
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

		if err := runQueue(ctx, s, runFor); err != nil {
			output.Error(cmd.ErrOrStderr(), "运行队列失败: %v", err)
			return err
		}
		return s.report()
	},
}

func init() {
	runCmd.Flags().IntVarP(&runTasks, "tasks", "n", 0, "演示任务数量（覆盖配置）")
	runCmd.Flags().DurationVar(&runFor, "for", 0, "运行时长，0表示直到任务完成或收到中断信号")
}

// runQueue 运行队列直到空闲、超时或ctx结束
func runQueue(ctx context.Context, s *session, runFor time.Duration) error {
	cfg := s.cfg.TaskQueue

	q := executor.NewTaskQueue(executor.WithName(cfg.Queue.Name), executor.WithSink(s.sink))
	idle := make(chan struct{}, 1)
	q.AddListener(executor.QueueListenerFunc(func(e *executor.QueueEvent) {
		if e.Kind == executor.EventIdle {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	}))
	s.watchQueue(q)

	for i := 1; i <= cfg.Queue.TaskCount; i++ {
		if err := q.Add(s.newTask(fmt.Sprintf("task-%d", i))); err != nil {
			return err
		}
	}

	var feeder *scheduler.CronFeeder
	if len(cfg.Schedules) > 0 {
		feeder = scheduler.NewCronFeeder(q)
		for _, sc := range cfg.Schedules {
			title := sc.Title
			if err := feeder.Register(sc.Name, sc.Cron, func() task.Task { return s.newTask(title) }); err != nil {
				return err
			}
		}
	}

	if err := q.Start(); err != nil {
		return err
	}
	if feeder != nil {
		feeder.Start()
	}

	var deadline <-chan time.Time
	if runFor > 0 {
		timer := time.NewTimer(runFor)
		defer timer.Stop()
		deadline = timer.C
	}

	// 有定时投递时不以空闲作为结束条件
	waitIdle := idle
	if feeder != nil {
		waitIdle = nil
	}

	interrupted := false
	select {
	case <-waitIdle:
	case <-deadline:
	case <-ctx.Done():
		interrupted = true
	}

	if feeder != nil {
		feeder.Stop()
	}
	if interrupted {
		log.Printf("⚠️ [CLI] 收到中断信号，取消队列: %s", q.Name())
		q.Cancel()
		if t := q.RunningTask(); t != nil {
			t.Stop()
		}
	} else {
		q.Stop()
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return q.AwaitTermination(waitCtx)
}
