// Package plan 按依赖关系确定批处理任务的执行顺序
package plan

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	"github.com/begmaroman/go-dag"

	"github.com/LENAX/task-queue/pkg/core/executor"
	"github.com/LENAX/task-queue/pkg/core/task"
)

var (
	// ErrUnknownStep 步骤未加入计划
	ErrUnknownStep = errors.New("步骤不存在")
	// ErrDuplicateStep 步骤重复加入
	ErrDuplicateStep = errors.New("步骤已存在")
)

// step DAG节点（实现 go-dag 的 Identifiable 接口）
type step struct {
	key   string
	index int
	task  task.Task
}

// ID 实现 Identifiable 接口
func (s *step) ID() string {
	return s.key
}

// Hash 实现 Hashable 接口，节点按 key 去重
func (s *step) Hash() (dag.VHash, error) {
	return sha256.Sum256([]byte(s.key)), nil
}

// Plan 带依赖关系的任务计划（对外导出）
// 生成的顺序满足所有依赖，互不依赖的步骤保持加入顺序
type Plan struct {
	graph *dag.DAG[*step]
	steps map[string]*step
}

// New 创建空计划
func New() *Plan {
	return &Plan{
		graph: dag.NewDAG[*step](),
		steps: make(map[string]*step),
	}
}

// Add 以 key 加入一个任务
func (p *Plan) Add(key string, t task.Task) error {
	if t == nil {
		return executor.ErrNilTask
	}
	if _, exists := p.steps[key]; exists {
		return fmt.Errorf("%s: %w", key, ErrDuplicateStep)
	}

	s := &step{key: key, index: len(p.steps), task: t}
	if _, err := p.graph.AddVertex(s); err != nil {
		return fmt.Errorf("添加步骤 %s 失败: %w", key, err)
	}
	p.steps[key] = s
	return nil
}

// Depend 声明 key 依赖 dependsOn，形成环时返回错误
func (p *Plan) Depend(key, dependsOn string) error {
	if _, ok := p.steps[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrUnknownStep)
	}
	if _, ok := p.steps[dependsOn]; !ok {
		return fmt.Errorf("%s: %w", dependsOn, ErrUnknownStep)
	}
	if isEdge, _ := p.graph.IsEdge(dependsOn, key); isEdge {
		return nil
	}
	if err := p.graph.AddEdge(dependsOn, key); err != nil {
		return fmt.Errorf("添加依赖 %s -> %s 失败: %w", dependsOn, key, err)
	}
	return nil
}

// Len 返回步骤数量
func (p *Plan) Len() int {
	return len(p.steps)
}

// Order 返回拓扑顺序的任务
func (p *Plan) Order() ([]task.Task, error) {
	remaining := make(map[string]int, len(p.steps)) // key -> 未完成的父节点数
	for key := range p.steps {
		parents, err := p.graph.GetParents(key)
		if err != nil {
			return nil, fmt.Errorf("读取步骤 %s 的依赖失败: %w", key, err)
		}
		remaining[key] = len(parents)
	}

	ready := make([]*step, 0, len(p.steps))
	for key := range p.graph.GetRoots() {
		ready = append(ready, p.steps[key])
	}

	ordered := make([]task.Task, 0, len(p.steps))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].index < ready[j].index })
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next.task)

		children, err := p.graph.GetChildren(next.key)
		if err != nil {
			return nil, fmt.Errorf("读取步骤 %s 的后继失败: %w", next.key, err)
		}
		for childKey := range children {
			remaining[childKey]--
			if remaining[childKey] == 0 {
				ready = append(ready, p.steps[childKey])
			}
		}
	}

	if len(ordered) != len(p.steps) {
		return nil, fmt.Errorf("计划存在无法满足的依赖: 已排序=%d, 总数=%d", len(ordered), len(p.steps))
	}
	return ordered, nil
}

// ToList 按拓扑顺序创建任务列表
func (p *Plan) ToList(opts ...executor.Option) (*executor.TaskList, error) {
	ordered, err := p.Order()
	if err != nil {
		return nil, err
	}
	return executor.NewTaskList(append(opts, executor.WithTasks(ordered...))...), nil
}
