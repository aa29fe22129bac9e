package task

import "context"

// context key类型，用于类型安全的context.Value访问
type contextKey string

const (
	// TaskIDKey 任务ID在context中的key
	TaskIDKey contextKey = "task.id"
)

// WithTaskID 将任务ID添加到context中（对外导出）
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TaskIDKey, id)
}

// IDFromContext 从context中获取任务ID（对外导出）
// 任务主体通过 Base.Context() 拿到的context总是带有所属任务ID
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(TaskIDKey).(string)
	return id, ok
}
