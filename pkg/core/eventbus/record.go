// Package eventbus 把任务、队列和批处理列表的事件以JSON消息发布到Watermill总线
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/LENAX/task-queue/pkg/core/task"
)

// 发布主题
const (
	TopicQueueEvents = "taskqueue.events" // 队列状态事件
	TopicTaskEvents  = "task.events"      // 任务完成事件
	TopicListEvents  = "tasklist.events"  // 批处理完成事件
)

// 列表和任务事件的类型
const (
	KindTaskPerformed = "task.performed"
	KindJobDone       = "list.job_done"
)

// 消息元数据键
const (
	MetadataKind   = "kind"
	MetadataSource = "source"
)

// Record 总线上的事件记录
type Record struct {
	ID        string            `json:"id"`                 // 事件ID（UUID）
	Kind      string            `json:"kind"`               // 事件类型
	Source    string            `json:"source"`             // 来源队列/列表名称，任务事件为任务标题
	Task      *task.Snapshot    `json:"task,omitempty"`     // 关联任务状态
	Timestamp time.Time         `json:"timestamp"`          // 事件时间
	Metadata  map[string]string `json:"metadata,omitempty"` // 元数据
}

// NewRecord 创建事件记录
func NewRecord(kind, source string, t task.Task, ts time.Time) *Record {
	r := &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		Timestamp: ts,
	}
	if t != nil {
		snap := task.Capture(t)
		r.Task = &snap
	}
	return r
}

// WithMetadata 添加元数据
func (r *Record) WithMetadata(key, value string) *Record {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	return r
}

// toMessage 编码为Watermill消息
func (r *Record) toMessage() (*message.Message, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := message.NewMessage(r.ID, payload)
	msg.Metadata.Set(MetadataKind, r.Kind)
	msg.Metadata.Set(MetadataSource, r.Source)
	return msg, nil
}

// Decode 从Watermill消息解码事件记录
func Decode(msg *message.Message) (*Record, error) {
	var r Record
	if err := json.Unmarshal(msg.Payload, &r); err != nil {
		return nil, fmt.Errorf("解析事件失败: MessageID=%s, Error=%w", msg.UUID, err)
	}
	return &r, nil
}
