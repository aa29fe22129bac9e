package task

// Snapshot 任务可观察状态的只读副本
type Snapshot struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Started        bool   `json:"started"`
	Done           bool   `json:"done"`
	DoneWithErrors bool   `json:"done_with_errors"`
	ErrorCode      int    `json:"error_code"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ErrorDetails   string `json:"error_details,omitempty"`
	Result         any    `json:"result,omitempty"`
}

// Capture 读取任务当前状态
// 在完成事件中调用时得到任务的最终状态
func Capture(t Task) Snapshot {
	if t == nil {
		return Snapshot{}
	}
	return Snapshot{
		ID:             t.ID(),
		Title:          t.Title(),
		Description:    t.Description(),
		Started:        t.IsStarted(),
		Done:           t.Done(),
		DoneWithErrors: t.DoneWithErrors(),
		ErrorCode:      t.ErrorCode(),
		ErrorMessage:   t.ErrorMessage(),
		ErrorDetails:   t.ErrorDetails(),
		Result:         t.ResultValue(),
	}
}

// Status 返回简短状态描述
func (s Snapshot) Status() string {
	switch {
	case !s.Started:
		return "pending"
	case !s.Done:
		return "running"
	case s.DoneWithErrors:
		return "failed"
	default:
		return "done"
	}
}
