package components

import (
	"fmt"
	"time"
)

// Status values shared by the status bar and status cards.
const (
	StatusIdle    = "idle"
	StatusWorking = "working"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
	StatusWarning = "warning"
	StatusInfo    = "info"
	StatusPending = "pending"
)

// Fixed IDs for the singleton chat chrome components.
const (
	StatusBarID   = "vanna-status-bar"
	TaskTrackerID = "vanna-task-tracker"
	ChatInputID   = "vanna-chat-input"
)

// RichText is a block of plain or markdown text.
type RichText struct {
	Base     `json:"-"`
	Content  string `json:"content"`
	Markdown bool   `json:"markdown"`
}

// NewText creates a RichText component.
func NewText(content string, markdown bool) *RichText {
	return &RichText{Base: newBase("text"), Content: content, Markdown: markdown}
}

// StatusCard reports the progress of one unit of work, usually a tool call.
type StatusCard struct {
	Base        `json:"-"`
	Title       string         `json:"title"`
	Status      string         `json:"status"`
	Description string         `json:"description,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewStatusCard creates a StatusCard.
func NewStatusCard(title, status, description, icon string) *StatusCard {
	return &StatusCard{Base: newBase("status_card"), Title: title, Status: status, Description: description, Icon: icon}
}

// WithStatus returns an update of the card carrying a new status.
func (s *StatusCard) WithStatus(status, description string) *StatusCard {
	next := *s
	next.Base.Lifecycle = LifecycleUpdate
	next.Base.Timestamp = time.Now().UTC()
	next.Status = status
	if description != "" {
		next.Description = description
	}
	return &next
}

// StatusBarUpdate updates the single status bar under the chat.
type StatusBarUpdate struct {
	Base    `json:"-"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// NewStatusBar creates a status bar update.
func NewStatusBar(status, message, detail string) *StatusBarUpdate {
	b := fixedBase(StatusBarID, "status_bar_update")
	b.Lifecycle = LifecycleUpdate
	return &StatusBarUpdate{Base: b, Status: status, Message: message, Detail: detail}
}

// Task is one entry of the task tracker.
type Task struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Progress    *float64       `json:"progress,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewTask creates a task with a generated ID.
func NewTask(title, description, status string) Task {
	return Task{
		ID:          newBase("").ID,
		Title:       title,
		Description: description,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
}

// Task statuses beyond the shared ones above.
const (
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
)

// Task tracker operations.
const (
	TaskAdd    = "add_task"
	TaskUpdate = "update_task"
	TaskRemove = "remove_task"
	TaskClear  = "clear_tasks"
)

// TaskTrackerUpdate mutates the task tracker.
type TaskTrackerUpdate struct {
	Base      `json:"-"`
	Operation string   `json:"operation"`
	Task      *Task    `json:"task,omitempty"`
	TaskID    string   `json:"task_id,omitempty"`
	Status    string   `json:"status,omitempty"`
	Progress  *float64 `json:"progress,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

func newTaskTracker(op string) *TaskTrackerUpdate {
	b := fixedBase(TaskTrackerID, "task_tracker_update")
	b.Lifecycle = LifecycleUpdate
	return &TaskTrackerUpdate{Base: b, Operation: op}
}

// AddTask adds task to the tracker.
func AddTask(task Task) *TaskTrackerUpdate {
	u := newTaskTracker(TaskAdd)
	u.Task = &task
	return u
}

// UpdateTask changes the status of an existing task.
func UpdateTask(taskID, status, detail string) *TaskTrackerUpdate {
	u := newTaskTracker(TaskUpdate)
	u.TaskID = taskID
	u.Status = status
	u.Detail = detail
	return u
}

// RemoveTask drops a task from the tracker.
func RemoveTask(taskID string) *TaskTrackerUpdate {
	u := newTaskTracker(TaskRemove)
	u.TaskID = taskID
	return u
}

// ClearTasks empties the tracker.
func ClearTasks() *TaskTrackerUpdate {
	return newTaskTracker(TaskClear)
}

// ChatInputUpdate reconfigures the chat input box.
type ChatInputUpdate struct {
	Base        `json:"-"`
	Placeholder string `json:"placeholder,omitempty"`
	Disabled    bool   `json:"disabled"`
	Value       string `json:"value,omitempty"`
	Focus       bool   `json:"focus,omitempty"`
}

// NewChatInput creates a chat input update.
func NewChatInput(placeholder string, disabled bool) *ChatInputUpdate {
	b := fixedBase(ChatInputID, "chat_input_update")
	b.Lifecycle = LifecycleUpdate
	return &ChatInputUpdate{Base: b, Placeholder: placeholder, Disabled: disabled}
}

// DataFrame is a tabular result.
type DataFrame struct {
	Base        `json:"-"`
	Title       string           `json:"title,omitempty"`
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
	RowCount    int              `json:"row_count"`
	ColumnCount int              `json:"column_count"`
}

// NewDataFrame creates a DataFrame from column names and row maps.
func NewDataFrame(title string, columns []string, rows []map[string]any) *DataFrame {
	if rows == nil {
		rows = []map[string]any{}
	}
	if columns == nil {
		columns = []string{}
	}
	return &DataFrame{
		Base:        newBase("dataframe"),
		Title:       title,
		Columns:     columns,
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: len(columns),
	}
}

// Card is a titled block of text, used for file contents and command output.
type Card struct {
	Base     `json:"-"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Status   string `json:"status,omitempty"`
	Markdown bool   `json:"markdown"`
}

// NewCard creates a Card.
func NewCard(title, content, status string, markdown bool) *Card {
	return &Card{Base: newBase("card"), Title: title, Content: content, Status: status, Markdown: markdown}
}

// Notification is a transient toast.
type Notification struct {
	Base    `json:"-"`
	Message string `json:"message"`
	Level   string `json:"level"`
	Title   string `json:"title,omitempty"`
}

// NewNotification creates a Notification.
func NewNotification(level, title, message string) *Notification {
	return &Notification{Base: newBase("notification"), Level: level, Title: title, Message: message}
}

// Button is one clickable action. Action is sent back as a chat message.
type Button struct {
	Label   string `json:"label"`
	Action  string `json:"action"`
	Variant string `json:"variant,omitempty"`
}

// ButtonGroup is a row or column of buttons.
type ButtonGroup struct {
	Base        `json:"-"`
	Buttons     []Button `json:"buttons"`
	Orientation string   `json:"orientation"`
}

// NewButtonGroup creates a ButtonGroup. Up to three buttons lay out
// horizontally.
func NewButtonGroup(buttons ...Button) *ButtonGroup {
	orientation := "horizontal"
	if len(buttons) > 3 {
		orientation = "vertical"
	}
	g := &ButtonGroup{Base: newBase("button_group"), Buttons: buttons, Orientation: orientation}
	g.Interactive = true
	return g
}

// String implements fmt.Stringer for log output.
func (t Task) String() string {
	return fmt.Sprintf("%s[%s]", t.Title, t.Status)
}
