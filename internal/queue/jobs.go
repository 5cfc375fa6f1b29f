package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gestionqr/gestionqr/internal/model"
)

const (
	// LabelRenderTask is scheduled when a writer asks for a printable QR label.
	LabelRenderTask = "label:render"
	// LabelQueue is the asynq queue label tasks go to.
	LabelQueue = "default"
	// LabelRetention keeps finished tasks, and the label key they produced,
	// queryable by task id.
	LabelRetention = 7 * 24 * time.Hour
)

// ErrTaskNotFound is returned for unknown or expired task ids.
var ErrTaskNotFound = errors.New("label task not found")

// LabelStatus is what the worker did with a label task. Key is the storage
// key of the rendered PNG once State is "completed".
type LabelStatus struct {
	TaskID string `json:"task_id"`
	State  string `json:"state"`
	Key    string `json:"key,omitempty"`
	Error  string `json:"error,omitempty"`
}

// LabelPayload is serialized into the task payload so the worker knows which
// record to label and which origin the request came from.
type LabelPayload struct {
	Tipo   model.Tipo `json:"tipo"`
	ID     string     `json:"id"`
	Origin string     `json:"origin,omitempty"`
}

// Enqueuer is what the API needs to schedule label jobs and follow them up.
type Enqueuer interface {
	EnqueueLabel(ctx context.Context, payload LabelPayload) (string, error)
	LabelStatus(ctx context.Context, taskID string) (LabelStatus, error)
}

// NewLabelTask builds the asynq task for payload.
func NewLabelTask(payload LabelPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(LabelRenderTask, data,
		asynq.MaxRetry(5),
		asynq.Queue(LabelQueue),
		asynq.Retention(LabelRetention),
	), nil
}

// Client enqueues label jobs on Redis and looks up their results.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewClient wraps an asynq client and inspector sharing one Redis.
func NewClient(client *asynq.Client, inspector *asynq.Inspector) *Client {
	return &Client{client: client, inspector: inspector}
}

// EnqueueLabel enqueues a label job and returns the task id.
func (c *Client) EnqueueLabel(ctx context.Context, payload LabelPayload) (string, error) {
	task, err := NewLabelTask(payload)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue label task: %w", err)
	}
	return info.ID, nil
}

// LabelStatus reports the state of a label task and, once it completed, the
// key the worker stored the label under.
func (c *Client) LabelStatus(ctx context.Context, taskID string) (LabelStatus, error) {
	info, err := c.inspector.GetTaskInfo(LabelQueue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return LabelStatus{}, fmt.Errorf("%s: %w", taskID, ErrTaskNotFound)
	}
	if err != nil {
		return LabelStatus{}, fmt.Errorf("inspect label task: %w", err)
	}
	return statusFromInfo(info), nil
}

func statusFromInfo(info *asynq.TaskInfo) LabelStatus {
	st := LabelStatus{TaskID: info.ID, State: info.State.String(), Error: info.LastErr}
	if info.State == asynq.TaskStateCompleted {
		st.Key = string(info.Result)
	}
	return st
}

// Close releases the Redis connections.
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}
