package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/estateline/estateline/internal/authz"
)

// TaskPermissionReconcile re-applies a permission set whose original commit
// was ambiguous. The payload carries the absolute target state, so running
// the task more than once is harmless.
const TaskPermissionReconcile = "accounts:permission_reconcile"

// PermissionReconcilePayload is the absolute permission state to re-apply.
type PermissionReconcilePayload struct {
	UserID       string              `json:"user_id"`
	Capabilities authz.CapabilitySet `json:"capabilities"`
	EstateIDs    []string            `json:"estate_ids"`
	GrantedBy    string              `json:"granted_by"`
}

// NewPermissionReconcileTask constructs the asynq task.
func NewPermissionReconcileTask(p PermissionReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermissionReconcile, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second),
	), nil
}

// Enqueuer schedules tasks through an asynq client.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueuePermissionReconcile schedules a reconciliation run.
func (e *Enqueuer) EnqueuePermissionReconcile(ctx context.Context, userID string, caps authz.CapabilitySet, estateIDs []string, grantedBy string) error {
	task, err := NewPermissionReconcileTask(PermissionReconcilePayload{
		UserID:       userID,
		Capabilities: caps,
		EstateIDs:    estateIDs,
		GrantedBy:    grantedBy,
	})
	if err != nil {
		return fmt.Errorf("jobs: build reconcile task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("jobs: enqueue reconcile: %w", err)
	}
	return nil
}

// PermissionStore is the slice of the account store the reconcile handler
// needs.
type PermissionStore interface {
	ReplacePermissions(ctx context.Context, userID string, caps authz.CapabilitySet, estateIDs []string, grantedBy string) error
}

// NewPermissionReconcileHandler returns the asynq handler that re-applies the
// payload's permission state.
func NewPermissionReconcileHandler(store PermissionStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PermissionReconcilePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := store.ReplacePermissions(ctx, payload.UserID, payload.Capabilities, payload.EstateIDs, payload.GrantedBy); err != nil {
			logger.Error("permission reconcile", slog.String("user_id", payload.UserID), slog.Any("error", err))
			return err
		}
		logger.Info("permission reconcile applied", slog.String("user_id", payload.UserID), slog.Int("estates", len(payload.EstateIDs)))
		return nil
	}
}
