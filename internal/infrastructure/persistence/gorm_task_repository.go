package persistence

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/agentcore/agentcore/internal/domain/entity"
	agenterrors "github.com/agentcore/agentcore/pkg/errors"
	"github.com/agentcore/agentcore/internal/infrastructure/persistence/models"
)

// GormTaskRepository persists task history. It satisfies
// orchestrator.Store for the write path and offers session-scoped
// queries for the CLI's task listing.
type GormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// SaveTask creates or updates the task row.
func (r *GormTaskRepository) SaveTask(task entity.Task) error {
	model, err := toTaskModel(task)
	if err != nil {
		return err
	}
	if err := r.db.Save(model).Error; err != nil {
		return agenterrors.Wrap(agenterrors.CodeTask, "save task", err)
	}
	return nil
}

// FindByID returns one task.
func (r *GormTaskRepository) FindByID(id string) (entity.Task, error) {
	var model models.TaskModel
	if err := r.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.Task{}, agenterrors.NewNotFound("task " + id)
		}
		return entity.Task{}, agenterrors.Wrap(agenterrors.CodeTask, "find task", err)
	}
	return toTaskEntity(model)
}

// FindBySession returns a session's tasks, newest first.
func (r *GormTaskRepository) FindBySession(sessionID string, limit int) ([]entity.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.TaskModel
	err := r.db.
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.CodeTask, "list tasks", err)
	}

	out := make([]entity.Task, 0, len(rows))
	for _, row := range rows {
		task, err := toTaskEntity(row)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

func toTaskModel(task entity.Task) (*models.TaskModel, error) {
	var containerJSON string
	if task.Container != nil {
		b, err := json.Marshal(task.Container)
		if err != nil {
			return nil, agenterrors.Wrap(agenterrors.CodeTask, "encode container spec", err)
		}
		containerJSON = string(b)
	}
	return &models.TaskModel{
		ID:          task.ID,
		SessionID:   task.SessionID,
		ToolName:    task.ToolName,
		Command:     task.Command,
		Mode:        string(task.Mode),
		State:       string(task.State),
		Result:      task.Result,
		FailReason:  task.FailReason,
		Container:   containerJSON,
		TimeoutMs:   int64(task.Timeout / time.Millisecond),
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
	}, nil
}

func toTaskEntity(model models.TaskModel) (entity.Task, error) {
	task := entity.Task{
		ID:          model.ID,
		SessionID:   model.SessionID,
		ToolName:    model.ToolName,
		Command:     model.Command,
		Mode:        entity.TaskMode(model.Mode),
		State:       entity.TaskState(model.State),
		Result:      model.Result,
		FailReason:  model.FailReason,
		Timeout:     time.Duration(model.TimeoutMs) * time.Millisecond,
		CreatedAt:   model.CreatedAt,
		StartedAt:   model.StartedAt,
		CompletedAt: model.CompletedAt,
	}
	if model.Container != "" {
		var spec entity.ContainerSpec
		if err := json.Unmarshal([]byte(model.Container), &spec); err != nil {
			return entity.Task{}, agenterrors.Wrap(agenterrors.CodeTask, "decode container spec", err)
		}
		task.Container = &spec
	}
	return task, nil
}
