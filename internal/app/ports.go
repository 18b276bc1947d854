package app

import (
	"context"

	"github.com/hylla/dragboard/internal/domain"
)

// Repository is the persistence port for projects, tasks and activity.
type Repository interface {
	CreateProject(context.Context, domain.Project) error
	UpdateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(context.Context, bool) ([]domain.Project, error)

	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	// UpdateTasks writes every task in one transaction.
	UpdateTasks(context.Context, []domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, string, bool) ([]domain.Task, error)
	DeleteTask(context.Context, string) error

	ListProjectChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}
