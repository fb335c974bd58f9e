package domain

// GetTasksFilters narrows a task listing.
type GetTasksFilters struct {
	Limit  int
	Status TaskStatus
}

// DefaultGetTasksFilters mirrors the API defaults: last five completed tasks.
func DefaultGetTasksFilters() GetTasksFilters {
	return GetTasksFilters{
		Limit:  5,
		Status: TaskStatusCompleted,
	}
}
