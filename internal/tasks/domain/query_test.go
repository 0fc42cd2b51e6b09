package domain_test

import (
	"testing"

	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTasks() []domain.Task {
	return []domain.Task{
		{ID: "1", Text: "low work", Priority: domain.PriorityLow, Category: domain.CategoryWork},
		{ID: "2", Text: "high shopping", Priority: domain.PriorityHigh, Category: domain.CategoryShopping, Completed: true},
		{ID: "3", Text: "medium personal", Priority: domain.PriorityMedium, Category: domain.CategoryPersonal},
		{ID: "4", Text: "high work", Priority: domain.PriorityHigh, Category: domain.CategoryWork},
	}
}

func ids(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestFilter_Apply(t *testing.T) {
	tasks := sampleTasks()

	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(domain.Filter{}.Apply(tasks)))
	assert.Equal(t, []string{"1", "3", "4"}, ids(domain.Filter{Status: domain.StatusActive}.Apply(tasks)))
	assert.Equal(t, []string{"2"}, ids(domain.Filter{Status: domain.StatusCompleted}.Apply(tasks)))
	assert.Equal(t, []string{"1", "4"}, ids(domain.Filter{Category: domain.CategoryWork}.Apply(tasks)))
	assert.Equal(t, []string{"4"}, ids(domain.Filter{
		Status:   domain.StatusActive,
		Priority: domain.PriorityHigh,
	}.Apply(tasks)))
}

func TestFilter_SortByPriorityIsStable(t *testing.T) {
	tasks := sampleTasks()

	sorted := domain.Filter{SortByPriority: true}.Apply(tasks)

	assert.Equal(t, []string{"2", "4", "3", "1"}, ids(sorted))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(tasks), "input must not be reordered")
}

func TestParseStatusFilter(t *testing.T) {
	f, err := domain.ParseStatusFilter("")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAll, f)

	_, err = domain.ParseStatusFilter("archived")
	assert.Error(t, err)
}

func TestComputeStats(t *testing.T) {
	s := domain.ComputeStats(sampleTasks())

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 3, s.Pending)
	assert.Equal(t, 25, s.CompletionRate)
	assert.Equal(t, 2, s.ByPriority[domain.PriorityHigh])
	assert.Equal(t, 1, s.ByPriority[domain.PriorityLow])
	assert.Equal(t, 2, s.ByCategory[domain.CategoryWork])

	empty := domain.ComputeStats(nil)
	assert.Equal(t, 0, empty.CompletionRate)
	assert.Equal(t, 0, empty.ByPriority[domain.PriorityHigh])
}
