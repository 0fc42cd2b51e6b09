package tasksync

import (
	"context"

	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// AddResult is the outcome of AddTask.
type AddResult struct {
	Success bool
	// RequiresAuth is set when the anonymous quota is exhausted. Nothing was
	// changed and the caller should offer sign-in.
	RequiresAuth bool
	Task         domain.Task
}

// AddTask creates a task optimistically and persists it. The error is only
// set for invalid input or a closed store; persistence failures roll the
// task back and surface through the snapshot's SaveError.
func (s *Store) AddTask(ctx context.Context, in domain.Input) (AddResult, error) {
	if s.isClosed() {
		return AddResult{}, ErrStoreClosed
	}

	owner := s.OwnerID()
	anonymous := owner == ""
	t, admitted, err := s.admit(ctx, in, owner)
	if err != nil {
		return AddResult{}, err
	}
	if !admitted {
		s.ledger.MarkLimitShown(ctx)
		s.logger.Info("anonymous task limit reached", "limit", s.limit)
		return AddResult{RequiresAuth: true}, nil
	}

	saved, err := s.gateway.Create(ctx, t, owner)
	switch domain.KindOf(err) {
	case domain.KindNone:
		if _, err := s.dispatch(AddConfirmed{ProvisionalID: t.ID, Task: saved}); err != nil {
			return AddResult{}, err
		}
		if anonymous && saved.ID != t.ID {
			s.ledger.Rename(ctx, t.ID, saved.ID)
		}
		return AddResult{Success: true, Task: saved}, nil

	case domain.KindNotConfigured:
		// offline: nothing remote can contradict the optimistic copy
		return AddResult{Success: true, Task: t}, nil

	default:
		s.logger.Error("failed to save task", "task_id", t.ID, "kind", domain.KindOf(err), "error", err)
		if _, err := s.dispatch(AddRolledBack{ID: t.ID}); err != nil {
			return AddResult{}, err
		}
		if anonymous {
			s.quotaMu.Lock()
			s.anonCount.Store(int64(s.ledger.Forget(ctx, t.ID)))
			s.quotaMu.Unlock()
		}
		return AddResult{}, nil
	}
}

// admit checks the quota, applies the optimistic add and records it in the
// anonymous ledger as one step, so concurrent adds cannot overshoot the
// limit. admitted is false only when the quota is exhausted.
func (s *Store) admit(ctx context.Context, in domain.Input, owner string) (t domain.Task, admitted bool, err error) {
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()

	if owner == "" && s.AnonymousTaskCount() >= s.limit {
		return domain.Task{}, false, nil
	}

	t, err = domain.NewTask(in, owner, s.now())
	if err != nil {
		s.logger.Warn("rejected invalid task", "error", err)
		return domain.Task{}, true, err
	}
	if _, err := s.dispatch(AddOptimistic{Task: t}); err != nil {
		return domain.Task{}, true, err
	}
	if owner == "" {
		s.anonCount.Store(int64(s.ledger.Record(ctx, t.ID)))
	}
	return t, true, nil
}

// ToggleTask flips a task's completion. A failed update flips it back.
func (s *Store) ToggleTask(ctx context.Context, id string) error {
	st, err := s.dispatch(ToggleOptimistic{ID: id, At: s.now()})
	if err != nil {
		return err
	}
	t, ok := st.Find(id)
	if !ok {
		return domain.ErrTaskNotFound
	}

	saved, err := s.gateway.Update(ctx, id, domain.CompletedFields(t.Completed))
	switch domain.KindOf(err) {
	case domain.KindNone:
		_, err = s.dispatch(UpdateConfirmed{Task: saved})
	case domain.KindNotConfigured:
		// offline: leave the banner as it is
		err = nil
	default:
		s.logger.Error("failed to update task", "task_id", id, "kind", domain.KindOf(err), "error", err)
		_, err = s.dispatch(ToggleRollback{ID: id})
	}
	return err
}

// EditTask applies a partial edit. A failed update reloads the collection.
func (s *Store) EditTask(ctx context.Context, id string, in domain.EditInput) error {
	fields, err := domain.NewEditFields(in)
	if err != nil {
		s.logger.Warn("rejected invalid edit", "task_id", id, "error", err)
		return err
	}

	st, err := s.dispatch(EditOptimistic{ID: id, Fields: fields, At: s.now()})
	if err != nil {
		return err
	}
	if _, ok := st.Find(id); !ok {
		return domain.ErrTaskNotFound
	}

	saved, err := s.gateway.Update(ctx, id, fields)
	switch domain.KindOf(err) {
	case domain.KindNone:
		_, err = s.dispatch(UpdateConfirmed{Task: saved})
		return err
	case domain.KindNotConfigured:
		return nil
	default:
		s.logger.Error("failed to update task", "task_id", id, "kind", domain.KindOf(err), "error", err)
		return s.reconcile(ctx, func(tasks []domain.Task) Action { return EditRollback{Tasks: tasks} }, nil)
	}
}

// DeleteTask removes a task. A failed delete reloads the collection, or
// restores the task if the reload fails too. Deleting never refunds the
// anonymous quota.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	before := s.Snapshot()
	index := -1
	var captured domain.Task
	for i, t := range before.Tasks {
		if t.ID == id {
			index, captured = i, t
			break
		}
	}
	if index < 0 {
		return domain.ErrTaskNotFound
	}

	if _, err := s.dispatch(DeleteOptimistic{ID: id}); err != nil {
		return err
	}

	err := s.gateway.Delete(ctx, id)
	switch domain.KindOf(err) {
	case domain.KindNone:
		_, err = s.dispatch(DeleteConfirmed{ID: id})
		return err
	case domain.KindNotConfigured:
		return nil
	default:
		s.logger.Error("failed to delete task", "task_id", id, "kind", domain.KindOf(err), "error", err)
		return s.reconcile(ctx,
			func(tasks []domain.Task) Action { return DeleteRollback{Tasks: tasks} },
			DeleteRestored{Task: captured, Index: index},
		)
	}
}

// reconcile reloads after a failed edit or delete. If the reload fails the
// fallback action is applied, or just the save error when there is none.
func (s *Store) reconcile(ctx context.Context, rollback func([]domain.Task) Action, fallback Action) error {
	tasks, err := s.gateway.List(ctx, s.OwnerID())
	if err == nil {
		_, err = s.dispatch(rollback(tasks))
		return err
	}

	s.logger.Error("failed to reload tasks after save error", "error", err)
	if fallback == nil {
		fallback = SetSaveError{Err: SaveFailed}
	}
	_, err = s.dispatch(fallback)
	return err
}
