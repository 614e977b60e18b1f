package services

import (
	"testing"

	"github.com/scanops/console/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskService_StartTask(t *testing.T) {
	h := newHarness("ws-1")

	id := h.tasks.StartTask("Nmap", "NMAP", "nmap -sV 10.0.0.1", "10.0.0.1")

	task, err := h.tasks.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusRunning, task.Status)
	assert.Equal(t, 0, task.Progress)
	assert.Equal(t, "ws-1", task.WorkspaceID)
	assert.Nil(t, task.EndTime)

	msgs := h.messages("ws-1")
	require.Len(t, msgs, 3)
	assert.Equal(t, "Iniciando tarea: Nmap", msgs[0])
	assert.Equal(t, "Objetivo: 10.0.0.1", msgs[1])
	assert.Equal(t, "nmap -sV 10.0.0.1", msgs[2])

	cmd := h.logs.Filter(func(e domain.LogEntry) bool { return e.Level == domain.LogLevelCommand })
	require.Len(t, cmd, 1)
	assert.Equal(t, id, cmd[0].TaskID)
}

func TestTaskService_ProgressThenComplete(t *testing.T) {
	h := newHarness("ws-1")
	id := h.tasks.StartTask("Nmap", "NMAP", "", "")

	require.NoError(t, h.tasks.UpdateTaskProgress(id, 40, "Escaneando puertos... (40%)"))
	require.NoError(t, h.tasks.CompleteTask(id, ""))

	task, _ := h.tasks.GetTask(id)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	require.NotNil(t, task.EndTime)
	assert.False(t, task.EndTime.Before(task.StartTime))

	msgs := h.messages("ws-1")
	assert.Contains(t, msgs, "Escaneando puertos... (40%)")
	assert.Contains(t, msgs, "Tarea completada: Nmap")
	success := h.logs.Filter(func(e domain.LogEntry) bool { return e.Level == domain.LogLevelSuccess })
	assert.Len(t, success, 1)
}

func TestTaskService_ProgressIsClamped(t *testing.T) {
	h := newHarness("ws-1")
	id := h.tasks.StartTask("Nmap", "NMAP", "", "")

	h.tasks.UpdateTaskProgress(id, 150, "")
	task, _ := h.tasks.GetTask(id)
	assert.Equal(t, 100, task.Progress)

	h.tasks.UpdateTaskProgress(id, -7, "")
	task, _ = h.tasks.GetTask(id)
	assert.Equal(t, 0, task.Progress)
}

func TestTaskService_TerminalIsSticky(t *testing.T) {
	h := newHarness("ws-1")
	id := h.tasks.StartTask("Nmap", "NMAP", "", "")
	require.NoError(t, h.tasks.FailTask(id, "timeout"))
	before := h.logs.Len()

	assert.ErrorIs(t, h.tasks.UpdateTaskProgress(id, 80, "late"), ErrTaskTerminal)
	assert.ErrorIs(t, h.tasks.CompleteTask(id, ""), ErrTaskTerminal)
	assert.ErrorIs(t, h.tasks.CancelTask(id), ErrTaskTerminal)
	name := "renamed"
	assert.ErrorIs(t, h.tasks.UpdateTask(id, domain.TaskPatch{Name: &name}), ErrTaskTerminal)

	task, _ := h.tasks.GetTask(id)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, "Nmap", task.Name)
	assert.Equal(t, before, h.logs.Len(), "rejected transitions must not log")
	assert.Contains(t, h.messages("ws-1"), "Error: timeout")
}

func TestTaskService_UnknownTask(t *testing.T) {
	h := newHarness("ws-1")
	assert.ErrorIs(t, h.tasks.UpdateTaskProgress("nope", 10, ""), ErrTaskNotFound)
	assert.ErrorIs(t, h.tasks.CompleteTask("nope", ""), ErrTaskNotFound)
	_, err := h.tasks.GetTask("nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskService_SessionIDIsSetOnce(t *testing.T) {
	h := newHarness("ws-1")
	id := h.tasks.StartTask("Nmap", "NMAP", "", "")

	first, second := "scan-1", "scan-2"
	require.NoError(t, h.tasks.UpdateTask(id, domain.TaskPatch{SessionID: &first}))
	require.NoError(t, h.tasks.UpdateTask(id, domain.TaskPatch{SessionID: &second}))

	task, _ := h.tasks.GetTask(id)
	assert.Equal(t, "scan-1", task.SessionID)

	found, ok := h.tasks.FindBySession("scan-1")
	require.True(t, ok)
	assert.Equal(t, id, found.ID)
	_, ok = h.tasks.FindBySession("scan-2")
	assert.False(t, ok)
}

func TestTaskService_CancelAndKill(t *testing.T) {
	h := newHarness("ws-1")
	a := h.tasks.StartTask("A", "NMAP", "", "")
	b := h.tasks.StartTask("B", "NMAP", "", "")

	require.NoError(t, h.tasks.CancelTask(a))
	require.NoError(t, h.tasks.KillTask(b))

	ta, _ := h.tasks.GetTask(a)
	tb, _ := h.tasks.GetTask(b)
	assert.Equal(t, domain.TaskStatusCancelled, ta.Status)
	assert.Equal(t, domain.TaskStatusCancelled, tb.Status)
	assert.Contains(t, h.messages("ws-1"), "Tarea cancelada: A")
	assert.Contains(t, h.messages("ws-1"), "Tarea terminada forzosamente: B")
}

func TestTaskService_EvictsOldestFinishedFirst(t *testing.T) {
	ws := NewWorkspace("ws")
	tasks := NewTaskService(ws, NewLogStore(100, nil), 3)

	first := tasks.StartTask("1", "M", "", "")
	second := tasks.StartTask("2", "M", "", "")
	third := tasks.StartTask("3", "M", "", "")
	require.NoError(t, tasks.CompleteTask(second, ""))

	fourth := tasks.StartTask("4", "M", "", "")

	_, err := tasks.GetTask(second)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	for _, id := range []string{first, third, fourth} {
		_, err := tasks.GetTask(id)
		assert.NoError(t, err)
	}

	// with nothing finished, the oldest goes
	fifth := tasks.StartTask("5", "M", "", "")
	_, err = tasks.GetTask(first)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = tasks.GetTask(fifth)
	assert.NoError(t, err)
}

func TestTaskService_TasksNewestFirstAndClear(t *testing.T) {
	h := newHarness("a")
	a1 := h.tasks.StartTask("a1", "M", "", "")
	a2 := h.tasks.StartTask("a2", "M", "", "")
	b1 := h.tasks.StartTaskIn("b", "b1", "M", "", "")
	h.tasks.CompleteTask(a1, "")
	h.tasks.CompleteTask(b1, "")

	inA := h.tasks.Tasks(func(t domain.Task) bool { return t.WorkspaceID == "a" })
	require.Len(t, inA, 2)
	assert.Equal(t, a2, inA[0].ID)
	assert.Equal(t, a1, inA[1].ID)

	assert.Equal(t, 1, h.tasks.ClearWorkspace("a"))
	_, err := h.tasks.GetTask(a2)
	assert.NoError(t, err, "running tasks survive a clear")
	_, err = h.tasks.GetTask(b1)
	assert.NoError(t, err, "other workspaces are untouched")
}

func TestTaskService_OnTerminalFiresOnce(t *testing.T) {
	h := newHarness("ws")
	var seen []domain.Task
	h.tasks.OnTerminal(func(t domain.Task) { seen = append(seen, t) })

	id := h.tasks.StartTask("x", "M", "", "")
	h.tasks.CompleteTask(id, "")
	h.tasks.FailTask(id, "late")

	require.Len(t, seen, 1)
	assert.Equal(t, domain.TaskStatusCompleted, seen[0].Status)
}

func TestTaskService_OnTerminalRunsEveryObserverInOrder(t *testing.T) {
	h := newHarness("ws")
	var order []string
	h.tasks.OnTerminal(func(domain.Task) { order = append(order, "first") })
	h.tasks.OnTerminal(func(domain.Task) { order = append(order, "second") })

	id := h.tasks.StartTask("x", "M", "", "")
	require.NoError(t, h.tasks.KillTask(id))

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestTaskService_MarkCancelling(t *testing.T) {
	h := newHarness("ws")
	id := h.tasks.StartTask("x", "M", "", "")

	require.NoError(t, h.tasks.MarkCancelling(id, true))
	task, _ := h.tasks.GetTask(id)
	assert.True(t, task.Cancelling)
	assert.Equal(t, domain.TaskStatusRunning, task.Status)

	h.tasks.CancelTask(id)
	task, _ = h.tasks.GetTask(id)
	assert.False(t, task.Cancelling)
}
