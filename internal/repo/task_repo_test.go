package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
)

func TestEnqueueTaskIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, created, err := EnqueueTask(ctx, db, domain.ComandoEnviarExhorto, "exh-1")
	if err != nil || !created {
		t.Fatalf("first enqueue: created=%v err=%v", created, err)
	}
	if first.Estado != domain.TareaEncolada {
		t.Fatalf("estado = %q", first.Estado)
	}

	// Same pair while pending collapses to the existing record.
	dup, created, err := EnqueueTask(ctx, db, domain.ComandoEnviarExhorto, "exh-1")
	if err != nil || created {
		t.Fatalf("dup enqueue: created=%v err=%v", created, err)
	}
	if dup.ID != first.ID {
		t.Fatalf("dup got a new record: %s vs %s", dup.ID, first.ID)
	}

	// A different entity gets its own record.
	other, created, err := EnqueueTask(ctx, db, domain.ComandoEnviarExhorto, "exh-2")
	if err != nil || !created || other.ID == first.ID {
		t.Fatalf("other enqueue: created=%v err=%v", created, err)
	}

	// Once the first finishes, the slot frees up.
	if err := FinishTask(ctx, db, first.ID, domain.TareaTerminada, "terminada"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	again, created, err := EnqueueTask(ctx, db, domain.ComandoEnviarExhorto, "exh-1")
	if err != nil || !created || again.ID == first.ID {
		t.Fatalf("re-enqueue after finish: created=%v err=%v", created, err)
	}
}

func TestStartTaskClaimsOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task, _, err := EnqueueTask(ctx, db, domain.ComandoConsultarExhorto, "exh-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := StartTask(ctx, db, task.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// A competing dispatcher loses the claim.
	if err := StartTask(ctx, db, task.ID); !errors.Is(err, ErrStale) {
		t.Fatalf("want ErrStale, got %v", err)
	}

	got, err := GetTask(ctx, db, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Estado != domain.TareaCorriendo || got.StartedAt == nil {
		t.Fatalf("claimed task: %+v", got)
	}
}

func TestCancelTask(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task, _, err := EnqueueTask(ctx, db, domain.ComandoEnviarPromocion, "prom-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := CancelTask(ctx, db, task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	cancelled, err := IsTaskCancelled(ctx, db, task.ID)
	if err != nil || !cancelled {
		t.Fatalf("cancelled=%v err=%v", cancelled, err)
	}
	// A cancelled task cannot be claimed or cancelled again.
	if err := StartTask(ctx, db, task.ID); !errors.Is(err, ErrStale) {
		t.Fatalf("start after cancel: %v", err)
	}
	if err := CancelTask(ctx, db, task.ID); !errors.Is(err, ErrStale) {
		t.Fatalf("second cancel: %v", err)
	}
}

func TestListEnqueuedTasksOldestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a, _, _ := EnqueueTask(ctx, db, domain.ComandoEnviarExhorto, "exh-a")
	b, _, _ := EnqueueTask(ctx, db, domain.ComandoEnviarExhorto, "exh-b")
	if err := StartTask(ctx, db, a.ID); err != nil {
		t.Fatalf("claim a: %v", err)
	}

	pending, err := ListEnqueuedTasks(ctx, db, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestUpdateTaskProgress(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task, _, _ := EnqueueTask(ctx, db, domain.ComandoEnviarActualizacion, "act-1")
	if err := UpdateTaskProgress(ctx, db, task.ID, 50, "a medio camino"); err != nil {
		t.Fatalf("progress: %v", err)
	}
	got, _ := GetTask(ctx, db, task.ID)
	if got.Progreso != 50 || got.Mensaje != "a medio camino" {
		t.Fatalf("got %+v", got)
	}
}
