package agent

import (
	"testing"

	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/services/recurrence"
)

func TestRegistry_DeclaresEveryToolKind(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	logger := zap.NewNop()
	registry, err := NewRegistry(store, recurrence.NewService(store, logger), logger)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	decls := registry.Declarations()
	if len(decls) != int(toolKindCount) {
		t.Errorf("Declarations() returned %d tools, want %d", len(decls), toolKindCount)
	}

	wantNames := []string{
		"create_task",
		"list_tasks",
		"update_task",
		"delete_task",
		"complete_task",
		"complete_all_tasks",
		"delete_all_tasks",
	}
	for i, name := range wantNames {
		if got := ToolKind(i).Name(); got != name {
			t.Errorf("ToolKind(%d).Name() = %q, want %q", i, got, name)
		}
		if _, ok := registry.byName[name]; !ok {
			t.Errorf("registry does not bind %q", name)
		}
	}
}

func TestToolKind_Destructive(t *testing.T) {
	t.Parallel()

	for k := ToolKind(0); k < toolKindCount; k++ {
		want := k == ToolCompleteAllTasks || k == ToolDeleteAllTasks
		if got := k.Destructive(); got != want {
			t.Errorf("%s.Destructive() = %v, want %v", k.Name(), got, want)
		}
	}
}
