package board

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

func TestLaneTable_Walk(t *testing.T) {
	table := &LaneTable{}
	ready := table.Add(models.Bucket{ID: "1", Name: "Ready", Index: 1, ParentIndex: -1})
	table.Add(models.Bucket{ID: "0", Name: "Backlog", Index: 0, ParentIndex: -1})
	table.Add(models.Bucket{ID: "1b", Name: "Ready B", Index: 1, ParentIndex: ready})
	table.Add(models.Bucket{ID: "1a", Name: "Ready A", Index: 0, ParentIndex: ready})

	var visited []string
	table.Walk(func(depth int, b models.Bucket) {
		visited = append(visited, fmt.Sprintf("%d:%s", depth, b.Name))
	})

	want := []string{"0:Backlog", "0:Ready", "1:Ready A", "1:Ready B"}
	if len(visited) != len(want) {
		t.Fatalf("expected %d buckets, got %v", len(want), visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("walk order[%d] = %q, want %q", i, visited[i], want[i])
		}
	}
}

func TestLaneTable_Find(t *testing.T) {
	table := &LaneTable{}
	table.Add(models.Bucket{ID: "a", Name: "A", ParentIndex: -1})

	if b, ok := table.Find("a"); !ok || b.Name != "A" {
		t.Errorf("expected bucket A, got %+v ok=%v", b, ok)
	}
	if _, ok := table.Find("missing"); ok {
		t.Error("did not expect a match for missing id")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     models.BoardConfig
		wantErr bool
	}{
		{"leankit", models.BoardConfig{Account: "a", Email: "e", Password: "p", BoardID: "1"}, false},
		{"leankit", models.BoardConfig{Account: "a"}, true},
		{"kanbanflow", models.BoardConfig{Token: "t"}, false},
		{"kanbanflow", models.BoardConfig{}, true},
		{"trello", models.BoardConfig{AppKey: "k", Token: "t", BoardID: "b"}, false},
		{"trello", models.BoardConfig{Token: "t"}, true},
		{"zenkit", models.BoardConfig{Token: "t", ListID: "l"}, false},
		{"zenkit", models.BoardConfig{Token: "t"}, true},
	}

	for _, tt := range tests {
		adapter, err := New(tt.name, tt.cfg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q, %+v): expected error", tt.name, tt.cfg)
				continue
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("New(%q): expected ConfigError, got %T", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q): %v", tt.name, err)
			continue
		}
		if adapter.Name() != tt.name {
			t.Errorf("adapter name %q, want %q", adapter.Name(), tt.name)
		}
	}

	if _, err := New("jira", models.BoardConfig{}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
