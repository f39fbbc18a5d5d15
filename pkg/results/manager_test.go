package results

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSnapshotPreservesStoreOrder(t *testing.T) {
	manager := NewManager()
	manager.Store("c1", "get_weather", map[string]any{"temp": 21.5})
	manager.Store("c2", "search_docs", "no results")
	manager.Store("c3", "get_weather", map[string]any{"temp": 3.0})

	snapshot := manager.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "c1", snapshot[0].ID)
	assert.Equal(t, "c2", snapshot[1].ID)
	assert.Equal(t, "c3", snapshot[2].ID)
}

func TestManagerLastWriteWinsKeepsPosition(t *testing.T) {
	manager := NewManager()
	manager.Store("c1", "get_weather", "first")
	manager.Store("c2", "search_docs", "middle")
	manager.Store("c1", "get_weather", "second")

	snapshot := manager.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "c1", snapshot[0].ID)
	assert.Equal(t, "second", snapshot[0].Value)
	assert.Equal(t, "c2", snapshot[1].ID)
}

func TestManagerGetAndClear(t *testing.T) {
	manager := NewManager()
	manager.Store("c1", "get_weather", "sunny")

	entry, ok := manager.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "get_weather", entry.Name)
	assert.Equal(t, "sunny", entry.Value)

	_, ok = manager.Get("missing")
	assert.False(t, ok)

	manager.Clear()
	assert.Equal(t, 0, manager.Len())
	_, ok = manager.Get("c1")
	assert.False(t, ok)
}

func TestManagerPromptSection(t *testing.T) {
	manager := NewManager()
	assert.Equal(t, "", manager.PromptSection())

	manager.Store("c1", "get_weather", map[string]any{"temp": 21.5})
	manager.Store("c2", "search_docs", "nothing found")

	section := manager.PromptSection()
	assert.Contains(t, section, "<mfcs_result>")
	assert.Contains(t, section, "</mfcs_result>")
	assert.Contains(t, section, `"call_id":"c1"`)
	assert.Contains(t, section, `"call_id":"c2"`)
	assert.Contains(t, section, `"temp":21.5`)
}

func TestManagerConcurrentStores(t *testing.T) {
	manager := NewManager()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			manager.Store(fmt.Sprintf("c%d", i), "sample", i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, manager.Len())
}
