// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpatialHashGrid_BasicOperations(t *testing.T) {
	t.Parallel()
	grid := NewSpatialHashGrid(10)

	grid.Insert("venue-1", 47.3769, 8.5417, time.Now(), "zurich")
	entry, ok := grid.Get("venue-1")
	require.True(t, ok)
	require.Equal(t, "zurich", entry.Data)
	require.Equal(t, 1, grid.Size())
}

func TestSpatialHashGrid_Update(t *testing.T) {
	t.Parallel()
	grid := NewSpatialHashGrid(10)
	grid.Insert("venue-1", 47.0, 8.0, time.Now(), "a")
	grid.Insert("venue-1", 47.1, 8.1, time.Now(), "b")

	require.Equal(t, 1, grid.Size())
	entry, ok := grid.Get("venue-1")
	require.True(t, ok)
	require.Equal(t, "b", entry.Data)
}

func TestSpatialHashGrid_Remove(t *testing.T) {
	t.Parallel()
	grid := NewSpatialHashGrid(10)
	grid.Insert("venue-1", 47.0, 8.0, time.Now(), nil)

	require.True(t, grid.Remove("venue-1"))
	require.False(t, grid.Remove("venue-1"))
	require.Equal(t, 0, grid.Size())
}

func TestSpatialHashGrid_QueryNearby(t *testing.T) {
	t.Parallel()
	grid := NewSpatialHashGrid(50)

	// Zurich and Geneva, roughly 225km apart.
	grid.Insert("zurich", 47.3769, 8.5417, time.Now(), "zurich")
	grid.Insert("geneva", 46.2044, 6.1432, time.Now(), "geneva")

	near := grid.QueryNearby(47.3769, 8.5417, 50)
	require.Len(t, near, 1)
	require.Equal(t, "zurich", near[0].ID)

	wide := grid.QueryNearby(47.3769, 8.5417, 300)
	require.Len(t, wide, 2)
}

func TestSpatialHashGrid_Clear(t *testing.T) {
	t.Parallel()
	grid := NewSpatialHashGrid(10)
	grid.Insert("a", 1, 1, time.Now(), nil)
	grid.Insert("b", 2, 2, time.Now(), nil)

	grid.Clear()
	require.Equal(t, 0, grid.Size())
	require.Equal(t, 0, grid.NumCells())
}

func TestSpatialHashGrid_Concurrent(t *testing.T) {
	t.Parallel()
	grid := NewSpatialHashGrid(10)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			grid.Insert(string(rune('a'+i%26)), float64(i), float64(i), time.Now(), i)
		}(i)
	}
	wg.Wait()

	require.LessOrEqual(t, grid.Size(), 50)
}

func TestHaversineDistanceKm(t *testing.T) {
	t.Parallel()
	// Zurich to Geneva is approximately 224km.
	d := HaversineDistanceKm(47.3769, 8.5417, 46.2044, 6.1432)
	require.InDelta(t, 224, d, 15)

	same := HaversineDistanceKm(47.0, 8.0, 47.0, 8.0)
	require.InDelta(t, 0, same, 0.001)
}
