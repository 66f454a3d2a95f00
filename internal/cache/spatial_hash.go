// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package cache

import (
	"math"
	"sync"
	"time"
)

// SpatialHashGrid divides geographic space into cells for fast
// proximity queries. GET /nearby (SPEC_FULL §5) uses it as the
// bounding-box prefilter before the precise haversine distance check,
// reducing an O(n) scan over every production venue to O(k) over the
// handful of cells near the query point.
type SpatialHashGrid struct {
	mu       sync.RWMutex
	cells    map[CellKey]*Cell
	cellSize float64 // degrees, approximated from a km cell size
	entries  map[string]*SpatialEntry
}

// CellKey is a grid cell coordinate.
type CellKey struct {
	X, Y int
}

// Cell holds every entry currently indexed under one CellKey.
type Cell struct {
	entries []*SpatialEntry
}

// SpatialEntry is one indexed point, carrying an opaque payload (a
// production venue id, typically).
type SpatialEntry struct {
	ID        string
	Lat       float64
	Lon       float64
	Timestamp time.Time
	Data      any
	cellKey   CellKey
}

// NewSpatialHashGrid builds a grid with the given approximate cell
// size in kilometers. A non-positive size defaults to 100km, tuned for
// city-scale venue density.
func NewSpatialHashGrid(cellSizeKm float64) *SpatialHashGrid {
	if cellSizeKm <= 0 {
		cellSizeKm = 100
	}
	return &SpatialHashGrid{
		cells:    make(map[CellKey]*Cell),
		cellSize: cellSizeKm / 111.0,
		entries:  make(map[string]*SpatialEntry),
	}
}

func (g *SpatialHashGrid) getCellKey(lat, lon float64) CellKey {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return CellKey{X: int(math.Floor(lon / g.cellSize)), Y: int(math.Floor(lat / g.cellSize))}
}

// Insert adds or replaces an entry.
func (g *SpatialHashGrid) Insert(id string, lat, lon float64, timestamp time.Time, data any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.entries[id]; ok {
		g.removeFromCellUnlocked(existing)
	}

	cellKey := g.getCellKey(lat, lon)
	entry := &SpatialEntry{ID: id, Lat: lat, Lon: lon, Timestamp: timestamp, Data: data, cellKey: cellKey}

	cell, exists := g.cells[cellKey]
	if !exists {
		cell = &Cell{entries: make([]*SpatialEntry, 0, 4)}
		g.cells[cellKey] = cell
	}
	cell.entries = append(cell.entries, entry)
	g.entries[id] = entry
}

// Remove deletes an entry by id, reporting whether it was present.
func (g *SpatialHashGrid) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.entries[id]
	if !exists {
		return false
	}
	g.removeFromCellUnlocked(entry)
	delete(g.entries, id)
	return true
}

func (g *SpatialHashGrid) removeFromCellUnlocked(entry *SpatialEntry) {
	cell, exists := g.cells[entry.cellKey]
	if !exists {
		return
	}
	for i, e := range cell.entries {
		if e.ID == entry.ID {
			cell.entries[i] = cell.entries[len(cell.entries)-1]
			cell.entries = cell.entries[:len(cell.entries)-1]
			break
		}
	}
	if len(cell.entries) == 0 {
		delete(g.cells, entry.cellKey)
	}
}

// Get returns a copy of the entry with the given id.
func (g *SpatialHashGrid) Get(id string) (*SpatialEntry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entry, exists := g.entries[id]
	if !exists {
		return nil, false
	}
	cp := *entry
	return &cp, true
}

// QueryNearby returns every entry within radiusKm of (lat, lon): a
// bounding-box cell scan followed by an exact haversine check per
// candidate, exactly the two-step plan SPEC_FULL §6 describes for
// GET /nearby.
func (g *SpatialHashGrid) QueryNearby(lat, lon, radiusKm float64) []*SpatialEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	latCells := int(math.Ceil(radiusKm/111.0/g.cellSize)) + 1
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonCells := int(math.Ceil(radiusKm/(111.0*cosLat)/g.cellSize)) + 1
	centerCell := g.getCellKey(lat, lon)

	var results []*SpatialEntry
	for dx := -lonCells; dx <= lonCells; dx++ {
		for dy := -latCells; dy <= latCells; dy++ {
			cell, exists := g.cells[CellKey{X: centerCell.X + dx, Y: centerCell.Y + dy}]
			if !exists {
				continue
			}
			for _, entry := range cell.entries {
				if HaversineDistanceKm(lat, lon, entry.Lat, entry.Lon) <= radiusKm {
					cp := *entry
					results = append(results, &cp)
				}
			}
		}
	}
	return results
}

// Size returns the total number of indexed entries.
func (g *SpatialHashGrid) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// NumCells returns the number of non-empty cells.
func (g *SpatialHashGrid) NumCells() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}

// Clear removes every entry.
func (g *SpatialHashGrid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = make(map[CellKey]*Cell)
	g.entries = make(map[string]*SpatialEntry)
}

// HaversineDistanceKm is the great-circle distance between two WGS-84
// points, in kilometers.
func HaversineDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
