package app

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/Webinar/internal/domain"
	"github.com/google/uuid"
)

type RoomInfo struct {
	Room     domain.Room `json:"room"`
	Sessions int         `json:"sessions"`
}

type roomEntry struct {
	room     domain.Room
	sessions int
}

// RoomManager hands out stable room ids and counts local sessions per room.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]*roomEntry
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomName]*roomEntry)}
}

func (f *RoomManager) GetOrCreate(name domain.RoomName) domain.Room {
	f.mu.RLock()
	e, ok := f.rooms[name]
	f.mu.RUnlock()
	if ok {
		return e.room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok = f.rooms[name]; ok {
		return e.room
	}
	e = &roomEntry{room: domain.Room{ID: domain.RoomID(uuid.NewString()), Name: name}}
	f.rooms[name] = e
	return e.room
}

func (f *RoomManager) Attach(name domain.RoomName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.rooms[name]; ok {
		e.sessions++
	}
}

// Detach drops the room once its last session is gone.
func (f *RoomManager) Detach(name domain.RoomName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rooms[name]
	if !ok {
		return
	}
	e.sessions--
	if e.sessions <= 0 {
		delete(f.rooms, name)
	}
}

func (f *RoomManager) List() []RoomInfo {
	f.mu.RLock()
	out := make([]RoomInfo, 0, len(f.rooms))
	for _, e := range f.rooms {
		out = append(out, RoomInfo{Room: e.room, Sessions: e.sessions})
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b RoomInfo) int { return cmp.Compare(a.Room.Name, b.Room.Name) })
	return out
}
