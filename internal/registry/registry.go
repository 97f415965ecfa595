// Package registry tracks which participants are currently live in which
// room. State here is purely in-memory and per-process; queue contents live
// in the shared store and survive independently of room membership.
package registry

import (
	"sync"

	"github.com/unisonmedia/unison-backend/internal/models"
)

// Registry maps room ids to live participant lists. The outer mutex guards
// the room map only; each room carries its own lock so different rooms can
// be mutated in parallel.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	mu           sync.Mutex
	participants []models.Participant
}

func New() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
	}
}

// Join registers the participant under roomID and returns the updated roster.
// If the same user already has a session in the room (a reconnect), the
// existing entry's session id is replaced in place so the member count never
// double-counts an identity.
func (r *Registry) Join(roomID string, p models.Participant) []models.Participant {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{}
		r.rooms[roomID] = rm
	}
	r.mu.Unlock()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	replaced := false
	for i := range rm.participants {
		if rm.participants[i].UserID == p.UserID {
			rm.participants[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		rm.participants = append(rm.participants, p)
	}

	return snapshot(rm.participants)
}

// Leave removes the session from whichever room it belongs to and returns
// that room's id and remaining roster. Unknown sessions (already removed, or
// never joined) report ok=false; duplicate disconnect signals are therefore
// harmless.
func (r *Registry) Leave(sessionID string) (string, []models.Participant, bool) {
	r.mu.RLock()
	var (
		foundID string
		found   *room
		roster  []models.Participant
	)
	for id, rm := range r.rooms {
		rm.mu.Lock()
		for i := range rm.participants {
			if rm.participants[i].SessionID == sessionID {
				rm.participants = append(rm.participants[:i], rm.participants[i+1:]...)
				foundID, found = id, rm
				roster = snapshot(rm.participants)
				break
			}
		}
		rm.mu.Unlock()
		if found != nil {
			break
		}
	}
	r.mu.RUnlock()

	if found == nil {
		return "", nil, false
	}

	if len(roster) == 0 {
		r.dropIfEmpty(foundID, found)
	}

	return foundID, roster, true
}

// dropIfEmpty deletes the room entry unless someone joined between the
// departure and this cleanup.
func (r *Registry) dropIfEmpty(roomID string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.rooms[roomID]
	if !ok || current != rm {
		return
	}

	current.mu.Lock()
	empty := len(current.participants) == 0
	current.mu.Unlock()

	if empty {
		delete(r.rooms, roomID)
	}
}

// Participants returns a snapshot of the room's roster, or nil for rooms
// with no live members.
func (r *Registry) Participants(roomID string) []models.Participant {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return snapshot(rm.participants)
}

// Count reports the number of live members in the room.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.participants)
}

func snapshot(participants []models.Participant) []models.Participant {
	out := make([]models.Participant, len(participants))
	copy(out, participants)
	return out
}
