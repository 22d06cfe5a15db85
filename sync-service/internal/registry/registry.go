// Package registry owns room membership for the sync relay.
//
// Rooms are created by the first join and removed as soon as the last
// member leaves. Every membership change for a room happens under that
// room's lock and its notification callback runs under the same lock, so
// the counts members observe are applied in the same order as the
// changes that produced them.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JimmyPiedrahita/netflis/pkg/jwt"
)

var (
	ErrRoomFull     = errors.New("room is full")
	ErrRegistryFull = errors.New("room limit reached")
	ErrEmptyRoomID  = errors.New("room id is empty")
)

// Member is a connection that can receive frames.
type Member interface {
	ID() string
	// Enqueue hands a frame to the member's writer without blocking.
	Enqueue(frame []byte) bool
}

// Membership is a member's seat in one room.
type Membership struct {
	Member   Member
	Role     jwt.Role
	JoinedAt time.Time
}

// Room is the live set of members sharing a timeline.
type Room struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	members map[string]*Membership
	hostID  string
	seated  bool
	// orphaned is set once the host has left and cleared if a host joins.
	orphaned bool
	closed   bool
}

// View is a snapshot of a room taken under its lock.
type View struct {
	RoomID string
	Count  int
	HostID string
	// HostLeft reports that the room had a host who has since left.
	HostLeft bool
	Members  []*Membership
	// Changed is the membership that joined or left.
	Changed *Membership
}

// Others returns the members of v other than id.
func (v View) Others(id string) []*Membership {
	out := make([]*Membership, 0, len(v.Members))
	for _, m := range v.Members {
		if m.Member.ID() != id {
			out = append(out, m)
		}
	}
	return out
}

// Notify is invoked with the post-change view while the room is still locked.
// It must not call back into the registry.
type Notify func(View)

// Hooks observe room lifecycle. OnCreate runs under the new room's lock and
// OnDestroy after the emptied room's lock is released, so for one room the
// two never run out of order. Neither may call back into the registry.
type Hooks struct {
	OnCreate  func(roomID string)
	OnDestroy func(roomID string, lifetime time.Duration)
}

// Limits bound registry growth. Zero means unlimited.
type Limits struct {
	MaxRooms          int
	MaxMembersPerRoom int
}

// Registry maps room ids to rooms and member ids to the rooms they are in.
// Lock order is room.mu before Registry.mu.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	byMember map[string]map[string]struct{}

	limits Limits
	hooks  Hooks
	now    func() time.Time
}

// New creates an empty registry.
func New(limits Limits, hooks Hooks) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		byMember: make(map[string]map[string]struct{}),
		limits:   limits,
		hooks:    hooks,
		now:      time.Now,
	}
}

// Join adds m to roomID, creating the room if needed. An empty role makes
// the room's first member its host and everyone after a guest. notify
// receives the view after the join. Joining a room the member is already
// in changes nothing and returns joined=false.
func (r *Registry) Join(roomID string, m Member, role jwt.Role, notify Notify) (joined bool, err error) {
	if roomID == "" {
		return false, ErrEmptyRoomID
	}

	for {
		room, created, err := r.getOrCreate(roomID)
		if err != nil {
			return false, err
		}

		room.mu.Lock()
		if room.closed {
			// Emptied and unlinked between lookup and lock; look again.
			room.mu.Unlock()
			continue
		}

		if _, ok := room.members[m.ID()]; ok {
			room.mu.Unlock()
			return false, nil
		}
		if r.limits.MaxMembersPerRoom > 0 && len(room.members) >= r.limits.MaxMembersPerRoom {
			room.mu.Unlock()
			return false, ErrRoomFull
		}

		if role == "" {
			role = jwt.RoleGuest
			if !room.seated {
				role = jwt.RoleHost
			}
		}
		ms := &Membership{Member: m, Role: role, JoinedAt: r.now()}
		room.members[m.ID()] = ms
		room.seated = true
		if role == jwt.RoleHost && room.hostID == "" {
			room.hostID = m.ID()
			room.orphaned = false
		}

		r.mu.Lock()
		set, ok := r.byMember[m.ID()]
		if !ok {
			set = make(map[string]struct{})
			r.byMember[m.ID()] = set
		}
		set[roomID] = struct{}{}
		r.mu.Unlock()

		if notify != nil {
			v := room.viewLocked()
			v.Changed = ms
			notify(v)
		}
		if created && r.hooks.OnCreate != nil {
			r.hooks.OnCreate(roomID)
		}
		room.mu.Unlock()
		return true, nil
	}
}

// Leave removes memberID from roomID. notify receives the post-removal view
// unless the room became empty, in which case the room is destroyed and
// there is nobody left to tell.
func (r *Registry) Leave(roomID, memberID string, notify Notify) bool {
	r.mu.Lock()
	room := r.rooms[roomID]
	r.mu.Unlock()
	if room == nil {
		return false
	}

	room.mu.Lock()
	ms, ok := room.members[memberID]
	if !ok {
		room.mu.Unlock()
		return false
	}
	delete(room.members, memberID)
	if room.hostID == memberID {
		room.hostID = ""
		room.orphaned = true
	}

	destroyed := len(room.members) == 0
	r.mu.Lock()
	if set := r.byMember[memberID]; set != nil {
		delete(set, roomID)
		if len(set) == 0 {
			delete(r.byMember, memberID)
		}
	}
	if destroyed {
		room.closed = true
		if r.rooms[roomID] == room {
			delete(r.rooms, roomID)
		}
	}
	r.mu.Unlock()

	if !destroyed && notify != nil {
		v := room.viewLocked()
		v.Changed = ms
		notify(v)
	}
	room.mu.Unlock()

	if destroyed && r.hooks.OnDestroy != nil {
		r.hooks.OnDestroy(roomID, r.now().Sub(room.CreatedAt))
	}
	return true
}

// Disconnect removes memberID from every room it belongs to and returns
// the affected room ids.
func (r *Registry) Disconnect(memberID string, notify Notify) []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.byMember[memberID]))
	for id := range r.byMember[memberID] {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)

	left := ids[:0]
	for _, id := range ids {
		if r.Leave(id, memberID, notify) {
			left = append(left, id)
		}
	}
	return left
}

// Snapshot returns the current view of roomID.
func (r *Registry) Snapshot(roomID string) (View, bool) {
	r.mu.Lock()
	room := r.rooms[roomID]
	r.mu.Unlock()
	if room == nil {
		return View{}, false
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return View{}, false
	}
	return room.viewLocked(), true
}

// Membership returns memberID's seat in roomID.
func (r *Registry) Membership(roomID, memberID string) (*Membership, bool) {
	r.mu.Lock()
	room := r.rooms[roomID]
	r.mu.Unlock()
	if room == nil {
		return nil, false
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	ms, ok := room.members[memberID]
	return ms, ok
}

// roomsOf lists the rooms memberID is in.
func (r *Registry) roomsOf(memberID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.byMember[memberID]))
	for id := range r.byMember[memberID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) getOrCreate(roomID string) (*Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		return room, false, nil
	}
	if r.limits.MaxRooms > 0 && len(r.rooms) >= r.limits.MaxRooms {
		return nil, false, ErrRegistryFull
	}

	room := &Room{
		ID:        roomID,
		CreatedAt: r.now(),
		members:   make(map[string]*Membership),
	}
	r.rooms[roomID] = room
	return room, true, nil
}

func (room *Room) viewLocked() View {
	members := make([]*Membership, 0, len(room.members))
	for _, ms := range room.members {
		members = append(members, ms)
	}
	return View{
		RoomID:   room.ID,
		Count:    len(room.members),
		HostID:   room.hostID,
		HostLeft: room.orphaned,
		Members:  members,
	}
}
