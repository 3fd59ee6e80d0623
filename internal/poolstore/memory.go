package poolstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store implementation used by the poolstore
// and dispatch packages' own unit tests; it is not meant for production
// use.
type MemoryStore struct {
	mu         sync.Mutex
	passengers map[string]Passenger
	pools      map[string]Pool
	waypoints  map[string][]Waypoint // by poolID
	surgeZones map[string]SurgeZone
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		passengers: make(map[string]Passenger),
		pools:      make(map[string]Pool),
		waypoints:  make(map[string][]Waypoint),
		surgeZones: make(map[string]SurgeZone),
	}
}

func (s *MemoryStore) InsertPassenger(ctx context.Context, p Passenger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passengers[p.ID] = p
	return nil
}

func (s *MemoryStore) MatchPassenger(ctx context.Context, passengerID, poolID string, finalFare, surgeMultiplier float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passengers[passengerID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	p.State = PassengerMatched
	p.PoolID = poolID
	p.FinalFare = finalFare
	p.SurgeMultiplier = surgeMultiplier
	p.MatchedAt = now
	p.UpdatedAt = now
	s.passengers[passengerID] = p
	return nil
}

func (s *MemoryStore) CancelPassenger(ctx context.Context, passengerID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passengers[passengerID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	p.State = PassengerCancelled
	p.PoolID = ""
	p.CancelReason = reason
	p.CancelledAt = now
	p.UpdatedAt = now
	s.passengers[passengerID] = p
	return nil
}

func (s *MemoryStore) GetPassenger(ctx context.Context, passengerID string) (Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passengers[passengerID]
	if !ok {
		return Passenger{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) InsertPool(ctx context.Context, p Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[p.ID] = p
	return nil
}

func (s *MemoryStore) GetPool(ctx context.Context, poolID string) (Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[poolID]
	if !ok {
		return Pool{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) UpdatePoolUnderLease(ctx context.Context, poolID string, mutate func(*Pool) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[poolID]
	if !ok {
		return ErrNotFound
	}
	if err := mutate(&p); err != nil {
		return err
	}
	p.Version++
	s.pools[poolID] = p
	return nil
}

func (s *MemoryStore) UpdatePoolByVersion(ctx context.Context, poolID string, expectedVersion int, mutate func(*Pool) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[poolID]
	if !ok {
		return ErrNotFound
	}
	if p.Version != expectedVersion {
		return ErrVersionConflict
	}
	if err := mutate(&p); err != nil {
		return err
	}
	p.Version++
	s.pools[poolID] = p
	return nil
}

func (s *MemoryStore) DeletePool(ctx context.Context, poolID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pools, poolID)
	delete(s.waypoints, poolID)
	return nil
}

func (s *MemoryStore) InsertWaypoint(ctx context.Context, w Waypoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waypoints[w.PoolID] = append(s.waypoints[w.PoolID], w)
	return nil
}

func (s *MemoryStore) DeleteWaypointsForPassenger(ctx context.Context, passengerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for poolID, wps := range s.waypoints {
		var kept []Waypoint
		for _, w := range wps {
			if w.PassengerID != passengerID {
				kept = append(kept, w)
			}
		}
		s.waypoints[poolID] = kept
	}
	return nil
}

func (s *MemoryStore) GetWaypoints(ctx context.Context, poolID string) ([]Waypoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wps := s.waypoints[poolID]
	out := make([]Waypoint, len(wps))
	copy(out, wps)
	return out, nil
}

func (s *MemoryStore) QueryPendingPassengers(ctx context.Context, limit int) ([]Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []Passenger
	for _, p := range s.passengers {
		if p.State == PassengerPending {
			pending = append(pending, p)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].RequestedAt.Before(pending[j].RequestedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *MemoryStore) QueryFormingPools(ctx context.Context, maxAgeMinutes int) ([]Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(maxAgeMinutes) * time.Minute)
	var forming []Pool
	for _, p := range s.pools {
		if p.State != PoolForming {
			continue
		}
		if maxAgeMinutes > 0 && p.FormedAt.Before(cutoff) {
			continue
		}
		forming = append(forming, p)
	}
	sort.Slice(forming, func(i, j int) bool {
		return forming[i].FormedAt.Before(forming[j].FormedAt)
	})
	return forming, nil
}

func (s *MemoryStore) GetSurgeZone(ctx context.Context, zoneID string) (SurgeZone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.surgeZones[zoneID]
	if !ok {
		return SurgeZone{ZoneID: zoneID, CurrentMultiplier: 1.0}, nil
	}
	return z, nil
}

func (s *MemoryStore) UpdateSurgeZone(ctx context.Context, zone SurgeZone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surgeZones[zone.ZoneID] = zone
	return nil
}

func (s *MemoryStore) ListSurgeZones(ctx context.Context) ([]SurgeZone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	zones := make([]SurgeZone, 0, len(s.surgeZones))
	for _, z := range s.surgeZones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ZoneID < zones[j].ZoneID })
	return zones, nil
}

var _ Store = (*MemoryStore)(nil)
