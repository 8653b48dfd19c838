package registry

import (
	"errors"
	"hash/fnv"
	"log"
	"math"
	"sync"
	"time"

	"mealtrail-backend/internal/geo"
	"mealtrail-backend/internal/models"
)

const shardCount = 16

// ErrBadCoordinates is returned when a location report carries a non-finite
// latitude or longitude. The report is rejected before any state mutation.
var ErrBadCoordinates = errors.New("latitude and longitude must be finite")

type shard struct {
	mu       sync.RWMutex
	partners map[string]*models.DeliveryPartner
}

// Registry holds delivery-partner availability, workload and last known
// location. State is in-memory and sharded by partner id so that location
// reports from many partners never contend on a single lock. Everything here
// is transient and rebuilt from live reports after a restart.
type Registry struct {
	shards [shardCount]*shard
	now    func() time.Time
}

func New() *Registry {
	r := &Registry{now: time.Now}
	for i := range r.shards {
		r.shards[i] = &shard{partners: make(map[string]*models.DeliveryPartner)}
	}
	return r
}

func (r *Registry) shardFor(partnerID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(partnerID))
	return r.shards[h.Sum32()%shardCount]
}

// SetAvailability marks a partner available or unavailable. Idempotent;
// creates the partner's record on first use.
func (r *Registry) SetAvailability(partnerID string, available bool) {
	s := r.shardFor(partnerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partners[partnerID]
	if p == nil {
		p = &models.DeliveryPartner{ID: partnerID}
		s.partners[partnerID] = p
	}
	p.IsAvailable = available
}

// ReportLocation upserts the partner's last known location with the current
// timestamp. Non-finite coordinates are rejected without touching state.
func (r *Registry) ReportLocation(partnerID string, lat, lng float64) error {
	if !geo.IsFinite(lat) || !geo.IsFinite(lng) {
		return ErrBadCoordinates
	}

	s := r.shardFor(partnerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partners[partnerID]
	if p == nil {
		p = &models.DeliveryPartner{ID: partnerID}
		s.partners[partnerID] = p
	}
	p.Location = &models.PartnerLocation{
		Latitude:  lat,
		Longitude: lng,
		Timestamp: r.now().Unix(),
	}
	return nil
}

// Get returns a copy of the partner's registry record.
func (r *Registry) Get(partnerID string) (models.DeliveryPartner, bool) {
	s := r.shardFor(partnerID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.partners[partnerID]
	if p == nil {
		return models.DeliveryPartner{}, false
	}
	return copyPartner(p), true
}

// FindCandidates returns available partners within maxRadiusKm of the origin.
//
// When the geospatial path is unusable - a non-finite origin, or no available
// partner has reported a location yet - it degrades to returning all available
// partners instead of an empty set. Missing geo capability must never starve
// assignment on its own.
func (r *Registry) FindCandidates(originLat, originLng, maxRadiusKm float64) []models.DeliveryPartner {
	available := r.availablePartners()

	if !geo.IsFinite(originLat) || !geo.IsFinite(originLng) {
		log.Printf("⚠️ Registry: origin coordinates unusable, falling back to unfiltered scan (%d partners)", len(available))
		return available
	}

	anyLocated := false
	for _, p := range available {
		if p.Location != nil {
			anyLocated = true
			break
		}
	}
	if !anyLocated {
		if len(available) > 0 {
			log.Printf("⚠️ Registry: no partner locations reported yet, falling back to unfiltered scan (%d partners)", len(available))
		}
		return available
	}

	candidates := make([]models.DeliveryPartner, 0, len(available))
	for _, p := range available {
		if distanceToOrigin(p, originLat, originLng) <= maxRadiusKm {
			candidates = append(candidates, p)
		}
	}
	return candidates
}

// IncrementWorkload adjusts a partner's active-order counter by delta.
// The counter is clamped at zero, it can never go negative.
func (r *Registry) IncrementWorkload(partnerID string, delta int) {
	s := r.shardFor(partnerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partners[partnerID]
	if p == nil {
		p = &models.DeliveryPartner{ID: partnerID}
		s.partners[partnerID] = p
	}
	p.ActiveOrders += delta
	if p.ActiveOrders < 0 {
		p.ActiveOrders = 0
	}
}

// All returns a copy of every registered partner, for dashboard listings.
func (r *Registry) All() []models.DeliveryPartner {
	var out []models.DeliveryPartner
	for _, s := range r.shards {
		s.mu.RLock()
		for _, p := range s.partners {
			out = append(out, copyPartner(p))
		}
		s.mu.RUnlock()
	}
	return out
}

func (r *Registry) availablePartners() []models.DeliveryPartner {
	var out []models.DeliveryPartner
	for _, s := range r.shards {
		s.mu.RLock()
		for _, p := range s.partners {
			if p.IsAvailable {
				out = append(out, copyPartner(p))
			}
		}
		s.mu.RUnlock()
	}
	return out
}

func distanceToOrigin(p models.DeliveryPartner, originLat, originLng float64) float64 {
	if p.Location == nil {
		return math.Inf(1)
	}
	return geo.DistanceKm(originLat, originLng, p.Location.Latitude, p.Location.Longitude)
}

func copyPartner(p *models.DeliveryPartner) models.DeliveryPartner {
	out := *p
	if p.Location != nil {
		loc := *p.Location
		out.Location = &loc
	}
	return out
}
