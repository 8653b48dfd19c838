package assignment

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"

	"mealtrail-backend/internal/geo"
	"mealtrail-backend/internal/models"
)

// SearchRadiusKm bounds the initial candidate lookup. Partners beyond it are
// only considered on the fallback scan when the radius search comes up empty.
const SearchRadiusKm = 20.0

// ErrNoCandidate is returned when no available partner exists at all. It is a
// valid "unassigned" outcome, not a failure - the order stays pending for a
// later retry.
var ErrNoCandidate = errors.New("no available delivery partner")

// PartnerFinder is the registry capability the engine needs.
type PartnerFinder interface {
	FindCandidates(originLat, originLng, maxRadiusKm float64) []models.DeliveryPartner
}

// RestaurantLocator resolves a restaurant's stored coordinates.
// An error means the coordinates are unknown, not that assignment must fail.
type RestaurantLocator interface {
	RestaurantPoint(ctx context.Context, restaurantID string) (lat, lng float64, err error)
}

// Engine picks the best available delivery partner for a restaurant: nearest
// first, current workload as tie-break. It is pure - binding the partner to
// the order and bumping their workload is the caller's job, which keeps the
// selection independently testable.
type Engine struct {
	partners    PartnerFinder
	restaurants RestaurantLocator
}

func NewEngine(partners PartnerFinder, restaurants RestaurantLocator) *Engine {
	return &Engine{partners: partners, restaurants: restaurants}
}

// Assign returns the id of the best available partner for the restaurant,
// or ErrNoCandidate when no partner is available.
func (e *Engine) Assign(ctx context.Context, restaurantID string) (string, error) {
	lat, lng, err := e.restaurants.RestaurantPoint(ctx, restaurantID)
	if err != nil {
		// Unknown restaurant coordinates: every candidate is infinitely far
		// away and selection degrades to pure workload ordering.
		log.Printf("⚠️ Assignment: restaurant %s has no usable coordinates (%v), ranking by workload only", restaurantID, err)
		lat, lng = math.NaN(), math.NaN()
	}

	candidates := e.partners.FindCandidates(lat, lng, SearchRadiusKm)
	if len(candidates) == 0 {
		// Nobody inside the radius - scan all available partners before
		// declaring the order unassignable.
		candidates = e.partners.FindCandidates(lat, lng, math.Inf(1))
	}
	if len(candidates) == 0 {
		return "", ErrNoCandidate
	}

	type scored struct {
		partner    models.DeliveryPartner
		distanceKm float64
	}
	ranked := make([]scored, len(candidates))
	for i, p := range candidates {
		d := math.Inf(1)
		if p.Location != nil {
			d = geo.DistanceKm(lat, lng, p.Location.Latitude, p.Location.Longitude)
		}
		ranked[i] = scored{partner: p, distanceKm: d}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].distanceKm != ranked[j].distanceKm {
			return ranked[i].distanceKm < ranked[j].distanceKm
		}
		if ranked[i].partner.ActiveOrders != ranked[j].partner.ActiveOrders {
			return ranked[i].partner.ActiveOrders < ranked[j].partner.ActiveOrders
		}
		// Stable outcome regardless of map iteration order.
		return ranked[i].partner.ID < ranked[j].partner.ID
	})

	best := ranked[0]
	log.Printf("✅ Assignment: restaurant %s -> partner %s (%.2f km away, %d active orders)",
		restaurantID, best.partner.ID, best.distanceKm, best.partner.ActiveOrders)
	return best.partner.ID, nil
}
