package enrich

import "context"

// Place is a resolved geocoding result.
type Place struct {
	Lat   float64
	Lng   float64
	Label string
}

// RouteProvider is the external geocoding/routing dependency. Implementations
// must surface failures through the signal error taxonomy so the worker can
// distinguish "no result" from "transient outage" from "invalid query":
// wrap signal.ErrProviderNoResult, signal.ErrProviderTransient, or
// signal.ErrProviderPermanent respectively.
type RouteProvider interface {
	Geocode(ctx context.Context, query string) (Place, error)
	GetRoutePolyline(ctx context.Context, origin, destination string) (string, error)
}
