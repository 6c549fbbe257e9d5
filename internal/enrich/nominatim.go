package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/haulcommand/signal-engine/internal/signal"
)

// NominatimProvider implements RouteProvider against OSM Nominatim for
// geocoding and OSRM for route polylines. HTTP status codes map onto the
// provider error taxonomy: 5xx and 429 are transient, other 4xx permanent,
// an empty result set is no-result.
type NominatimProvider struct {
	geocodeURL string
	routeURL   string
	userAgent  string
	client     *http.Client
}

func NewNominatimProvider(geocodeURL, routeURL, userAgent string, client *http.Client) *NominatimProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if geocodeURL == "" {
		geocodeURL = "https://nominatim.openstreetmap.org"
	}
	if routeURL == "" {
		routeURL = "https://router.project-osrm.org"
	}
	return &NominatimProvider{
		geocodeURL: strings.TrimRight(geocodeURL, "/"),
		routeURL:   strings.TrimRight(routeURL, "/"),
		userAgent:  userAgent,
		client:     client,
	}
}

func (p *NominatimProvider) Geocode(ctx context.Context, query string) (Place, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	endpoint := p.geocodeURL + "/search?" + q.Encode()

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return Place{}, err
	}
	var hits []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(body, &hits); err != nil {
		return Place{}, fmt.Errorf("%w: decode geocode response: %v", signal.ErrProviderTransient, err)
	}
	if len(hits) == 0 {
		return Place{}, fmt.Errorf("%w: %q", signal.ErrProviderNoResult, query)
	}
	lat, latErr := strconv.ParseFloat(hits[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(hits[0].Lon, 64)
	if latErr != nil || lngErr != nil {
		return Place{}, fmt.Errorf("%w: unparseable coordinates for %q", signal.ErrProviderPermanent, query)
	}
	return Place{Lat: lat, Lng: lng, Label: hits[0].DisplayName}, nil
}

func (p *NominatimProvider) GetRoutePolyline(ctx context.Context, origin, destination string) (string, error) {
	endpoint := fmt.Sprintf("%s/route/v1/driving/%s;%s?overview=full&geometries=polyline",
		p.routeURL, url.PathEscape(origin), url.PathEscape(destination))

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	var resp struct {
		Code   string `json:"code"`
		Routes []struct {
			Geometry string `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode route response: %v", signal.ErrProviderTransient, err)
	}
	switch {
	case resp.Code == "NoRoute" || len(resp.Routes) == 0:
		return "", fmt.Errorf("%w: no route %s -> %s", signal.ErrProviderNoResult, origin, destination)
	case resp.Code != "Ok":
		return "", fmt.Errorf("%w: router code %s", signal.ErrProviderPermanent, resp.Code)
	}
	return resp.Routes[0].Geometry, nil
}

func (p *NominatimProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", signal.ErrProviderPermanent, err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", signal.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", signal.ErrProviderTransient, err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", signal.ErrProviderTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", signal.ErrProviderPermanent, resp.StatusCode)
	}
}
