package enrich_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haulcommand/signal-engine/internal/enrich"
	"github.com/haulcommand/signal-engine/internal/signal"
)

func TestNominatimGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "Houston, TX" {
			t.Errorf("q = %s", q)
		}
		w.Write([]byte(`[{"lat":"29.7604","lon":"-95.3698","display_name":"Houston, Harris County, Texas"}]`))
	}))
	defer srv.Close()

	p := enrich.NewNominatimProvider(srv.URL, "", "signal-engine-test", srv.Client())
	place, err := p.Geocode(context.Background(), "Houston, TX")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if place.Lat != 29.7604 || place.Lng != -95.3698 {
		t.Fatalf("place = %+v", place)
	}
	if place.Label != "Houston, Harris County, Texas" {
		t.Fatalf("label = %s", place.Label)
	}
}

func TestNominatimGeocodeNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := enrich.NewNominatimProvider(srv.URL, "", "", srv.Client())
	_, err := p.Geocode(context.Background(), "nowhere at all")
	if !errors.Is(err, signal.ErrProviderNoResult) {
		t.Fatalf("err = %v, want ErrProviderNoResult", err)
	}
}

func TestNominatimStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, signal.ErrProviderTransient},
		{http.StatusBadGateway, signal.ErrProviderTransient},
		{http.StatusBadRequest, signal.ErrProviderPermanent},
		{http.StatusNotFound, signal.ErrProviderPermanent},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		p := enrich.NewNominatimProvider(srv.URL, "", "", srv.Client())
		_, err := p.Geocode(context.Background(), "x")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
		srv.Close()
	}
}

func TestOSRMRoutePolyline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"Ok","routes":[{"geometry":"_p~iF~ps|U_ulLnnqC"}]}`))
	}))
	defer srv.Close()

	p := enrich.NewNominatimProvider("", srv.URL, "", srv.Client())
	poly, err := p.GetRoutePolyline(context.Background(), "-95.37,29.76", "-97.74,30.27")
	if err != nil {
		t.Fatalf("GetRoutePolyline: %v", err)
	}
	if poly != "_p~iF~ps|U_ulLnnqC" {
		t.Fatalf("polyline = %q", poly)
	}
}

func TestOSRMNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	p := enrich.NewNominatimProvider("", srv.URL, "", srv.Client())
	_, err := p.GetRoutePolyline(context.Background(), "a", "b")
	if !errors.Is(err, signal.ErrProviderNoResult) {
		t.Fatalf("err = %v, want ErrProviderNoResult", err)
	}
}
