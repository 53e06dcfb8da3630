package tago

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractItems(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
	}{
		{
			"array of items",
			`{"response":{"body":{"items":{"item":[{"a":1},{"a":2}]}}}}`,
			2,
		},
		{
			"single bare object",
			`{"response":{"body":{"items":{"item":{"a":1}}}}}`,
			1,
		},
		{
			"empty string items",
			`{"response":{"body":{"items":""}}}`,
			0,
		},
		{
			"missing items",
			`{"response":{"body":{}}}`,
			0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items, err := extractItems([]byte(tc.body))
			if err != nil {
				t.Fatalf("extractItems returned error: %v", err)
			}
			if len(items) != tc.count {
				t.Errorf("got %d items, want %d", len(items), tc.count)
			}
		})
	}
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		raw  string
		want FlexString
	}{
		{`"30-1"`, "30-1"},
		{`30`, "30"},
		{`30.0`, "30.0"},
		{`null`, ""},
		{`true`, "UNKNOWN"},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			var f FlexString
			if err := json.Unmarshal([]byte(tc.raw), &f); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.raw, err)
			}
			if f != tc.want {
				t.Errorf("FlexString(%s) = %q, want %q", tc.raw, f, tc.want)
			}
		})
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		raw  string
		want FlexInt
	}{
		{`1`, 1},
		{`"1"`, 1},
		{`"0"`, 0},
		{`null`, 0},
		{`"garbage"`, 0},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			var f FlexInt
			if err := json.Unmarshal([]byte(tc.raw), &f); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.raw, err)
			}
			if f != tc.want {
				t.Errorf("FlexInt(%s) = %d, want %d", tc.raw, f, tc.want)
			}
		})
	}
}

func TestRouteStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("cityCode") != "32020" {
			t.Errorf("cityCode = %q, want 32020", q.Get("cityCode"))
		}
		if q.Get("routeId") != "WJB251000001" {
			t.Errorf("routeId = %q, want WJB251000001", q.Get("routeId"))
		}
		if q.Get("serviceKey") != "test-key" {
			t.Errorf("serviceKey = %q, want test-key", q.Get("serviceKey"))
		}

		fmt.Fprint(w, `{"response":{"body":{"items":{"item":[
			{"nodeid":"WJB1","nodenm":"Terminal","nodeord":1,"nodeno":1001,"gpslati":37.34,"gpslong":127.95,"updowncd":0},
			{"nodeid":"WJB2","nodenm":"City Hall","nodeord":2,"nodeno":"1002","gpslati":37.35,"gpslong":127.96,"updowncd":"1"}
		]}}}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "32020")
	stops, err := c.RouteStops(context.Background(), "WJB251000001")
	if err != nil {
		t.Fatalf("RouteStops returned error: %v", err)
	}

	if len(stops) != 2 {
		t.Fatalf("got %d stops, want 2", len(stops))
	}
	if stops[0].NodeNo != "1001" || stops[1].NodeNo != "1002" {
		t.Errorf("node numbers = %q, %q; flexible decode failed", stops[0].NodeNo, stops[1].NodeNo)
	}
	if stops[1].UpDownCd != 1 {
		t.Errorf("updowncd = %d, want 1", stops[1].UpDownCd)
	}
}

func TestRouteListSingleRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Single-route cities return a bare object instead of an array.
		fmt.Fprint(w, `{"response":{"body":{"items":{"item":{"routeid":"WJB1","routeno":30}}}}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "32020")
	routes, err := c.RouteList(context.Background())
	if err != nil {
		t.Fatalf("RouteList returned error: %v", err)
	}
	if len(routes) != 1 || routes[0].RouteNo != "30" {
		t.Errorf("routes = %+v, want one route numbered 30", routes)
	}
}
