// Package tago fetches bus route and stop data from the Korean national
// public transit API (data.go.kr BusRouteInfoInqireService).
package tago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client calls the TAGO bus route API for one city.
type Client struct {
	baseURL    string
	serviceKey string
	cityCode   string
	httpClient *http.Client
}

func NewClient(baseURL, serviceKey, cityCode string) *Client {
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		cityCode:   cityCode,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RouteSummary identifies one route from the route number listing.
type RouteSummary struct {
	RouteID string     `json:"routeid"`
	RouteNo FlexString `json:"routeno"`
}

// StopItem is one stop of a route as returned by the stop listing. The API
// is loosely typed: numeric fields arrive as strings or numbers depending
// on their content, hence the Flex types.
type StopItem struct {
	NodeID   string     `json:"nodeid"`
	NodeName string     `json:"nodenm"`
	NodeOrd  int64      `json:"nodeord"`
	NodeNo   FlexString `json:"nodeno"`
	GPSLat   float64    `json:"gpslati"`
	GPSLong  float64    `json:"gpslong"`
	UpDownCd FlexInt    `json:"updowncd"`
}

// RouteList fetches every route of the configured city.
func (c *Client) RouteList(ctx context.Context) ([]RouteSummary, error) {
	body, err := c.get(ctx, "getRouteNoList", nil)
	if err != nil {
		return nil, err
	}

	items, err := extractItems(body)
	if err != nil {
		return nil, fmt.Errorf("route list: %w", err)
	}

	routes := make([]RouteSummary, 0, len(items))
	for _, raw := range items {
		var r RouteSummary
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("route list item: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, nil
}

// RouteStops fetches the ordered stop list for one route. An empty result
// is not an error; some routes simply have no published stops.
func (c *Client) RouteStops(ctx context.Context, routeID string) ([]StopItem, error) {
	body, err := c.get(ctx, "getRouteAcctoThrghSttnList", url.Values{"routeId": {routeID}})
	if err != nil {
		return nil, err
	}

	items, err := extractItems(body)
	if err != nil {
		return nil, fmt.Errorf("stops for route %s: %w", routeID, err)
	}

	stops := make([]StopItem, 0, len(items))
	for _, raw := range items {
		var s StopItem
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("stop item for route %s: %w", routeID, err)
		}
		stops = append(stops, s)
	}
	return stops, nil
}

func (c *Client) get(ctx context.Context, operation string, extra url.Values) ([]byte, error) {
	params := url.Values{
		"cityCode":   {c.cityCode},
		"numOfRows":  {"2048"},
		"pageNo":     {"1"},
		"serviceKey": {c.serviceKey},
		"_type":      {"json"},
	}
	for k, vs := range extra {
		params[k] = vs
	}

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, operation, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", operation, resp.StatusCode)
	}

	var buf json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&buf); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", operation, err)
	}
	return buf, nil
}

// extractItems unwraps the TAGO response envelope. The items.item field is
// an array for multiple results but a bare object for a single one.
func extractItems(body []byte) ([]json.RawMessage, error) {
	var envelope struct {
		Response struct {
			Body struct {
				Items struct {
					Item json.RawMessage `json:"item"`
				} `json:"items"`
			} `json:"body"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unwrap envelope: %w", err)
	}

	raw := bytes.TrimSpace(envelope.Response.Body.Items.Item)
	if len(raw) == 0 {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("item array: %w", err)
		}
		return items, nil
	case '{':
		return []json.RawMessage{raw}, nil
	default:
		// The API emits "items": "" when there is nothing to return.
		return nil, nil
	}
}
