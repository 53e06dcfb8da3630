// Package osrm wraps the OSRM /route/v1/driving endpoint used to snap stop
// sequences onto the road network.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/wonju-bus-map/snapper/internal/config"
	"github.com/wonju-bus-map/snapper/internal/metrics"
)

// Geometry encodings supported by the public OSRM server.
const (
	GeometryGeoJSON  = "geojson"
	GeometryPolyline = "polyline" // Google encoded polyline, 1e-5 precision
)

// Client calls an OSRM routing engine. Transport failures are retried with a
// fixed delay; protocol failures (bad status, empty geometry) are not.
type Client struct {
	baseURL     string
	geometry    string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
	metrics     *metrics.Collector
}

// NewClient creates an OSRM client. geometry selects the response encoding
// (GeometryGeoJSON or GeometryPolyline); anything else falls back to GeoJSON.
func NewClient(baseURL, geometry string, m *metrics.Collector) *Client {
	if geometry != GeometryPolyline {
		geometry = GeometryGeoJSON
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		geometry: geometry,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		maxAttempts: config.OSRMMaxAttempts,
		retryDelay:  config.OSRMRetryDelay,
		metrics:     m,
	}
}

// Route requests a driving route through the given (lon, lat) points in
// order and returns the first candidate's geometry. Any failure is returned
// as an error; callers treat it as a missing result, never as fatal.
func (c *Client) Route(ctx context.Context, points [][2]float64) ([][2]float64, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 points, got %d", len(points))
	}

	var sb strings.Builder
	for i, p := range points {
		if i > 0 {
			sb.WriteByte(';')
		}
		fmt.Fprintf(&sb, "%.6f,%.6f", p[0], p[1])
	}

	url := fmt.Sprintf("%s/%s?overview=full&geometries=%s&steps=false&continue_straight=true",
		c.baseURL, sb.String(), c.geometry)

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if c.metrics != nil {
			c.metrics.OSRMRequests.Inc()
			c.metrics.ObserveOSRMLatency(time.Since(start))
		}
		if err != nil {
			// Transport-level failure: connection refused, timeout, reset.
			if attempt < c.maxAttempts {
				log.Printf("OSRM: request failed (attempt %d/%d): %v. Retrying in %v...",
					attempt, c.maxAttempts, err, c.retryDelay)
				if c.metrics != nil {
					c.metrics.OSRMRetries.Inc()
				}
				select {
				case <-time.After(c.retryDelay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				continue
			}
			log.Printf("OSRM: request failed after %d attempts: %v", c.maxAttempts, err)
			if c.metrics != nil {
				c.metrics.OSRMFailures.Inc()
			}
			return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, err)
		}

		coords, err := c.decodeResponse(resp, url)
		if err != nil {
			if c.metrics != nil {
				c.metrics.OSRMFailures.Inc()
			}
			return nil, err
		}
		return coords, nil
	}
}

// decodeResponse validates the HTTP status and extracts the first route's
// geometry. Always consumes and closes the body.
func (c *Client) decodeResponse(resp *http.Response, url string) ([][2]float64, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("OSRM: status %d for %s: %s", resp.StatusCode, url, string(body))
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var parsed struct {
		Code   string `json:"code"`
		Routes []struct {
			Geometry json.RawMessage `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("OSRM: failed to parse response JSON: %v", err)
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(parsed.Routes) == 0 || len(parsed.Routes[0].Geometry) == 0 {
		log.Printf("OSRM: response contained no routes (code=%q)", parsed.Code)
		return nil, fmt.Errorf("no routes in response (code=%q)", parsed.Code)
	}

	coords, err := decodeGeometry(parsed.Routes[0].Geometry, c.geometry)
	if err != nil {
		log.Printf("OSRM: failed to decode geometry: %v", err)
		return nil, err
	}
	if len(coords) == 0 {
		log.Printf("OSRM: returned empty coordinates array")
		return nil, fmt.Errorf("empty geometry")
	}
	return coords, nil
}

func decodeGeometry(raw json.RawMessage, format string) ([][2]float64, error) {
	if format == GeometryPolyline {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("geometry is not an encoded polyline: %w", err)
		}
		pairs, _, err := polyline.DecodeCoords([]byte(encoded))
		if err != nil {
			return nil, fmt.Errorf("decode polyline: %w", err)
		}
		// DecodeCoords yields [lat, lng]; the rest of the pipeline is (lon, lat).
		coords := make([][2]float64, len(pairs))
		for i, p := range pairs {
			coords[i] = [2]float64{p[1], p[0]}
		}
		return coords, nil
	}

	var geom struct {
		Coordinates [][2]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &geom); err != nil {
		return nil, fmt.Errorf("geometry is not GeoJSON: %w", err)
	}
	return geom.Coordinates, nil
}
