// Package backend is the typed HTTP client for the map data service. It
// implements engine.Fetcher so the engine never touches HTTP directly.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/engine"
	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/internal/httpclient"
	"github.com/hydrofabric/basinmap/selection"
)

const defaultTimeout = 60 * time.Second

// Client speaks the map data API. Base-URL requests use a plain client
// (the service usually runs on localhost); caller-supplied tile URLs go
// through the SSRF-guarded proxy client instead.
type Client struct {
	base  string
	http  *http.Client
	proxy *httpclient.SaferClient
	log   *zap.SugaredLogger
}

// New creates a client for the service at base, e.g. "http://localhost:8765".
func New(base string, log *zap.SugaredLogger) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		http:  &http.Client{Timeout: defaultTimeout},
		proxy: httpclient.NewSaferClient(defaultTimeout),
		log:   log,
	}
}

// NewWithHTTPClient substitutes the transport, for tests against httptest
// servers.
func NewWithHTTPClient(base string, hc *http.Client, log *zap.SugaredLogger) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		http:  hc,
		proxy: httpclient.WrapClient(hc),
		log:   log,
	}
}

// postJSON sends body as JSON and decodes the response into out. A non-2xx
// status becomes an error carrying the response text.
func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "encoding request for %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "building request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Wrapf(errors.ErrUnavailable, "%s returned %d: %s",
			path, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding response from %s", path)
	}
	return nil
}

// postText sends body as JSON and returns the response body as trimmed text.
func (c *Client) postText(ctx context.Context, path string, body interface{}) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrapf(err, "encoding request for %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrapf(err, "building request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "calling %s", path)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrapf(err, "reading response from %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Wrapf(errors.ErrUnavailable, "%s returned %d: %s",
			path, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return strings.TrimSpace(string(text)), nil
}

type coordinatePayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type interactionRequest struct {
	Coordinates coordinatePayload `json:"coordinates"`
}

type interactionResponse struct {
	WbID string `json:"wb_id"`
}

// ResolveClick maps a click location to a basin id. Empty means no basin.
func (c *Client) ResolveClick(ctx context.Context, coord selection.Coordinate) (string, error) {
	var out interactionResponse
	err := c.postJSON(ctx, "/handle_map_interaction", interactionRequest{
		Coordinates: coordinatePayload{Lat: coord.Lat, Lng: coord.Lng},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.WbID, nil
}

// SelectedGeometry fetches the combined geometry for the whole selection.
// The request body is the selection mapping itself, wb_id to coordinate.
func (c *Client) SelectedGeometry(ctx context.Context, sel map[string]selection.Coordinate) (*geojson.FeatureCollection, error) {
	var out geojson.FeatureCollection
	err := c.postJSON(ctx, "/get_geojson_from_wbids", sel, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpstreamGeometry fetches the upstream derived layers for one basin,
// keyed by layer name. The request body is a single-key mapping with a
// null value.
func (c *Client) UpstreamGeometry(ctx context.Context, id string) (map[string]*geojson.FeatureCollection, error) {
	out := make(map[string]*geojson.FeatureCollection)
	err := c.postJSON(ctx, "/get_upstream_geojson_from_wbids", map[string]interface{}{id: nil}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Flowlines fetches the downstream flowline set for one basin. The request
// body is the bare basin id as a JSON string.
func (c *Client) Flowlines(ctx context.Context, id string) (*engine.FlowlineSet, error) {
	var out engine.FlowlineSet
	err := c.postJSON(ctx, "/get_flowlines_from_wbids", id, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VPUBoundaries fetches the VPU region polygons.
func (c *Client) VPUBoundaries(ctx context.Context) (*geojson.FeatureCollection, error) {
	var out geojson.FeatureCollection
	err := c.postJSON(ctx, "/get_vpu", struct{}{}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type vpuMembersRequest struct {
	Geometry *geojson.Geometry `json:"geometry"`
}

type vpuMembersResponse struct {
	WbIDs map[string]coordinatePayload `json:"wb_ids"`
}

// WbidsForVPU resolves a region polygon to its member basins.
func (c *Client) WbidsForVPU(ctx context.Context, geom *geojson.Geometry) (map[string]selection.Coordinate, error) {
	var out vpuMembersResponse
	err := c.postJSON(ctx, "/get_wbids_from_vpu", vpuMembersRequest{Geometry: geom}, &out)
	if err != nil {
		return nil, err
	}
	members := make(map[string]selection.Coordinate, len(out.WbIDs))
	for id, p := range out.WbIDs {
		members[id] = selection.Coordinate{Lat: p.Lat, Lng: p.Lng}
	}
	return members, nil
}

// TileBounds looks up tile coverage for a basemap source URL through the
// service's metadata proxy. The tile URL is caller-supplied, so it is
// validated before being forwarded.
func (c *Client) TileBounds(ctx context.Context, tileURL string) ([4]float64, error) {
	var bounds [4]float64
	if _, err := c.proxy.ValidateURL(tileURL); err != nil {
		return bounds, errors.Wrap(err, "tile url rejected")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/get_map_data?url="+url.QueryEscape(tileURL), nil)
	if err != nil {
		return bounds, errors.Wrap(err, "building tile bounds request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return bounds, errors.Wrap(err, "calling /get_map_data")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return bounds, errors.Wrapf(errors.ErrUnavailable, "/get_map_data returned %d", resp.StatusCode)
	}
	var meta struct {
		Bounds [4]float64 `json:"bounds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return bounds, errors.Wrap(err, "decoding tile metadata")
	}
	return meta.Bounds, nil
}

// Subset asks the service to cut a hydrofabric subset for the given basins.
// The body is a selection mapping; callers without click locations send
// zero coordinates. The response is the output directory path.
func (c *Client) Subset(ctx context.Context, ids []string) (string, error) {
	body := make(map[string]coordinatePayload, len(ids))
	for _, id := range ids {
		body[id] = coordinatePayload{}
	}
	return c.postText(ctx, "/subset", body)
}

// TimeRange is the forcings/realization job window, "2006-01-02T15:04" local.
type TimeRange struct {
	ForcingDir string `json:"forcing_dir"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// Forcings requests forcings generation over the subset output directory.
func (c *Client) Forcings(ctx context.Context, tr TimeRange) (string, error) {
	return c.postText(ctx, "/forcings", tr)
}

// Realization requests realization configuration for the subset output.
func (c *Client) Realization(ctx context.Context, tr TimeRange) (string, error) {
	return c.postText(ctx, "/realization", tr)
}

var _ engine.Fetcher = (*Client)(nil)
