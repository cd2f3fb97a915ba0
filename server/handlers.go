package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/jobs"
	"github.com/hydrofabric/basinmap/selection"
	"github.com/hydrofabric/basinmap/settings"
	"github.com/hydrofabric/basinmap/version"
)

type coordinatePayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type interactionRequest struct {
	Coordinates coordinatePayload `json:"coordinates"`
}

// handleMapInteraction resolves a click to a basin, toggles it, and runs a
// synchronization pass. The overlay mutations stream to clients over /ws.
func (s *Server) handleMapInteraction(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req interactionRequest
	if readJSON(w, r, &req) != nil {
		return
	}

	res, err := s.ctrl.HandleClick(r.Context(), selection.Coordinate{
		Lat: req.Coordinates.Lat,
		Lng: req.Coordinates.Lng,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type vpuInteractionRequest struct {
	VPU      string            `json:"vpu"`
	Geometry *geojson.Geometry `json:"geometry"`
}

type vpuInteractionResponse struct {
	VPU    string `json:"vpu"`
	Active bool   `json:"active"`
	Count  int    `json:"count"`
}

// handleVPUInteraction bulk-toggles a whole VPU region.
func (s *Server) handleVPUInteraction(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req vpuInteractionRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if req.VPU == "" {
		writeError(w, http.StatusBadRequest, "vpu is required")
		return
	}

	active, count, err := s.ctrl.HandleVPUClick(r.Context(), req.VPU, req.Geometry)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vpuInteractionResponse{VPU: req.VPU, Active: active, Count: count})
}

// selectionKeys extracts the wb_ids from a selection-mapping body, sorted.
func selectionKeys(sel map[string]coordinatePayload) []string {
	ids := make([]string, 0, len(sel))
	for id := range sel {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// handleGeojsonFromWbids takes the selection mapping itself, wb_id to
// coordinate, and answers with the combined geometry.
func (s *Server) handleGeojsonFromWbids(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req map[string]coordinatePayload
	if readJSON(w, r, &req) != nil {
		return
	}

	fc, err := s.store.GeometriesFor(r.Context(), selectionKeys(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

// handleUpstreamGeojson takes a single-key mapping, wb_id to null.
func (s *Server) handleUpstreamGeojson(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req map[string]json.RawMessage
	if readJSON(w, r, &req) != nil {
		return
	}
	if len(req) != 1 {
		writeError(w, http.StatusBadRequest, "body must map exactly one wb_id")
		return
	}
	var id string
	for k := range req {
		id = k
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "wb_id is required")
		return
	}

	fcs, err := s.fetcher.UpstreamGeometry(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fcs)
}

// handleFlowlines takes the bare wb_id as a JSON string.
func (s *Server) handleFlowlines(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var id string
	if readJSON(w, r, &id) != nil {
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "wb_id is required")
		return
	}

	set, err := s.fetcher.Flowlines(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleVPU(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	fc, err := s.store.VPUBoundaries(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

type vpuMembersRequest struct {
	Geometry *geojson.Geometry `json:"geometry"`
}

type vpuMembersResponse struct {
	WbIDs map[string]coordinatePayload `json:"wb_ids"`
}

func (s *Server) handleWbidsFromVPU(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req vpuMembersRequest
	if readJSON(w, r, &req) != nil {
		return
	}

	members, err := s.fetcher.WbidsForVPU(r.Context(), req.Geometry)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make(map[string]coordinatePayload, len(members))
	for id, c := range members {
		out[id] = coordinatePayload{Lat: c.Lat, Lng: c.Lng}
	}
	writeJSON(w, http.StatusOK, vpuMembersResponse{WbIDs: out})
}

// handleMapData proxies tile metadata lookups for basemap configuration.
func (s *Server) handleMapData(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	tileURL := r.URL.Query().Get("url")
	if tileURL == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	bounds, err := s.fetcher.TileBounds(r.Context(), tileURL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bounds": bounds})
}

// handleSubset cuts a hydrofabric subset and answers with the output
// directory path as text. The body is a selection mapping. With a job pool
// the work runs through the queue; without one it runs inline.
func (s *Server) handleSubset(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var sel map[string]coordinatePayload
	if readJSON(w, r, &sel) != nil {
		return
	}
	req := jobs.SubsetRequest{WbIDs: selectionKeys(sel)}
	if len(req.WbIDs) == 0 {
		writeError(w, http.StatusBadRequest, "no basins selected")
		return
	}

	if s.pool == nil {
		outDir, err := jobs.Subset(r.Context(), s.store, s.cfg.Output.Dir, req.WbIDs, s.log)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeText(w, http.StatusOK, outDir)
		return
	}

	job, err := s.jobStore.Enqueue(r.Context(), jobs.HandlerSubset, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.finishJob(w, r, job.ID)
}

// handleForcings validates the request before any job is created; a bad
// time range must not leave a failed job behind.
func (s *Server) handleForcings(w http.ResponseWriter, r *http.Request) {
	s.handleTimeRangeJob(w, r, jobs.HandlerForcings, jobs.Forcings)
}

func (s *Server) handleRealization(w http.ResponseWriter, r *http.Request) {
	s.handleTimeRangeJob(w, r, jobs.HandlerRealization, jobs.Realization)
}

func (s *Server) handleTimeRangeJob(w http.ResponseWriter, r *http.Request, handler string,
	direct func(ctx context.Context, tr jobs.TimeRange, log *zap.SugaredLogger) (string, error)) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var tr jobs.TimeRange
	if readJSON(w, r, &tr) != nil {
		return
	}
	if err := tr.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	if s.pool == nil {
		result, err := direct(r.Context(), tr, s.log)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeText(w, http.StatusOK, result)
		return
	}

	job, err := s.jobStore.Enqueue(r.Context(), handler, tr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.finishJob(w, r, job.ID)
}

// finishJob waits for a queued job and writes its result as text, or its
// error with a 500.
func (s *Server) finishJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.pool.Wait(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if job.Status == jobs.StatusFailed {
		writeError(w, http.StatusInternalServerError, job.Error)
		return
	}
	writeText(w, http.StatusOK, job.Result)
}

// handleJobs lists jobs, or returns one by ?id=.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.jobStore == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue not configured")
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		job, err := s.jobStore.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
		return
	}

	list, err := s.jobStore.List(r.Context(), 50)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type settingChange struct {
	Path  string         `json:"path"`
	Value settings.Value `json:"value"`
}

// handleSettings reads the whole settings tree (GET) or applies one leaf
// change (POST). The POST shape matches the settings sync sink, so one
// basinmap instance can mirror display settings into another.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.settings.Group(""))
	case http.MethodPost:
		var change settingChange
		if readJSON(w, r, &change) != nil {
			return
		}
		if change.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		s.settings.Set(change.Path, change.Value)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleHealth reports liveness plus engine and selection gauges.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	s.mu.RLock()
	clients := len(s.clients)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  version.Get().Short(),
		"selected": s.sel.Len(),
		"pending":  s.eng.PendingCount(),
		"clients":  clients,
	})
}
