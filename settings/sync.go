package settings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hydrofabric/basinmap/logger"
)

// changeEvent is the wire form of one leaf-level settings change.
type changeEvent struct {
	Path  string `json:"path"`
	Value Value  `json:"value"`
}

// NewHTTPSync returns a SyncFunc that POSTs each leaf change to url as JSON.
// Failures are logged and dropped; settings sync is best-effort. The target
// is operator-configured and commonly a localhost sink, so this uses a plain
// client rather than the guarded one for untrusted URLs.
func NewHTTPSync(url string) SyncFunc {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(path string, value Value) {
		body, err := json.Marshal(changeEvent{Path: path, Value: value})
		if err != nil {
			logger.Warnw("Settings sync marshal failed", "path", path, "error", err)
			return
		}
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			logger.Warnw("Settings sync request failed", "path", path, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			logger.Warnw("Settings sync POST failed", "path", path, "error", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			logger.Warnw("Settings sync rejected", "path", path, "status", resp.StatusCode)
		}
	}
}
