package fixtures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// Cursor carried by page_1.json.
const Page1Cursor = "3c5b0f5a-6e0b-4b1e-9d0b-2f7a0e7c9d11"

// fixturesDir returns the absolute path to the fixtures directory.
func fixturesDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}

// LoadAlchemyResponse loads a recorded alchemy_getAssetTransfers response.
func LoadAlchemyResponse(t *testing.T, filename string) []byte {
	t.Helper()
	path := filepath.Join(fixturesDir(), "alchemy", filename)
	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to load fixture response: %s", filename)
	return data
}

// AlchemyServer replays fixture files keyed by the incoming pageKey ("" for
// the first page).
type AlchemyServer struct {
	*httptest.Server
	requests atomic.Int32
}

// Requests returns how many JSON-RPC calls were served.
func (s *AlchemyServer) Requests() int { return int(s.requests.Load()) }

// NewAlchemyServer starts a server answering each pageKey with the named
// fixture. Unknown cursors get HTTP 404.
func NewAlchemyServer(t *testing.T, byCursor map[string]string) *AlchemyServer {
	t.Helper()
	bodies := make(map[string][]byte, len(byCursor))
	for cursor, name := range byCursor {
		bodies[cursor] = LoadAlchemyResponse(t, name)
	}

	s := &AlchemyServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		var req struct {
			Params []struct {
				PageKey string `json:"pageKey"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Params) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body, ok := bodies[req.Params[0].PageKey]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// TwoPageHistory maps cursors to the two-page fixture history: two records on
// the first page, one on the last.
func TwoPageHistory() map[string]string {
	return map[string]string{
		"":          "page_1.json",
		Page1Cursor: "page_2.json",
	}
}
