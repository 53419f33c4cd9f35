//go:build integration

package webfetch

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a local Chrome/Chromium; run with -tags integration.
func TestBrowserFetcherRendersScriptedContent(t *testing.T) {
	page := `<html><head><title>Dynamic Acme</title></head><body>
<div id="root"></div>
<script>document.getElementById("root").textContent = "Rendered: Acme ships robot fleets.";</script>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	b := NewBrowserFetcher()
	defer b.Shutdown()

	got, err := b.Fetch(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Dynamic Acme", got.Title)
	assert.Contains(t, got.Content, "Rendered: Acme ships robot fleets.")
}
