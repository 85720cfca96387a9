package htmlkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom", r.Header.Get("X-Test"))
		assert.Contains(t, r.Header.Get("User-Agent"), "OutreachBot")
		_, _ = w.Write([]byte("<html><body><h1>Bienvenue</h1></body></html>")) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher()
	page, err := f.Fetch(context.Background(), srv.URL+"/old", map[string]string{"X-Test": "custom"}, 0)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new", page.URL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "Bienvenue")
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL, nil, time.Second)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFetch_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>Checking your browser before accessing</html>")) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL, nil, time.Second)
	assert.True(t, eris.Is(err, ErrBlocked))
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL, nil, 50*time.Millisecond)
	require.Error(t, err)
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		body string
		want BlockType
	}{
		{"nil response", nil, "", BlockNone},
		{"cloudflare header", &http.Response{StatusCode: 403, Header: http.Header{"Cf-Ray": {"abc"}}}, "", BlockCloudflare},
		{"cloudflare server", &http.Response{StatusCode: 503, Header: http.Header{"Server": {"cloudflare"}}}, "", BlockCloudflare},
		{"captcha page", &http.Response{StatusCode: 200, Header: http.Header{}}, "<html>Please complete the reCAPTCHA</html>", BlockCaptcha},
		{"js shell", &http.Response{StatusCode: 200, Header: http.Header{}}, "<html><noscript>Enable JavaScript</noscript></html>", BlockJSShell},
		{"clean page", &http.Response{StatusCode: 200, Header: http.Header{}}, "<html><body>Boulangerie artisanale</body></html>", BlockNone},
		{"large page with contact captcha", &http.Response{StatusCode: 200, Header: http.Header{}}, "<html>" + strings.Repeat("contenu ", 4000) + "recaptcha</html>", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, kind := DetectBlock(tt.resp, []byte(tt.body))
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.want != BlockNone, blocked)
		})
	}
}
