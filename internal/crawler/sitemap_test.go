package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitescout/internal/model"
)

func urlsetXML(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += "<url><loc>" + loc + "</loc></url>"
	}
	return body + "</urlset>"
}

// sitemapTestServer starts a server whose handler can be set after the
// server URL is known, since sitemap bodies embed absolute URLs.
func sitemapTestServer(t *testing.T) (srv *httptest.Server, base *url.URL, setHandler func(http.HandlerFunc)) {
	t.Helper()

	var (
		mu      sync.Mutex
		handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}
	)
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		h := handler
		mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	return srv, base, func(h http.HandlerFunc) {
		mu.Lock()
		handler = h
		mu.Unlock()
	}
}

func taskURLs(tasks []model.CrawlTask) []string {
	urls := make([]string, len(tasks))
	for i, tk := range tasks {
		urls[i] = tk.URL
	}
	return urls
}

func TestSitemapDiscoverer_WellKnownPath(t *testing.T) {
	srv, base, setHandler := sitemapTestServer(t)
	setHandler(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			_, _ = w.Write([]byte(urlsetXML(srv.URL+"/docs", srv.URL+"/pricing")))
			return
		}
		http.NotFound(w, r)
	})

	d := NewSitemapDiscoverer(srv.Client(), testAgent)
	tasks := d.Discover(context.Background(), base, nil)

	require.Len(t, tasks, 2)
	assert.Equal(t, []string{srv.URL + "/docs", srv.URL + "/pricing"}, taskURLs(tasks))
	for _, tk := range tasks {
		assert.Equal(t, 0, tk.Depth, "top-level urlset entries are depth 0")
		assert.Equal(t, model.SourceSitemap, tk.Source)
	}
}

func TestSitemapDiscoverer_DeclaredBeforeWellKnown(t *testing.T) {
	srv, base, setHandler := sitemapTestServer(t)
	setHandler(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/declared.xml":
			_, _ = w.Write([]byte(urlsetXML(srv.URL + "/from-declared")))
		case "/sitemap.xml":
			_, _ = w.Write([]byte(urlsetXML(srv.URL + "/from-wellknown")))
		default:
			http.NotFound(w, r)
		}
	})

	d := NewSitemapDiscoverer(srv.Client(), testAgent)
	tasks := d.Discover(context.Background(), base, []string{srv.URL + "/declared.xml"})

	require.Len(t, tasks, 1)
	assert.Equal(t, srv.URL+"/from-declared", tasks[0].URL)
}

func TestSitemapDiscoverer_IndexFlattening(t *testing.T) {
	srv, base, setHandler := sitemapTestServer(t)
	setHandler(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			index := `<?xml version="1.0"?><sitemapindex>` +
				"<sitemap><loc>" + srv.URL + "/sub1.xml</loc></sitemap>" +
				"<sitemap><loc>" + srv.URL + "/sub2.xml</loc></sitemap>" +
				"</sitemapindex>"
			_, _ = w.Write([]byte(index))
		case "/sub1.xml":
			_, _ = w.Write([]byte(urlsetXML(srv.URL + "/a")))
		case "/sub2.xml":
			_, _ = w.Write([]byte(urlsetXML(srv.URL + "/b")))
		default:
			http.NotFound(w, r)
		}
	})

	d := NewSitemapDiscoverer(srv.Client(), testAgent)
	tasks := d.Discover(context.Background(), base, nil)

	require.Len(t, tasks, 2)
	assert.ElementsMatch(t, []string{srv.URL + "/a", srv.URL + "/b"}, taskURLs(tasks))
	for _, tk := range tasks {
		assert.Equal(t, 1, tk.Depth, "sub-sitemap entries are depth 1")
	}
}

func TestSitemapDiscoverer_CyclicIndexGuard(t *testing.T) {
	var hits atomic.Int32
	srv, base, setHandler := sitemapTestServer(t)
	setHandler(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			hits.Add(1)
			// Self-referencing index.
			_, _ = w.Write([]byte(`<?xml version="1.0"?><sitemapindex><sitemap><loc>` +
				srv.URL + `/sitemap.xml</loc></sitemap></sitemapindex>`))
			return
		}
		http.NotFound(w, r)
	})

	d := NewSitemapDiscoverer(srv.Client(), testAgent)
	tasks := d.Discover(context.Background(), base, nil)

	assert.Empty(t, tasks)
	assert.LessOrEqual(t, int(hits.Load()), maxSitemapNesting+2)
}

func TestSitemapDiscoverer_FiltersForeignHosts(t *testing.T) {
	srv, base, setHandler := sitemapTestServer(t)
	setHandler(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			_, _ = w.Write([]byte(urlsetXML(srv.URL+"/mine", "https://elsewhere.example/theirs")))
			return
		}
		http.NotFound(w, r)
	})

	d := NewSitemapDiscoverer(srv.Client(), testAgent)
	tasks := d.Discover(context.Background(), base, nil)

	require.Len(t, tasks, 1)
	assert.Equal(t, srv.URL+"/mine", tasks[0].URL)
}

func TestSitemapDiscoverer_PriorityBecomesScore(t *testing.T) {
	srv, base, setHandler := sitemapTestServer(t)
	setHandler(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			body := fmt.Sprintf(`<?xml version="1.0"?><urlset>`+
				`<url><loc>%s/a</loc><priority>0.9</priority></url>`+
				`<url><loc>%s/b</loc></url>`+
				`</urlset>`, srv.URL, srv.URL)
			_, _ = w.Write([]byte(body))
			return
		}
		http.NotFound(w, r)
	})

	d := NewSitemapDiscoverer(srv.Client(), testAgent)
	tasks := d.Discover(context.Background(), base, nil)

	require.Len(t, tasks, 2)
	assert.InDelta(t, 0.9, tasks[0].Score, 1e-9)
	assert.InDelta(t, 0.5, tasks[1].Score, 1e-9, "missing priority defaults to 0.5")
}

func TestSitemapDiscoverer_NoneFound(t *testing.T) {
	srv, base, _ := sitemapTestServer(t)

	d := NewSitemapDiscoverer(srv.Client(), testAgent)
	assert.Nil(t, d.Discover(context.Background(), base, nil))
}
