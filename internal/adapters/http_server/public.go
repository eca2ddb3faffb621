package httpserver

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"reviewboost/internal/domain"
)

//go:embed static
var staticFiles embed.FS

// MountPublic attaches the recipient-facing routes and the operator portal.
// These render HTML, not JSON: short links are opened on customer phones.
func (s *Server) MountPublic(h *Handlers) {
	s.mux.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/portal/send", http.StatusTemporaryRedirect)
	})
	s.mux.Get("/r/{code}", h.reviewLanding)
	s.mux.Get("/portal/send", servePage("static/send.html"))
	s.mux.Get("/portal/dashboard", servePage("static/dashboard.html"))

	sub, _ := fs.Sub(staticFiles, "static")
	s.mux.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
}

func servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := staticFiles.ReadFile(name)
		if err != nil {
			log.Error().Err(err).Str("page", name).Msg("embedded page missing")
			http.Error(w, "page missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(b)
	}
}

// reviewLanding records the click and hands the visitor their review text
// with a copy-to-clipboard bridge to Google's write-review page. It renders
// for any known code, even ones never marked sent.
func (h *Handlers) reviewLanding(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	req, biz, err := h.Reviews.Click(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeHTML(w, http.StatusNotFound, "<h1>Link not found</h1>")
			return
		}
		log.Error().Err(err).Str("code", code).Msg("short link lookup failed")
		writeHTML(w, http.StatusInternalServerError, "<h1>Something went wrong</h1>")
		return
	}

	data := landingData{
		ReviewText: req.ReviewText,
		ReviewURL:  "https://search.google.com/local/writereview?placeid=" + biz.GooglePlaceID,
	}
	var buf bytes.Buffer
	if err := landingTmpl.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("render landing page failed")
		writeHTML(w, http.StatusInternalServerError, "<h1>Something went wrong</h1>")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

type landingData struct {
	ReviewText string
	ReviewURL  string
}

var landingTmpl = template.Must(template.New("landing").Parse(landingHTML))

// Clipboard access needs a user gesture on some browsers; the fallback
// buttons cover the case where the automatic copy is blocked.
const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Redirecting&hellip;</title>
<style>
  body { margin:0; display:flex; align-items:center; justify-content:center;
         min-height:100vh; font-family:system-ui,sans-serif; background:#fafafa; color:#333; }
  .wrap { text-align:center; padding:2rem; }
  .btn { display:inline-block; margin:.5rem; padding:.6rem 1.2rem; border:none;
         border-radius:.5rem; font-size:.9rem; cursor:pointer; text-decoration:none; }
  .copy { background:#ffe17c; color:#171e19; }
  .open { background:#171e19; color:#fff; }
  .hidden { display:none; }
</style>
</head>
<body>
<div class="wrap">
  <p id="status">Copying review &amp; redirecting to Google&hellip;</p>
  <div id="fallback" class="hidden">
    <button class="btn copy" onclick="doCopy()">Copy Review Text</button>
    <a class="btn open" href="{{.ReviewURL}}">Open Google Reviews</a>
  </div>
</div>
<script>
const reviewText = {{.ReviewText}};
const reviewUrl = {{.ReviewURL}};
async function doCopy() {
  try {
    await navigator.clipboard.writeText(reviewText);
    document.querySelector('.copy').textContent = 'Copied!';
  } catch(e) {
    prompt('Copy this review:', reviewText);
  }
}
(async () => {
  try {
    await navigator.clipboard.writeText(reviewText);
    document.getElementById('status').textContent = 'Review copied! Redirecting…';
    setTimeout(() => { window.location.href = reviewUrl; }, 1500);
  } catch(e) {
    document.getElementById('status').textContent = 'Tap Copy, then open Google Reviews.';
    document.getElementById('fallback').classList.remove('hidden');
  }
})();
</script>
</body>
</html>`
