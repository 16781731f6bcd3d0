package symbols

import (
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Unidata/awips2-hazards-sub017/internal/typeid"
)

const maxUploadSize = 2 << 20 // 2MB

// Handler serves the symbol library over HTTP.
type Handler struct {
	lib *Library
}

func NewHandler(lib *Library) *Handler {
	return &Handler{lib: lib}
}

// List handles GET /api/symbols.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.lib.Symbols())
}

// Upload handles POST /api/symbols (multipart form with a "file" field).
// Images are stored as PNG under a generated name whatever format they came in.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 2MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !accepted(contentType) {
		http.Error(w, "only PNG, JPEG, BMP, TIFF and WebP images are supported", http.StatusBadRequest)
		return
	}

	img, _, err := image.Decode(file)
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	name := typeid.NewSymbolID()
	path := filepath.Join(h.lib.dir, name+".png")
	out, err := os.Create(path)
	if err != nil {
		h.lib.log.Error("create symbol file", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		h.lib.log.Error("encode png", "error", err)
		os.Remove(path)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}

	bounds := img.Bounds()
	sym := Symbol{
		Name:   name,
		URL:    "/symbols/" + name + ".png",
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
	h.lib.add(sym)
	writeJSON(w, http.StatusCreated, sym)
}

var uploadTypes = []string{"image/png", "image/jpeg", "image/bmp", "image/tiff", "image/webp"}

func accepted(contentType string) bool {
	for _, t := range uploadTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// Serve returns an http.Handler for the image files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.lib.dir))
	return http.StripPrefix("/symbols/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".yaml") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fs.ServeHTTP(w, r)
	}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
