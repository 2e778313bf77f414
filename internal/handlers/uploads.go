package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type uploadItem struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Kind        string `json:"kind"` // image, video or file
}

type uploadsResponse struct {
	OK    bool         `json:"ok"`
	Items []uploadItem `json:"items"`
}

func uploadKind(contentType, filename string) string {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "image/") {
		return "image"
	}
	if strings.HasPrefix(ct, "video/") {
		return "video"
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return "image"
	case ".mp4", ".mov", ".webm":
		return "video"
	}
	return "file"
}

// mediaPath shards stored files by the first two hex chars of the content
// hash so a single directory never grows unbounded.
func mediaPath(sum, ext string) (dir, rel string) {
	shard := sum[:2]
	name := sum + ext
	return filepath.Join("media", shard), "/media/" + shard + "/" + name
}

// Upload accepts multipart files (field "file" or "files") and stores them
// under media/ addressed by content hash. Re-uploading the same bytes yields
// the same URL.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.Contains(ct, "multipart/form-data") {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}

	// 50MB total parsing limit, 25MB per file.
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.MultipartForm == nil || r.MultipartForm.File == nil {
		writeError(w, http.StatusBadRequest, "missing files")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "missing files")
		return
	}
	if len(files) > 30 {
		writeError(w, http.StatusBadRequest, "too many files (max 30)")
		return
	}

	const maxPerFile = 25 << 20
	items := make([]uploadItem, 0, len(files))
	for _, fh := range files {
		if fh == nil {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		b, err := io.ReadAll(io.LimitReader(f, maxPerFile+1))
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(b) > maxPerFile {
			writeError(w, http.StatusBadRequest, "file too large (max 25MB per file)")
			return
		}
		contentType := strings.TrimSpace(fh.Header.Get("Content-Type"))
		if contentType == "" {
			contentType = http.DetectContentType(b)
		}

		sum := sha256.Sum256(b)
		hexSum := hex.EncodeToString(sum[:])
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		dir, rel := mediaPath(hexSum, ext)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		dst := filepath.Join(dir, hexSum+ext)
		if err := os.WriteFile(dst, b, 0o644); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		items = append(items, uploadItem{
			ID:          hexSum + ext,
			Filename:    fh.Filename,
			URL:         rel,
			ContentType: contentType,
			Size:        len(b),
			Kind:        uploadKind(contentType, fh.Filename),
		})
	}

	writeJSON(w, http.StatusOK, uploadsResponse{OK: true, Items: items})
}

// ListUploads walks the media shards and returns every stored file.
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	shards, err := os.ReadDir("media")
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, uploadsResponse{OK: true, Items: []uploadItem{}})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]uploadItem, 0, 64)
	for _, shard := range shards {
		if shard == nil || !shard.IsDir() {
			continue
		}
		dir := filepath.Join("media", shard.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range files {
			if e == nil || e.IsDir() {
				continue
			}
			fn := strings.TrimSpace(e.Name())
			if fn == "" {
				continue
			}
			ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(fn)))
			size := 0
			if info, err := e.Info(); err == nil && info.Size() > 0 && info.Size() < 1<<31 {
				size = int(info.Size())
			}
			items = append(items, uploadItem{
				ID:          fn,
				Filename:    fn,
				URL:         fmt.Sprintf("/media/%s/%s", shard.Name(), fn),
				ContentType: ct,
				Size:        size,
				Kind:        uploadKind(ct, fn),
			})
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Filename < items[j].Filename })
	writeJSON(w, http.StatusOK, uploadsResponse{OK: true, Items: items})
}

// DeleteUploads deletes stored files by id (hashed filename).
func (h *Handler) DeleteUploads(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	deleted := 0
	for _, id := range req.IDs {
		id = strings.TrimSpace(id)
		// Ids are hash-named files; anything with a path separator is not ours.
		if id == "" || strings.ContainsAny(id, "/\\") || len(id) < 3 {
			continue
		}
		path := filepath.Join("media", id[:2], id)
		if err := os.Remove(path); err == nil {
			deleted++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
}
