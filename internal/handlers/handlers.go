package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/ser-api/internal/emotion"
	"github.com/Brownie44l1/ser-api/internal/hub"
)

type Handler struct {
	classifier *hub.Classifier
	modelID    string
	log        *logrus.Entry
}

func NewHandler(classifier *hub.Classifier, modelID string, log *logrus.Entry) *Handler {
	return &Handler{
		classifier: classifier,
		modelID:    modelID,
		log:        log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Classify accepts a multipart audio upload and responds with the standard
// result object. Classification failures still produce a 200 with
// success=false; the caller always gets a parseable result.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form (25MB max)
	if err := r.ParseMultipartForm(25 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "No audio file provided. Use 'audio' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	h.log.WithFields(logrus.Fields{"file": header.Filename, "size": header.Size}).Info("received clip")

	tmp, err := os.CreateTemp("", "ser-*"+filepath.Ext(header.Filename))
	if err != nil {
		h.log.WithError(err).Error("failed to stage upload")
		http.Error(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.ReadFrom(file); err != nil {
		tmp.Close()
		http.Error(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}
	tmp.Close()

	result := h.classifier.Classify(r.Context(), h.modelID, tmp.Name())

	w.Header().Set("Content-Type", "application/json")
	writeResult(w, result)
}

func writeResult(w http.ResponseWriter, result *emotion.Result) {
	json.NewEncoder(w).Encode(result)
}
