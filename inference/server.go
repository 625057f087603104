package inference

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
	"github.com/nfnt/resize"

	"github.com/tsawler/catsdogs/training"
	"github.com/tsawler/catsdogs/vision/preprocessing"
)

// maxUploadSize bounds the multipart form held in memory
const maxUploadSize = 10 << 20

// Prediction is the JSON body returned by /predict/image
type Prediction struct {
	Class       string  `json:"class"`
	Label       int     `json:"label"`
	Probability float32 `json:"probability"` // P(label 1)
	Confidence  float32 `json:"confidence"`  // probability of the returned class
}

// Server classifies uploaded images over HTTP
type Server struct {
	mu         sync.Mutex
	classifier training.Classifier
	classNames []string
	processor  *preprocessing.ImageProcessor
	router     *mux.Router
}

// NewServer wraps a classifier expecting images of width x height scaled by rescale
func NewServer(classifier training.Classifier, classNames []string, width, height int, rescale float32) *Server {
	s := &Server{
		classifier: classifier,
		classNames: classNames,
		processor:  preprocessing.NewImageProcessor(width, height, rescale),
		router:     mux.NewRouter(),
	}

	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/predict/image", s.predictImage).Methods(http.MethodPost)
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Prediction server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) predictImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image file provided, use 'image' as the form field name")
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image")
		return
	}

	width, height := s.processor.Dims()
	resized := imaging.Clone(resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor))

	input := make([]float32, s.processor.Size())
	if err := s.processor.ToTensor(resized, input); err != nil {
		log.Printf("Preprocessing %s failed: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "failed to preprocess image")
		return
	}

	s.mu.Lock()
	probs, err := s.classifier.Predict(input, 1)
	s.mu.Unlock()
	if err != nil || len(probs) != 1 {
		log.Printf("Prediction for %s failed: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}

	writeJSON(w, http.StatusOK, s.prediction(probs[0]))
}

func (s *Server) prediction(p float32) Prediction {
	label := 0
	confidence := 1 - p
	if p >= training.DecisionThreshold {
		label = 1
		confidence = p
	}

	class := "unknown"
	if label < len(s.classNames) {
		class = s.classNames[label]
	}
	return Prediction{Class: class, Label: label, Probability: p, Confidence: confidence}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
