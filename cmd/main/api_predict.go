package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"

	"github.com/CTAG07/nextword/pkg/markov"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// PredictAPI continues prompts with the served model.
type PredictAPI struct {
	config MarkovConfig
	served *ServedModel
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type PredictRequest struct {
	Text     string `json:"text"`
	NumWords int    `json:"num_words"`
}

type PredictResponse struct {
	ID         string   `json:"id"`
	Model      string   `json:"model"`
	Sentence   string   `json:"sentence"`
	Completion string   `json:"completion"`
	Words      []string `json:"words"`
}

// NewPredictAPI creates a new instance of the PredictAPI. The random source
// for random stops is seeded once from the config.
func NewPredictAPI(config MarkovConfig, served *ServedModel, logger *slog.Logger) *PredictAPI {
	return &PredictAPI{
		config: config,
		served: served,
		logger: logger,
		rng:    config.newRand(),
	}
}

// RegisterRoutes sets up the routing for the /predict endpoint.
func (p *PredictAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/predict", p.handlePredict)
}

// requestRand derives a source for one request, since a rand.Rand must not be
// shared between goroutines.
func (p *PredictAPI) requestRand() *rand.Rand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return rand.New(rand.NewPCG(p.rng.Uint64(), p.rng.Uint64()))
}

// clampWords turns a missing or non-positive request into 1 word and caps it
// at max_words, so a max_words of 0 disables completion.
func (p *PredictAPI) clampWords(n int) int {
	return min(max(1, n), p.config.MaxWords)
}

func (p *PredictAPI) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondWithError(w, http.StatusBadRequest, "text is required")
		return
	}

	name, model := p.served.Get()
	if model == nil {
		respondWithError(w, http.StatusServiceUnavailable, "No model is loaded")
		return
	}

	numWords := p.clampWords(req.NumWords)
	opts, err := p.config.generateOptions(p.requestRand(), p.logger, numWords)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Invalid generation settings: %v", err))
		return
	}

	completion, err := markov.Complete(req.Text, model, opts...)
	if errors.Is(err, markov.ErrEmptyPrompt) {
		respondWithError(w, http.StatusBadRequest, "text contains no words")
		return
	}
	if err != nil {
		p.logger.Error("Prediction failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Prediction failed: %v", err))
		return
	}

	resp := PredictResponse{
		ID:         "pred-" + uuid.NewString(),
		Model:      name,
		Sentence:   completion.Sentence,
		Completion: strings.Join(completion.Words, " "),
		Words:      completion.Words,
	}
	p.logger.Debug("Prediction served", "id", resp.ID, "model_name", name, "requested_words", req.NumWords, "words", len(resp.Words))
	respondWithJSON(w, http.StatusOK, resp)
}
