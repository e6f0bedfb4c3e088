package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CTAG07/nextword/pkg/markov"
	"github.com/goccy/go-json"
)

// MarkovAPI holds the dependencies for the stored-model API handlers.
type MarkovAPI struct {
	store     *markov.Store
	served    *ServedModel
	tokenizer *markov.DefaultTokenizer
	logger    *slog.Logger
}

// NewMarkovAPI creates a new instance of the MarkovAPI.
func NewMarkovAPI(store *markov.Store, served *ServedModel, logger *slog.Logger) *MarkovAPI {
	return &MarkovAPI{
		store:     store,
		served:    served,
		tokenizer: markov.NewDefaultTokenizer(),
		logger:    logger,
	}
}

// RegisterRoutes sets up the routing for all /api/models endpoints.
func (m *MarkovAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/models", m.handleListModels)
	mux.HandleFunc("/api/models/", m.handleModelByName)
	mux.HandleFunc("/api/import", m.handleImport)
	mux.HandleFunc("/api/vocabulary/prune", m.handleVocabPrune)
}

// ModelSummary is one entry of the model listing.
type ModelSummary struct {
	markov.ModelInfo
	Stats  markov.ModelStats `json:"stats"`
	Served bool              `json:"served"`
}

type PruneRequest struct {
	MinFreq int `json:"min_freq"`
}

// NextToken is one recorded successor of a word.
type NextToken struct {
	Word        string  `json:"word"`
	Count       int     `json:"count"`
	Probability float64 `json:"probability"`
}

// NextTokensResponse lists the successors of a word in a stored model.
type NextTokensResponse struct {
	Word       string      `json:"word"`
	Total      int         `json:"total"`
	Successors []NextToken `json:"successors"`
}

// handleListModels lists every stored model with its stats.
func (m *MarkovAPI) handleListModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := m.store.GetStats(r.Context())
	if err != nil {
		m.logger.Error("Failed to get model stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve models: %v", err))
		return
	}

	servedName, _ := m.served.Get()
	modelList := make([]ModelSummary, 0, len(stats.Models))
	for _, info := range stats.Models {
		modelList = append(modelList, ModelSummary{
			ModelInfo: info,
			Stats:     stats.Stats[info.Id],
			Served:    info.Name == servedName,
		})
	}
	respondWithJSON(w, http.StatusOK, modelList)
}

// handleModelByName routes actions for a specific model, e.g., load, next, prune, export, delete.
func (m *MarkovAPI) handleModelByName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/models/")
	parts := strings.Split(path, "/")
	modelName := parts[0]

	if modelName == "" {
		respondWithError(w, http.StatusBadRequest, "Model name not specified")
		return
	}

	model, err := m.store.GetModelInfo(r.Context(), modelName)
	if err != nil {
		if errors.Is(err, markov.ErrModelNotFound) {
			respondWithError(w, http.StatusNotFound, "Model not found")
			return
		}
		m.logger.Error("Failed to get model info by name", "name", modelName, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	if len(parts) == 1 { // Path is just /api/models/{name}
		if r.Method != http.MethodDelete {
			w.Header().Set("Allow", "DELETE")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if err = m.store.RemoveModel(r.Context(), model); err != nil {
			m.logger.Error("Failed to remove model", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to remove model: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch action := parts[1]; action {
	case "load":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if err = m.serve(r, model); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load model: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, model)

	case "prune":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var req PruneRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if err = m.store.PruneModel(r.Context(), model, req.MinFreq); err != nil {
			m.logger.Error("Failed to prune model", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Pruning failed: %v", err))
			return
		}
		if err = m.reloadIfServed(r, model); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to reload model: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "export":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", modelName))
		if err = m.store.ExportModel(r.Context(), model, w); err != nil {
			m.logger.Error("Failed to export model", "name", modelName, "error", err)
		}

	case "next":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		m.handleNextTokens(w, r, model)

	default:
		respondWithError(w, http.StatusNotFound, "Action not found")
	}
}

// handleNextTokens lists the stored successors of the normalized ?word= in
// ascending order, with their share of the word's total.
func (m *MarkovAPI) handleNextTokens(w http.ResponseWriter, r *http.Request, model markov.ModelInfo) {
	word := m.tokenizer.Normalize(r.URL.Query().Get("word"))
	if word == "" {
		respondWithError(w, http.StatusBadRequest, "word is required")
		return
	}

	tokens, total, err := m.store.GetNextTokens(r.Context(), model, word)
	if err != nil {
		m.logger.Error("Failed to get next tokens", "name", model.Name, "word", word, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	resp := NextTokensResponse{
		Word:       word,
		Total:      total,
		Successors: make([]NextToken, 0, len(tokens)),
	}
	for _, token := range tokens {
		resp.Successors = append(resp.Successors, NextToken{
			Word:        token.Text,
			Count:       token.Freq,
			Probability: float64(token.Freq) / float64(total),
		})
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// handleImport merges an uploaded JSON model into the database and serves
// the merged result.
func (m *MarkovAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	info, err := m.store.ImportModel(r.Context(), r.Body)
	if err != nil {
		m.logger.Error("Failed to import model", "error", err)
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}
	if err = m.serve(r, info); err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load imported model: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

// handleVocabPrune performs a global vocabulary prune.
func (m *MarkovAPI) handleVocabPrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body for min_freq")
		return
	}
	if err := m.store.VocabularyPrune(r.Context(), req.MinFreq); err != nil {
		m.logger.Error("Failed to prune vocabulary", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Vocabulary prune failed: %v", err))
		return
	}

	servedName, _ := m.served.Get()
	if servedName != "" {
		info, err := m.store.GetModelInfo(r.Context(), servedName)
		if err == nil {
			err = m.serve(r, info)
		}
		if err != nil && !errors.Is(err, markov.ErrModelNotFound) {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to reload model: %v", err))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// serve loads a stored model and makes it the one answering /predict.
func (m *MarkovAPI) serve(r *http.Request, info markov.ModelInfo) error {
	model, err := m.store.LoadModel(r.Context(), info)
	if err != nil {
		m.logger.Error("Failed to load model", "name", info.Name, "error", err)
		return err
	}
	m.served.Set(info.Name, model)
	m.logger.Info("Serving model", "model_name", info.Name, "words", model.Len())
	return nil
}

func (m *MarkovAPI) reloadIfServed(r *http.Request, info markov.ModelInfo) error {
	if servedName, _ := m.served.Get(); servedName != info.Name {
		return nil
	}
	return m.serve(r, info)
}
