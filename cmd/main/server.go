package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/CTAG07/nextword/pkg/markov"
)

// ServedModel is the model answering /predict. Handlers read it concurrently;
// loading or importing a model swaps it as a whole.
type ServedModel struct {
	mu    sync.RWMutex
	name  string
	model *markov.Model
}

// Get returns the name and model currently served. The model is nil if none
// has been loaded.
func (s *ServedModel) Get() (string, *markov.Model) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.model
}

// Set replaces the served model.
func (s *ServedModel) Set(name string, model *markov.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.model = model
}

type Server struct {
	config     *Config
	logger     *slog.Logger
	store      *markov.Store
	served     *ServedModel
	serverAPI  *ServerAPI
	predictAPI *PredictAPI
	markovAPI  *MarkovAPI
	apiMux     *http.ServeMux
}

func NewServer(config *Config, logger *slog.Logger, store *markov.Store, served *ServedModel) *Server {
	server := &Server{
		config:     config,
		logger:     logger,
		store:      store,
		served:     served,
		serverAPI:  NewServerAPI(logger),
		predictAPI: NewPredictAPI(config.Markov, served, logger),
		markovAPI:  NewMarkovAPI(store, served, logger),
		apiMux:     http.NewServeMux(),
	}

	server.serverAPI.RegisterRoutes(server.apiMux)
	server.predictAPI.RegisterRoutes(server.apiMux)
	server.markovAPI.RegisterRoutes(server.apiMux)

	return server
}

// Handler returns the root handler of the API.
func (s *Server) Handler() http.Handler {
	return s.apiMux
}

// loadServedModel serves the configured model. A model missing from the
// database is trained from the dataset and stored first.
func (s *Server) loadServedModel(ctx context.Context) error {
	name := s.config.Server.ModelName

	info, err := s.store.GetModelInfo(ctx, name)
	if err == nil {
		model, err := s.store.LoadModel(ctx, info)
		if err != nil {
			return fmt.Errorf("failed to load model %q: %w", name, err)
		}
		s.served.Set(name, model)
		s.logger.Info("Serving stored model", "model_name", name, "words", model.Len())
		return nil
	}
	if !errors.Is(err, markov.ErrModelNotFound) {
		return err
	}

	s.logger.Info("Model not found in the database, training from the dataset", "model_name", name, "dataset", s.config.Server.DatasetPath)
	model, tokenCount, err := buildFromDataset(ctx, s.config, s.logger)
	if err != nil {
		return err
	}
	if _, err = s.store.SaveModel(ctx, name, model, tokenCount); err != nil {
		return fmt.Errorf("failed to save model %q: %w", name, err)
	}
	s.served.Set(name, model)
	return nil
}

// Run serves the API until ctx is cancelled or the process receives SIGINT
// or SIGTERM, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiHttpServer := &http.Server{
		Addr:              s.config.Server.ApiAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, stopping server.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiHttpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Api server shutdown failed", "error", err)
		return err
	}
	s.logger.Info("HTTP server stopped.")
	return nil
}
