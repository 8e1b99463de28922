package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/pmorken/letterchat/internal/ai"
	"github.com/pmorken/letterchat/internal/auth"
	"github.com/pmorken/letterchat/internal/chat"
	"github.com/pmorken/letterchat/internal/chunker"
	"github.com/pmorken/letterchat/internal/config"
	"github.com/pmorken/letterchat/internal/ingest"
	"github.com/pmorken/letterchat/internal/retrieval"
	"github.com/pmorken/letterchat/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("letterchat-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting letterchat api")

	clientConfig, err := providerConfig(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	client, err := ai.NewClient(ctx, clientConfig)
	if err != nil {
		log.Fatalf("Failed to create provider client: %v", err)
	}

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	dim := client.Dim()
	logger.Info().Int("embedding_dim", dim).Str("embed_model", clientConfig.EmbedModel).Msg("provider client initialized")

	if err := st.Migrate(ctx, dim); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	splitter := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	srv := &server{
		logger:    logger,
		auth:      auth.New(authConfig(cfg)),
		pipeline:  ingest.New(client, st, splitter),
		assistant: chat.New(client, retrieval.NewService(client, st, cfg.TopK, cfg.MinSimilarity), cfg.SystemPrompt, cfg.Temperature, cfg.MaxTokens),
	}

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: srv.routes()}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

// providerConfig maps the loaded configuration onto a provider client
// config.
func providerConfig(cfg config.Specification) (*ai.ClientConfig, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}, nil
	case "vertexai", "google":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}, nil
	case "stub":
		return &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

func authConfig(cfg config.Specification) auth.Config {
	return auth.Config{
		Enabled:      cfg.Auth.Enabled,
		JWTSecret:    cfg.Auth.JwtSecret,
		ClientID:     cfg.Auth.GithubClientID,
		ClientSecret: cfg.Auth.GithubClientSecret,
		RedirectURL:  cfg.Auth.GithubRedirectURL,
		AllowedOrg:   cfg.Auth.GithubAllowedOrg,
	}
}
