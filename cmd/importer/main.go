// Command importer bulk-ingests a directory of letters. Drop .txt, .md, or
// .pdf files in the letters directory; the year is taken from the first
// four-digit run in the filename and the title from the rest of the stem.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/karrick/godirwalk"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/pmorken/letterchat/internal/ai"
	"github.com/pmorken/letterchat/internal/chunker"
	"github.com/pmorken/letterchat/internal/config"
	"github.com/pmorken/letterchat/internal/extract"
	"github.com/pmorken/letterchat/internal/ingest"
	"github.com/pmorken/letterchat/internal/store"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

func main() {
	fs := pflag.NewFlagSet("letterchat-importer", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	clientConfig, err := providerConfig(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	client, err := ai.NewClient(ctx, clientConfig)
	if err != nil {
		log.Fatal(err)
	}
	if client.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	if err := st.Migrate(ctx, client.Dim()); err != nil {
		log.Fatal(err)
	}

	pipeline := ingest.New(client, st, chunker.New(cfg.ChunkSize, cfg.ChunkOverlap))

	var ingested, skipped int
	err = godirwalk.Walk(cfg.LettersDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".txt", ".md", ".pdf":
			default:
				return nil
			}

			name := filepath.Base(path)
			year, ok := yearFromName(name)
			if !ok {
				zlog.Warn().Str("path", path).Msg("no year in filename, skipping")
				skipped++
				return nil
			}

			b, err := os.ReadFile(path)
			if err != nil {
				zlog.Warn().Err(err).Str("path", path).Msg("failed to read file")
				skipped++
				return nil
			}

			text, err := extract.Text(name, "", b)
			if err != nil {
				zlog.Warn().Err(err).Str("path", path).Msg("failed to extract text, skipping")
				skipped++
				return nil
			}

			chunks, err := pipeline.Ingest(ctx, ingest.Request{
				Year:      year,
				Title:     titleFromName(name),
				SourceURL: "file://" + name,
				Text:      text,
			})
			if err != nil {
				return err
			}
			zlog.Info().Str("path", path).Int("year", year).Int("chunks", chunks).Msg("imported letter")
			ingested++
			return nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	zlog.Info().Int("ingested", ingested).Int("skipped", skipped).Msg("import finished")
}

// yearFromName extracts the first four-digit run from a filename.
func yearFromName(name string) (int, bool) {
	m := yearPattern.FindString(name)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return year, true
}

// titleFromName turns "1997_shareholder_letter.pdf" into "1997 Shareholder
// Letter".
func titleFromName(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	words := strings.Fields(stem)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
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
