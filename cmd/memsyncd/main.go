// Command memsyncd runs the memory sync daemon and its HTTP API.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/preflect/memsync/config"
	"github.com/preflect/memsync/memory"
	"github.com/preflect/memsync/memory/embedder/cached"
	"github.com/preflect/memsync/memory/embedder/mock"
	openaiembed "github.com/preflect/memsync/memory/embedder/openai"
	"github.com/preflect/memsync/memory/index/chromem"
	"github.com/preflect/memsync/memory/index/remote"
	"github.com/preflect/memsync/memory/source/mem0"
	"github.com/preflect/memsync/memory/tagger"
	"github.com/preflect/memsync/server"
	"github.com/preflect/memsync/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[MAIN] %v", err)
	}

	index, err := buildIndex(cfg)
	if err != nil {
		log.Fatalf("[MAIN] %v", err)
	}
	defer index.Close()

	source := buildSource(cfg)
	tag, classifier := buildTagger(cfg)
	assembler := memory.NewAssembler(index, &memory.AssemblerConfig{
		StableTTL:      cfg.ProfileCacheTTL(),
		ScoreThreshold: float32(cfg.ScoreThreshold),
		TagVectors:     cfg.UseClassifierService,
	})

	var coordinator *syncer.Coordinator
	if source != nil {
		coordinator = syncer.NewCoordinator(source, index, tag)
	}

	srv := server.New(index, server.Options{
		Source:      source,
		Tagger:      tag,
		Assembler:   assembler,
		Coordinator: coordinator,
		Classifier:  classifier,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if coordinator != nil {
		daemon := syncer.NewDaemon(coordinator, index, cfg.SyncInterval(), cfg.SyncUsers)
		go daemon.Run(ctx)
	} else {
		log.Printf("[MAIN] no source configured, background sync disabled")
	}

	go func() {
		log.Printf("[MAIN] listening on %s", cfg.ListenAddr)
		if err := srv.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[MAIN] server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[MAIN] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MAIN] shutdown: %v", err)
	}
}

// buildIndex chooses the embedded index or a remote peer, wrapping the
// embedder in a read-through cache either way.
func buildIndex(cfg config.Config) (memory.Index, error) {
	if cfg.VectorIndexURL != "" {
		log.Printf("[MAIN] using remote index at %s", cfg.VectorIndexURL)
		return remote.New(cfg.VectorIndexURL, 0), nil
	}
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	cachedEmb, err := cached.New(emb, 0)
	if err != nil {
		return nil, err
	}
	return chromem.New(cachedEmb)
}

// buildEmbedder prefers the OpenAI-compatible API, then a local ONNX
// model, then the deterministic mock for development.
func buildEmbedder(cfg config.Config) (memory.Embedder, error) {
	if cfg.OpenAIAPIKey != "" {
		log.Printf("[MAIN] using API embedder")
		return openaiembed.New(openaiembed.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.EmbeddingBaseURL,
			Model:   cfg.EmbeddingModel,
		})
	}
	if cfg.ONNXModelPath != "" {
		emb, err := newLocalEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		log.Printf("[MAIN] using local ONNX embedder")
		return emb, nil
	}
	log.Printf("[MAIN] no embedding backend configured, using mock embedder")
	return mock.New(), nil
}

func buildSource(cfg config.Config) memory.Source {
	if cfg.SourceAPIKey == "" {
		log.Printf("[MAIN] no source API key, running index-only")
		return nil
	}
	src, err := mem0.New(mem0.Config{
		BaseURL: cfg.SourceAPIURL,
		APIKey:  cfg.SourceAPIKey,
	})
	if err != nil {
		log.Printf("[MAIN] source disabled: %v", err)
		return nil
	}
	return src
}

// buildTagger assembles the tagger chain. The heuristic tagger always
// backs up whichever delegate is configured, so tagging never hard-fails.
func buildTagger(cfg config.Config) (memory.Tagger, server.HealthChecker) {
	heuristic := tagger.NewHeuristic()
	if cfg.UseClassifierService {
		rem := tagger.NewRemote(cfg.ClassifierServiceURL, 0)
		log.Printf("[MAIN] using classifier service at %s", cfg.ClassifierServiceURL)
		return tagger.NewFailover(rem, heuristic, 0), rem
	}
	if cfg.AnthropicAPIKey != "" {
		client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		log.Printf("[MAIN] using LLM tagger")
		return tagger.NewFailover(tagger.NewLLM(&client, ""), heuristic, 0), nil
	}
	return heuristic, nil
}
