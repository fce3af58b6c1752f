package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/varkas/minion-mind/internal/api"
	"github.com/varkas/minion-mind/internal/bus"
	"github.com/varkas/minion-mind/internal/completion"
	"github.com/varkas/minion-mind/internal/config"
	"github.com/varkas/minion-mind/internal/memory"
	"github.com/varkas/minion-mind/internal/memory/graph"
	"github.com/varkas/minion-mind/internal/memory/index"
	"github.com/varkas/minion-mind/internal/minion"
	"github.com/varkas/minion-mind/internal/mood"
	"github.com/varkas/minion-mind/internal/relay"
	"github.com/varkas/minion-mind/internal/safeguard"
	pgstore "github.com/varkas/minion-mind/internal/store"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Minion Mind...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/minions.json"
	}
	var cfg *config.Config
	if _, statErr := os.Stat(cfgPath); statErr != nil {
		logger.Info("no config file, using defaults", zap.String("path", cfgPath))
		cfg = config.Default()
	} else {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
		}
		cfg = loaded
		logger.Info("Config loaded", zap.String("path", cfgPath))
	}

	// Event bus is the spine; everything else subscribes to it.
	b := bus.New(256, logger)

	// Completion provider
	var completer completion.Completer
	if cfg.Completion.Endpoint != "" {
		completer = completion.NewOpenAIClient(completion.Config{
			Endpoint:    cfg.Completion.Endpoint,
			Model:       cfg.Completion.Model,
			APIKey:      cfg.Completion.APIKey,
			Temperature: cfg.Completion.Temperature,
			MaxTokens:   cfg.Completion.MaxTokens,
			Timeout:     time.Duration(cfg.Completion.TimeoutSec) * time.Second,
		}, logger)
	} else {
		logger.Warn("no completion endpoint configured, minions will not reply")
	}

	// Outbound transport. Message-sent events are mirrored to Redis streams
	// by the relay, so the local deliverer only has to log.
	deliver := func(agentID, channelID, content string) error {
		logger.Info("outbound message",
			zap.String("agent", agentID),
			zap.String("channel", channelID),
			zap.String("content", content))
		return nil
	}

	// Minion manager
	mcfg := minion.DefaultConfig()
	if cfg.Completion.TimeoutSec > 0 {
		mcfg.CompletionTimeout = time.Duration(cfg.Completion.TimeoutSec) * time.Second
	}
	if cfg.Cognition.MoodAlpha > 0 {
		mcfg.Mood.Alpha = cfg.Cognition.MoodAlpha
	}
	if cfg.Cognition.AutonomyThreshold > 0 {
		mcfg.Autonomy.Threshold = cfg.Cognition.AutonomyThreshold
	}
	if iv := cfg.Cognition.AutonomyInterval(); iv > 0 {
		mcfg.AutonomyInterval = iv
	}
	if cfg.Cognition.RateQuota > 0 && cfg.Cognition.RateWindowSec > 0 {
		mcfg.Safeguard.Rate = safeguard.RateConfig{
			Quota:  cfg.Cognition.RateQuota,
			Window: time.Duration(cfg.Cognition.RateWindowSec) * time.Second,
		}
	}
	if cfg.Cognition.LoopThreshold > 0 {
		mcfg.Safeguard.Loop.Threshold = cfg.Cognition.LoopThreshold
	}
	if cfg.Cognition.HealthCeiling > 0 {
		mcfg.Safeguard.Health.Ceiling = cfg.Cognition.HealthCeiling
	}
	manager := minion.NewManager(mcfg, b, completer, deliver, logger)

	// Memory backends: embedder and vector index. Both degrade to the
	// in-process variants when not configured or unreachable.
	var embedder index.Embedder
	if cfg.Embedding.Endpoint != "" {
		embedder = index.NewAPIEmbedder(index.EmbedderConfig{
			Endpoint:  cfg.Embedding.Endpoint,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			Dimension: cfg.Embedding.Dimension,
		})
	} else {
		embedder = index.NewHashEmbedder(cfg.Embedding.Dimension)
	}
	var idx index.Index = index.NewMemoryIndex()
	if cfg.Database.Qdrant.Host != "" {
		qdrant, err := index.NewQdrantIndex(context.Background(), index.QdrantConfig{
			Host:       cfg.Database.Qdrant.Host,
			Port:       cfg.Database.Qdrant.Port,
			Collection: cfg.Database.Qdrant.Collection,
			Dimension:  uint64(cfg.Database.Qdrant.Dimension),
		})
		if err != nil {
			logger.Warn("Qdrant unavailable, using in-process index", zap.Error(err))
		} else {
			idx = qdrant
			defer qdrant.Close()
		}
	}
	bankCfg := memory.DefaultBankConfig()
	if cfg.Cognition.WorkingCapacity > 0 {
		bankCfg.WorkingCapacity = cfg.Cognition.WorkingCapacity
	}
	if cfg.Cognition.ShortTermTTLSec > 0 {
		bankCfg.ShortTermTTL = time.Duration(cfg.Cognition.ShortTermTTLSec) * time.Second
	}
	if cfg.Cognition.PromotionThreshold > 0 {
		bankCfg.PromotionThreshold = cfg.Cognition.PromotionThreshold
	}
	if cfg.Cognition.RetentionFloor > 0 {
		bankCfg.RetentionFloor = cfg.Cognition.RetentionFloor
	}
	if cfg.Cognition.DecayHalfLifeHours > 0 {
		bankCfg.DecayHalfLife = time.Duration(cfg.Cognition.DecayHalfLifeHours * float64(time.Hour))
	}
	manager.SetMemories(memory.NewManager(bankCfg, embedder, idx, logger))

	// PostgreSQL persistence for emotional states and archived episodes
	var store *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, err := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if err != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(err))
		} else {
			if err := ps.Migrate(context.Background(), "migrations"); err != nil {
				logger.Fatal("migration failed", zap.Error(err))
			}
			store = ps
		}
	}

	// Persist every published snapshot; the version guard in SaveState keeps
	// out-of-order writes from rolling an agent backwards.
	if store != nil {
		b.Subscribe(bus.KindStateSnapshot, func(ev bus.Event) {
			p, ok := ev.Payload.(bus.SnapshotPayload)
			if !ok {
				return
			}
			var st mood.EmotionalState
			if err := json.Unmarshal(p.Data, &st); err != nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := store.SaveState(ctx, st); err != nil {
				logger.Warn("state save failed", zap.String("minion", st.AgentID), zap.Error(err))
			}
		})
		b.Subscribe(bus.KindDespawn, func(ev bus.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.DeleteState(ctx, ev.ActorID); err != nil {
				logger.Warn("state delete failed", zap.String("minion", ev.ActorID), zap.Error(err))
			}
		})
	}

	// Neo4j concept graph
	var concepts *graph.Store
	if cfg.Database.Neo4j.URI != "" {
		gs, err := graph.NewStore(context.Background(),
			cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, logger)
		if err != nil {
			logger.Warn("Neo4j unavailable, concept graph stays in-process", zap.Error(err))
		} else {
			concepts = gs
		}
	}

	// Redis relay: mirror outward events, follow the ingress stream.
	ingressCtx, stopIngress := context.WithCancel(context.Background())
	defer stopIngress()
	var rl *relay.Relay
	if cfg.Database.Redis.URL != "" {
		r, err := relay.New(cfg.Database.Redis.URL, logger)
		if err != nil {
			logger.Warn("Redis unavailable, running without relay", zap.Error(err))
		} else {
			rl = r
			rl.Attach(b)
			rl.FollowIngress(ingressCtx, b)
			logger.Info("Relay attached")
		}
	}

	// Spawn configured minions, seeding archived episodes when available.
	for _, mc := range cfg.Minions {
		p := minion.Profile{ID: mc.ID, Name: mc.Name, Persona: mc.Persona, Alpha: mc.Alpha}
		if err := manager.Spawn(p); err != nil {
			logger.Error("spawn failed", zap.String("minion", mc.ID), zap.Error(err))
			continue
		}
		if store != nil {
			if saved, err := store.LoadState(context.Background(), mc.ID); err != nil {
				logger.Warn("state load failed", zap.String("minion", mc.ID), zap.Error(err))
			} else if saved != nil {
				_, err := manager.Moods().MutateLatest(mc.ID, func(st *mood.EmotionalState) {
					st.Mood = saved.Mood
					st.Energy = saved.Energy
					st.Stress = saved.Stress
					if saved.Opinions != nil {
						st.Opinions = saved.Opinions
					}
					st.Version = saved.Version
				})
				if err != nil {
					logger.Warn("state restore failed", zap.String("minion", mc.ID), zap.Error(err))
				}
			}
			episodes, err := store.LoadEpisodes(context.Background(), mc.ID)
			if err != nil {
				logger.Warn("episode load failed", zap.String("minion", mc.ID), zap.Error(err))
			} else if bank := manager.Memories().Bank(mc.ID); bank != nil {
				for _, rec := range episodes {
					bank.SeedEpisodic(rec)
				}
				logger.Info("episodes seeded",
					zap.String("minion", mc.ID), zap.Int("count", len(episodes)))
			}
		}
	}

	// Background loops: mood regulation, memory consolidation, autonomy.
	regCfg := mood.DefaultRegulationConfig()
	if iv := cfg.Cognition.RegulationInterval(); iv > 0 {
		regCfg.Interval = iv
	}
	if cfg.Cognition.ExtremeThreshold > 0 {
		regCfg.ExtremeThreshold = cfg.Cognition.ExtremeThreshold
	}
	if cfg.Cognition.PullFactor > 0 {
		regCfg.PullFactor = cfg.Cognition.PullFactor
	}
	regulator := mood.NewRegulator(manager.Moods(), regCfg, logger)
	regulator.Start()

	consolidator := memory.NewConsolidator(manager.Memories(), cfg.Cognition.ConsolidationInterval(), logger)
	consolidator.OnPromote = func(agentID string, rec *memory.Record) {
		manager.NoticeMemory(agentID, rec)
		if store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.ArchiveEpisode(ctx, rec); err != nil {
				logger.Warn("episode archive failed", zap.String("record", rec.ID), zap.Error(err))
			}
		}
		if concepts != nil {
			bank := manager.Memories().Bank(agentID)
			if bank == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := concepts.SyncGraph(ctx, agentID, bank.AllConcepts()); err != nil {
				logger.Warn("concept sync failed", zap.String("minion", agentID), zap.Error(err))
			}
		}
	}
	consolidator.Start()

	manager.StartAutonomy()

	// HTTP introspection surface
	handler := api.NewHandler(manager, logger)
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Minion Mind listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Minion Mind...")
	stopIngress()
	consolidator.Stop()
	regulator.Stop()
	manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	if rl != nil {
		rl.Detach()
		rl.Close()
	}
	if concepts != nil {
		concepts.Close(ctx)
	}
	if store != nil {
		store.Close()
	}
}
