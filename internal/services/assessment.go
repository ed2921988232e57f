package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/frameworks"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/funnel"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/observability"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/advisor"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/apierr"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/envutil"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

// AssessInput asks the advisor to score a funnel. An empty framework
// list means the whole catalog.
type AssessInput struct {
	Steps      []funnel.Step        `json:"steps"`
	Source     funnel.TrafficSource `json:"source"`
	Frameworks []string             `json:"frameworks,omitempty"`
	SkipCache  bool                 `json:"skip_cache,omitempty"`
}

type AssessOutput struct {
	Assessments []advisor.Assessment `json:"assessments"`
	Frameworks  []string             `json:"frameworks"`
	Cached      bool                 `json:"cached"`
}

type AssessmentService interface {
	Assess(ctx context.Context, in AssessInput) (*AssessOutput, error)
}

// AssessmentCache memoizes advisor output keyed by the funnel
// fingerprint and framework set. Advisor calls are the expensive part of
// assessment; identical funnels should not pay twice.
type AssessmentCache interface {
	Get(ctx context.Context, key string) ([]advisor.Assessment, bool)
	Set(ctx context.Context, key string, assessments []advisor.Assessment)
}

type assessmentService struct {
	client advisor.Client
	cache  AssessmentCache
	mode   string
	log    *logger.Logger
}

func NewAssessmentService(client advisor.Client, cache AssessmentCache, baseLog *logger.Logger) AssessmentService {
	return &assessmentService{
		client: client,
		cache:  cache,
		mode:   advisorMode(client),
		log:    baseLog.With("service", "AssessmentService"),
	}
}

func (s *assessmentService) Assess(ctx context.Context, in AssessInput) (*AssessOutput, error) {
	if err := funnel.ValidateSteps(in.Steps); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_steps", err)
	}
	if err := funnel.ValidateSource(in.Source); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_source", err)
	}
	ids := in.Frameworks
	if len(ids) == 0 {
		ids = frameworks.IDs()
	} else if err := frameworks.ValidateIDs(ids); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "unknown_framework", err)
	}

	desc := describeFunnel(in.Steps, in.Source)
	key := assessmentKey(desc, ids)
	m := observability.Current()
	if in.SkipCache {
		m.IncAssessmentCache("bypass")
	} else if cached, ok := s.cache.Get(ctx, key); ok {
		m.IncAssessmentCache("hit")
		return &AssessOutput{Assessments: cached, Frameworks: ids, Cached: true}, nil
	} else {
		m.IncAssessmentCache("miss")
	}

	start := time.Now()
	assessments, err := s.client.AssessSteps(ctx, desc, ids)
	if err != nil {
		m.ObserveAdvisor(s.mode, "error", time.Since(start))
		return nil, apierr.New(http.StatusBadGateway, "advisor_unavailable", err)
	}
	m.ObserveAdvisor(s.mode, "ok", time.Since(start))
	if !in.SkipCache {
		s.cache.Set(ctx, key, assessments)
	}
	s.log.Info("assessed funnel",
		"steps", len(in.Steps), "frameworks", len(ids), "assessments", len(assessments))
	return &AssessOutput{Assessments: assessments, Frameworks: ids, Cached: false}, nil
}

// describeFunnel reduces steps to the aggregate shape the advisor sees.
// Callers validate steps first, so every step has at least one question.
func describeFunnel(steps []funnel.Step, source funnel.TrafficSource) advisor.FunnelDescription {
	desc := advisor.FunnelDescription{
		Steps:  make([]advisor.StepDescription, len(steps)),
		Source: string(source),
	}
	for i, st := range steps {
		var inv, diff float64
		for _, q := range st.Questions {
			inv += float64(q.Invasiveness)
			diff += float64(q.Difficulty)
		}
		n := float64(len(st.Questions))
		desc.Steps[i] = advisor.StepDescription{
			Index:           i,
			QuestionCount:   len(st.Questions),
			AvgInvasiveness: inv / n,
			AvgDifficulty:   diff / n,
			Boosts:          st.Boosts,
			ObservedCR:      st.ObservedCR,
		}
	}
	return desc
}

func assessmentKey(desc advisor.FunnelDescription, frameworkIDs []string) string {
	payload, _ := json.Marshal(struct {
		Funnel     advisor.FunnelDescription `json:"funnel"`
		Frameworks []string                  `json:"frameworks"`
	}{desc, frameworkIDs})
	sum := sha256.Sum256(payload)
	return "jf:assess:" + hex.EncodeToString(sum[:])
}

func advisorMode(client advisor.Client) string {
	switch client.(type) {
	case *advisor.Mock:
		return "mock"
	case *advisor.OpenAIClient:
		return "openai"
	default:
		return "custom"
	}
}

// NewAssessmentCacheFromEnv returns a redis-backed cache when REDIS_ADDR
// is set and an in-process one otherwise. Both honor
// ASSESSMENT_CACHE_TTL (default 15 minutes).
func NewAssessmentCacheFromEnv(log *logger.Logger) AssessmentCache {
	ttl := envutil.Duration("ASSESSMENT_CACHE_TTL", 15*time.Minute)
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return newMemoryAssessmentCache(ttl)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if log != nil {
		log.Info("assessment cache backed by redis", "addr", addr)
	}
	return &redisAssessmentCache{rdb: rdb, ttl: ttl, log: log}
}

const memoryCacheMaxEntries = 1024

type memoryCacheEntry struct {
	assessments []advisor.Assessment
	expires     time.Time
}

type memoryAssessmentCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryCacheEntry
}

func newMemoryAssessmentCache(ttl time.Duration) *memoryAssessmentCache {
	return &memoryAssessmentCache{ttl: ttl, entries: map[string]memoryCacheEntry{}}
}

func (c *memoryAssessmentCache) Get(_ context.Context, key string) ([]advisor.Assessment, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.assessments, true
}

func (c *memoryAssessmentCache) Set(_ context.Context, key string, assessments []advisor.Assessment) {
	now := time.Now()
	c.mu.Lock()
	if len(c.entries) >= memoryCacheMaxEntries {
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = memoryCacheEntry{assessments: assessments, expires: now.Add(c.ttl)}
	c.mu.Unlock()
}

type redisAssessmentCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func (c *redisAssessmentCache) Get(ctx context.Context, key string) ([]advisor.Assessment, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && c.log != nil {
			c.log.Warn("assessment cache read failed", "error", err)
		}
		return nil, false
	}
	var out []advisor.Assessment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *redisAssessmentCache) Set(ctx context.Context, key string, assessments []advisor.Assessment) {
	raw, err := json.Marshal(assessments)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil && c.log != nil {
		c.log.Warn("assessment cache write failed", "error", err)
	}
}
