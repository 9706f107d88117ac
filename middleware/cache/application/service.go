package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"memoright-gateway/middleware/cache/domain"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPrefix = "cache:"
	DefaultTTL    = time.Hour

	clearBatch = 100
)

type Config struct {
	// Prefix é prefixado a toda chave. Padrão "cache:".
	Prefix string
	// DefaultTTL vale quando Set/GetOrSet recebem ttl <= 0. Padrão 1h.
	DefaultTTL time.Duration
	// Timeout por operação no store. 0 = herda o ctx do chamador.
	Timeout time.Duration
	// SingleFlight faz misses concorrentes da mesma chave (neste processo)
	// compartilharem uma única chamada ao producer.
	SingleFlight bool

	Logger *slog.Logger
}

// Service é o cache-aside sobre um domain.Store.
//
// Falhas do store nunca chegam ao chamador: são logadas e tratadas como miss.
// O cache é best-effort, nunca uma dependência dura.
type Service struct {
	store domain.Store
	cfg   Config
	log   *slog.Logger
	sf    singleflight.Group
}

func NewService(store domain.Store, cfg Config) *Service {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, cfg: cfg, log: log.With("prefix", cfg.Prefix)}
}

func (s *Service) Prefix() string { return s.cfg.Prefix }

// Get decodifica o valor em dst. Retorna false em miss, erro do store ou
// valor que não decodifica.
func (s *Service) Get(ctx context.Context, key string, dst any) bool {
	data, ok := s.getRaw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.log.Warn("cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// Set grava value serializado em JSON. ttl <= 0 usa DefaultTTL.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	s.setRaw(ctx, key, data, ttl)
}

func (s *Service) Delete(ctx context.Context, key string) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.Delete(ctx, s.cfg.Prefix+key); err != nil {
		s.log.Warn("cache delete failed", "key", key, "error", err)
	}
}

// Clear apaga todas as chaves do prefixo. Retorna quantas foram removidas.
func (s *Service) Clear(ctx context.Context) int {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys, err := s.store.Keys(ctx, escapeGlob(s.cfg.Prefix)+"*")
	if err != nil {
		s.log.Warn("cache clear failed", "error", err)
		return 0
	}

	deleted := 0
	for start := 0; start < len(keys); start += clearBatch {
		end := min(start+clearBatch, len(keys))
		n, err := s.store.Delete(ctx, keys[start:end]...)
		if err != nil {
			s.log.Warn("cache clear failed", "error", err)
			return deleted
		}
		deleted += n
	}
	return deleted
}

// TTL retorna quanto falta para a entrada expirar.
func (s *Service) TTL(ctx context.Context, key string) (time.Duration, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ttl, ok, err := s.store.TTL(ctx, s.cfg.Prefix+key)
	if err != nil {
		s.log.Warn("cache ttl failed", "key", key, "error", err)
		return 0, false
	}
	return ttl, ok
}

// GetOrSet preenche dst com o valor em cache ou, em miss, com o resultado de
// produce, que é então gravado com ttl.
//
// Erros de produce são devolvidos e nada é gravado. Sem SingleFlight, misses
// concorrentes executam produce cada um. Com SingleFlight, produce roda sem o
// cancelamento do primeiro chamador: os demais esperam pelo mesmo resultado.
func (s *Service) GetOrSet(ctx context.Context, key string, dst any, produce domain.Producer, ttl time.Duration) error {
	if s.Get(ctx, key, dst) {
		return nil
	}

	load := func(ctx context.Context) (any, error) {
		v, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "encode cache value %s", key)
		}
		s.setRaw(ctx, key, data, ttl)
		return data, nil
	}

	var (
		v   any
		err error
	)
	if s.cfg.SingleFlight {
		shared := context.WithoutCancel(ctx)
		v, err, _ = s.sf.Do(key, func() (any, error) { return load(shared) })
	} else {
		v, err = load(ctx)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v.([]byte), dst); err != nil {
		return errors.Wrapf(err, "decode cache value %s", key)
	}
	return nil
}

func (s *Service) getRaw(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, ok, err := s.store.Get(ctx, s.cfg.Prefix+key)
	if err != nil {
		s.log.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	return data, ok
}

func (s *Service) setRaw(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.Set(ctx, s.cfg.Prefix+key, data, ttl); err != nil {
		s.log.Warn("cache set failed", "key", key, "error", err)
	}
}

// escapeGlob escapa os metacaracteres de padrão (SCAN MATCH) do prefixo.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '*', '?', '[', ']':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}
