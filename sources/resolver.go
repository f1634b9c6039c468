package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"cfup/config"
	"cfup/log"

	"go.uber.org/zap"
)

const maxReadBody = 4 * 1024

// Attempt is the outcome of consulting one service during a resolve pass.
type Attempt struct {
	Service string
	Skipped bool
	Err     error
}

// ResolutionError reports that no service yielded a usable IPv4 address,
// with per-service detail.
type ResolutionError struct {
	Attempts []Attempt
}

func (e *ResolutionError) Error() string {
	var sb strings.Builder
	sb.WriteString("no lookup service returned a usable IPv4 address")

	for i, a := range e.Attempts {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}

		sb.WriteString(a.Service)
		if a.Skipped {
			sb.WriteString(": skipped (cooldown)")
		} else {
			fmt.Fprintf(&sb, ": %v", a.Err)
		}
	}

	return sb.String()
}

// Resolver walks the service list in order and returns the first valid
// answer. Failed services enter a cooldown window tracked by the cache.
type Resolver struct {
	services []Service
	cache    *FailureCache
	cooldown time.Duration
	timeout  time.Duration
	client   *http.Client
	now      func() time.Time
}

// NewResolver builds a resolver from config. The failure cache is passed in
// by the owner; nil gets a fresh one.
func NewResolver(ctx context.Context, cfg config.Resolver, cache *FailureCache) (*Resolver, error) {
	entries := cfg.Services
	if len(entries) == 0 {
		entries = Defaults()
	}

	services := make([]Service, 0, len(entries))
	for _, entry := range entries {
		svc, err := Build(entry)
		if err != nil {
			log.S(ctx).Errorw("bad service config", log.Service(entry.Name), zap.Error(err))
			return nil, fmt.Errorf("service %q: %w", entry.Name, err)
		}
		services = append(services, svc)
	}

	if cache == nil {
		cache = NewFailureCache()
	}

	return &Resolver{
		services: services,
		cache:    cache,
		cooldown: cfg.Cooldown.Std(),
		timeout:  cfg.Timeout.Std(),
		client:   http.DefaultClient,
		now:      time.Now,
	}, nil
}

// WithHTTPClient replaces the HTTP client used for lookups.
func (r *Resolver) WithHTTPClient(client *http.Client) *Resolver {
	r.client = client
	return r
}

// Resolve returns the current public IPv4 address and the name of the
// service that answered. First success wins; no further services are
// contacted. On exhaustion the error is a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context) (netip.Addr, string, error) {
	ctx = log.With(ctx, log.Stage("resolve"))
	now := r.now()

	var attempts []Attempt
	var skipped []string

	for _, svc := range r.services {
		if r.cache.InCooldown(svc.Name, now, r.cooldown) {
			log.S(ctx).Infow("skipping service in cooldown", log.Service(svc.Name))
			attempts = append(attempts, Attempt{Service: svc.Name, Skipped: true})
			skipped = append(skipped, svc.Name)
			continue
		}

		ip, err := r.fetch(ctx, svc)
		if err != nil {
			r.cache.MarkFailed(svc.Name, r.now())
			log.S(ctx).Warnw("service failed", log.Service(svc.Name), zap.Error(err))
			attempts = append(attempts, Attempt{Service: svc.Name, Err: err})
			continue
		}

		log.S(ctx).Infow("resolved public ip", log.IP(ip), log.Service(svc.Name))
		return ip, svc.Name, nil
	}

	// Every candidate is inside the cooldown window. Force one attempt at
	// the least recently failed service instead of starving the run.
	if len(skipped) == len(r.services) && len(skipped) > 0 {
		name := r.cache.LeastRecent(skipped)
		for _, svc := range r.services {
			if svc.Name != name {
				continue
			}

			log.S(ctx).Infow("all services in cooldown, forcing least recently failed",
				log.Service(svc.Name))

			ip, err := r.fetch(ctx, svc)
			if err == nil {
				log.S(ctx).Infow("resolved public ip", log.IP(ip), log.Service(svc.Name))
				return ip, svc.Name, nil
			}

			r.cache.MarkFailed(svc.Name, r.now())
			log.S(ctx).Warnw("service failed", log.Service(svc.Name), zap.Error(err))
			attempts = append(attempts, Attempt{Service: svc.Name, Err: err})
			break
		}
	}

	err := &ResolutionError{Attempts: attempts}
	log.S(ctx).Errorw("all lookup services exhausted", zap.Error(err))
	return netip.Addr{}, "", err
}

func (r *Resolver) fetch(ctx context.Context, svc Service) (ip netip.Addr, err error) {
	ctx = log.SWith(ctx, "url", svc.URL)

	if r.timeout > 0 {
		tCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		ctx = tCtx
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.URL, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("new request failed: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("connection failed: %w", err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.S(ctx).Warnw("close body failed", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBody))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed receiving response: %w", err)
	}

	ip, err = svc.Parse(data)
	if err != nil {
		log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data))
		return netip.Addr{}, err
	}

	return ip, nil
}
