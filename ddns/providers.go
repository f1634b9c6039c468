package ddns

import (
	"context"
	"fmt"

	"cfup/config"
)

// Interface is what the update orchestrator needs from a DNS provider:
// read the zone's A records and rewrite one.
type Interface interface {
	ListRecords(ctx context.Context) ([]Record, error)
	UpdateRecord(ctx context.Context, r Record) (Record, error)
}

// Record is a provider A record. Content is the dotted-quad address the
// orchestrator compares and conditionally overwrites.
type Record struct {
	ID      string
	Name    string
	Type    string
	Content string
	TTL     int
	Proxied bool
}

// ProviderError wraps a failed provider API call with the operation name.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

var Providers = map[string]func(ctx context.Context, cfg config.Provider) (Interface, error){
	"cloudflare": newCloudflare,
}
