// Package updater drives one update run: resolve the public IPv4 address,
// read the zone's A records, and rewrite those whose content differs.
package updater

import (
	"context"
	"errors"
	"net/netip"

	"cfup/ddns"
	"cfup/log"

	"go.uber.org/zap"
)

// ErrNoRecords means the zone holds no usable A records to compare against.
var ErrNoRecords = errors.New("no A records found in zone")

// Resolver is what the orchestrator needs from the IP resolver.
type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, string, error)
}

// Result is the outcome of one run.
type Result struct {
	IP      netip.Addr
	Source  string
	Checked int
	Updated int
}

// Changed reports whether any record was rewritten this run.
func (r Result) Changed() bool {
	return r.Updated > 0
}

type Updater struct {
	resolver Resolver
	provider ddns.Interface
}

func New(resolver Resolver, provider ddns.Interface) *Updater {
	return &Updater{resolver: resolver, provider: provider}
}

// Run performs one linear pass: resolve, list, compare, update. At most one
// update call is issued per record per run; update failures are collected
// and returned after every record has been attempted. There is no retry
// within a run — the next scheduled invocation is the retry.
func (u *Updater) Run(ctx context.Context) (Result, error) {
	ctx = log.With(ctx, log.Stage("run"))

	ip, source, err := u.resolver.Resolve(ctx)
	if err != nil {
		return Result{}, err
	}

	result := Result{IP: ip, Source: source}

	records, err := u.provider.ListRecords(ctx)
	if err != nil {
		return result, err
	}

	if len(records) == 0 {
		log.S(ctx).Warnw("no usable A records in zone")
		return result, ErrNoRecords
	}

	want := ip.String()
	var errs []error

	for _, record := range records {
		result.Checked++

		if record.Content == want {
			log.S(ctx).Infow("record up to date", "record", record.Name, "ip", want)
			continue
		}

		old := record.Content
		record.Content = want

		if _, err := u.provider.UpdateRecord(ctx, record); err != nil {
			log.S(ctx).Errorw("failed update record",
				"record", record.Name, zap.Error(err))
			errs = append(errs, err)
			continue
		}

		result.Updated++
		log.S(ctx).Infow("record updated",
			"record", record.Name, "old_ip", old, "ip", want)
	}

	return result, errors.Join(errs...)
}
