package ddns

import (
	"context"
	"fmt"
	"net/netip"

	"cfup/config"
	"cfup/log"

	cfapi "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

type cloudflare struct {
	token   string
	zone    *cfapi.ResourceContainer
	ttl     int
	proxied bool

	// baseURL overrides the API endpoint in tests.
	baseURL string
}

type apiLogger struct {
	ctx context.Context
}

func (l *apiLogger) Printf(format string, v ...interface{}) {
	log.S(l.ctx).Debugf(format, v...)
}

func (d *cloudflare) getAPI(ctx context.Context) (*cfapi.API, error) {
	opts := []cfapi.Option{cfapi.UsingLogger(&apiLogger{ctx: ctx})}
	if d.baseURL != "" {
		opts = append(opts, cfapi.BaseURL(d.baseURL))
	}

	api, err := cfapi.NewWithAPIToken(d.token, opts...)
	if err != nil {
		log.S(ctx).Errorw("failed create cloudflare API", zap.Error(err))
		return nil, fmt.Errorf("failed create cloudflare API: %w", err)
	}

	return api, nil
}

// ListRecords returns the zone's A records carrying syntactically valid
// IPv4 content. Records with junk content are logged and dropped rather
// than rewritten.
func (d *cloudflare) ListRecords(ctx context.Context) ([]Record, error) {
	ctx = log.SWith(ctx, "action", "list", "zone", d.zone.Identifier)

	api, err := d.getAPI(ctx)
	if err != nil {
		return nil, &ProviderError{Op: "list", Err: err}
	}

	cfRecords, info, err := api.ListDNSRecords(ctx, d.zone, cfapi.ListDNSRecordsParams{Type: "A"})
	if err != nil {
		log.S(ctx).Errorw("failed list records", zap.Error(err))
		return nil, &ProviderError{Op: "list", Err: err}
	}

	if info.HasMorePages() {
		log.S(ctx).Warnw("partial result, ignore remaining",
			"count", len(cfRecords), "total", info.Count, "pages", info.TotalPages)
	}

	var records []Record
	for _, record := range cfRecords {
		addr, err := netip.ParseAddr(record.Content)
		if err != nil || !addr.Is4() {
			log.S(ctx).Warnw("skipping A record with non-IPv4 content",
				"record", record.Name, "content", record.Content)
			continue
		}

		records = append(records, fromCloudflare(record, d.ttl, d.proxied))
	}

	log.S(ctx).Debugw("listed records", "count", len(records))

	return records, nil
}

// UpdateRecord rewrites one record's content, preserving its name, TTL and
// proxied flag.
func (d *cloudflare) UpdateRecord(ctx context.Context, r Record) (Record, error) {
	ctx = log.SWith(ctx,
		"action", "update",
		"record", r.Name,
		"content", r.Content,
		"id", r.ID)

	api, err := d.getAPI(ctx)
	if err != nil {
		return Record{}, &ProviderError{Op: "update", Err: err}
	}

	params := cfapi.UpdateDNSRecordParams{
		ID:      r.ID,
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
		Proxied: cfapi.BoolPtr(r.Proxied),
	}

	cfRecord, err := api.UpdateDNSRecord(ctx, d.zone, params)
	if err != nil {
		log.S(ctx).Errorw("failed update record", zap.Error(err))
		return Record{}, &ProviderError{Op: "update", Err: err}
	}

	log.S(ctx).Debugw("record written")

	return fromCloudflare(cfRecord, d.ttl, d.proxied), nil
}

func fromCloudflare(record cfapi.DNSRecord, defaultTTL int, defaultProxied bool) Record {
	r := Record{
		ID:      record.ID,
		Name:    record.Name,
		Type:    record.Type,
		Content: record.Content,
		TTL:     record.TTL,
		Proxied: defaultProxied,
	}

	if r.TTL == 0 {
		r.TTL = defaultTTL
	}
	if record.Proxied != nil {
		r.Proxied = *record.Proxied
	}

	return r
}

func newCloudflare(ctx context.Context, cfg config.Provider) (Interface, error) {
	ctx = log.SWith(ctx, "type", "cloudflare")

	d := &cloudflare{
		token:   cfg.APIToken,
		zone:    cfapi.ZoneIdentifier(cfg.ZoneID),
		ttl:     cfg.TTL,
		proxied: cfg.Proxied,
	}

	if _, err := d.getAPI(ctx); err != nil {
		return nil, err
	}

	return d, nil
}
