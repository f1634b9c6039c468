// Package sources resolves the machine's public IPv4 address by walking an
// ordered list of HTTP lookup services, remembering recent per-service
// failures so broken services are skipped for a cooldown window.
package sources

import (
	"fmt"
	"net/netip"
	"strings"

	"cfup/common"
	"cfup/config"

	"github.com/goccy/go-json"
)

// ParseFunc extracts an IPv4 address from a lookup service response body.
type ParseFunc func(body []byte) (netip.Addr, error)

// Service is one lookup endpoint. Variants differ only in data: the URL and
// the parser built for the configured response format.
type Service struct {
	Name  string
	URL   string
	Parse ParseFunc
}

// Formats maps config format names to parser builders.
var Formats = map[string]func(svc config.IPService) (ParseFunc, error){
	"plain": newPlain,
	"json":  newJSON,
	"trace": newTrace,
}

// ParseIPv4 validates s as a dotted-quad IPv4 address. IPv4-mapped IPv6
// forms are unwrapped; anything else IPv6 is rejected.
func ParseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("bad IP %q: %w", s, err)
	}

	if addr.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("unsupported: found zone in IP %q", s)
	}

	if addr.Is4In6() {
		addr = netip.AddrFrom4(addr.As4())
	}

	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %q", s)
	}

	return addr, nil
}

func newPlain(config.IPService) (ParseFunc, error) {
	return func(body []byte) (netip.Addr, error) {
		return ParseIPv4(string(body))
	}, nil
}

type jsonOptions struct {
	Field string `mapstructure:"field"`
}

func newJSON(svc config.IPService) (ParseFunc, error) {
	opts := jsonOptions{Field: "ip"}
	if err := common.WeakDecodeMap(svc.Config, &opts); err != nil {
		return nil, fmt.Errorf("bad json parser config: %w", err)
	}

	return func(body []byte) (netip.Addr, error) {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			return netip.Addr{}, fmt.Errorf("decode body: %w", err)
		}

		value, ok := payload[opts.Field].(string)
		if !ok {
			return netip.Addr{}, fmt.Errorf("no %q field in response", opts.Field)
		}

		return ParseIPv4(value)
	}, nil
}

type traceOptions struct {
	Prefix string `mapstructure:"prefix"`
}

// newTrace handles Cloudflare /cdn-cgi/trace style bodies of key=value lines.
func newTrace(svc config.IPService) (ParseFunc, error) {
	opts := traceOptions{Prefix: "ip="}
	if err := common.WeakDecodeMap(svc.Config, &opts); err != nil {
		return nil, fmt.Errorf("bad trace parser config: %w", err)
	}

	return func(body []byte) (netip.Addr, error) {
		for _, line := range strings.Split(string(body), "\n") {
			if strings.HasPrefix(line, opts.Prefix) {
				return ParseIPv4(strings.TrimPrefix(line, opts.Prefix))
			}
		}

		return netip.Addr{}, fmt.Errorf("no %q line in response", opts.Prefix)
	}, nil
}

// Build turns a configured service entry into a Service descriptor.
func Build(svc config.IPService) (Service, error) {
	format := svc.Format
	if format == "" {
		format = "plain"
	}

	create, ok := Formats[format]
	if !ok {
		return Service{}, fmt.Errorf("unknown service format %q", format)
	}

	parse, err := create(svc)
	if err != nil {
		return Service{}, err
	}

	name := svc.Name
	if name == "" {
		name = svc.URL
	}

	return Service{Name: name, URL: svc.URL, Parse: parse}, nil
}
