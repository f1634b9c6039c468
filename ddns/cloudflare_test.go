package ddns

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	cfapi "github.com/cloudflare/cloudflare-go"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCloudflare(url string) *cloudflare {
	return &cloudflare{
		token:   "test-token",
		zone:    cfapi.ZoneIdentifier("zone123"),
		ttl:     1,
		proxied: true,
		baseURL: url,
	}
}

func TestListRecordsFiltersNonIPv4Content(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/zones/zone123/dns_records", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"success": true,
			"errors": [],
			"messages": [],
			"result": [
				{"id": "rec1", "type": "A", "name": "example.com", "content": "198.51.100.1", "ttl": 300, "proxied": true},
				{"id": "rec2", "type": "A", "name": "junk.example.com", "content": "not-an-ip", "ttl": 300, "proxied": false},
				{"id": "rec3", "type": "A", "name": "odd.example.com", "content": "2001:db8::1", "ttl": 300, "proxied": false}
			],
			"result_info": {"page": 1, "per_page": 100, "count": 3, "total_count": 3, "total_pages": 1}
		}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newTestCloudflare(srv.URL)
	records, err := d.ListRecords(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, "example.com", records[0].Name)
	assert.Equal(t, "198.51.100.1", records[0].Content)
	assert.Equal(t, 300, records[0].TTL)
	assert.True(t, records[0].Proxied)
}

func TestUpdateRecordSendsNewContent(t *testing.T) {
	var gotBody map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/zones/zone123/dns_records/rec1", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"success": true,
			"errors": [],
			"messages": [],
			"result": {"id": "rec1", "type": "A", "name": "example.com", "content": "203.0.113.7", "ttl": 1, "proxied": true}
		}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newTestCloudflare(srv.URL)
	updated, err := d.UpdateRecord(context.Background(), Record{
		ID:      "rec1",
		Name:    "example.com",
		Type:    "A",
		Content: "203.0.113.7",
		TTL:     1,
		Proxied: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.7", gotBody["content"])
	assert.Equal(t, "example.com", gotBody["name"])
	assert.Equal(t, "A", gotBody["type"])
	assert.Equal(t, "203.0.113.7", updated.Content)
}

func TestListRecordsWrapsAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/zones/zone123/dns_records", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"success": false, "errors": [{"code": 9109, "message": "Invalid access token"}], "messages": [], "result": null}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newTestCloudflare(srv.URL)
	_, err := d.ListRecords(context.Background())
	require.Error(t, err)

	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "list", pErr.Op)
}

func TestFromCloudflareDefaults(t *testing.T) {
	r := fromCloudflare(cfapi.DNSRecord{ID: "rec1", Type: "A", Name: "example.com", Content: "198.51.100.1"}, 1, true)
	assert.Equal(t, 1, r.TTL, "zero TTL falls back to the configured default")
	assert.True(t, r.Proxied, "missing proxied flag falls back to the configured default")

	proxied := false
	r = fromCloudflare(cfapi.DNSRecord{ID: "rec2", TTL: 600, Proxied: &proxied}, 1, true)
	assert.Equal(t, 600, r.TTL)
	assert.False(t, r.Proxied)
}
