package archive

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/rideline/telemetry-service/config"
	"github.com/rideline/telemetry-service/internal/normalize"
)

// Client archives normalized telemetry events for audit and search. Indexing
// is best effort; the ingest path never fails on an archive error.
type Client interface {
	IndexEvent(ctx context.Context, id string, event normalize.TelemetryEvent) error
	SearchEvents(ctx context.Context, query interface{}) ([]json.RawMessage, error)
}

// esClient implements Client over Elasticsearch
type esClient struct {
	client  *elasticsearch.Client
	index   string
	enabled bool
}

// archivedEvent is the indexed document shape
type archivedEvent struct {
	VehicleKey string                 `json:"vehicle_key"`
	EventType  string                 `json:"event_type"`
	Timestamp  time.Time              `json:"timestamp"`
	Latitude   *float64               `json:"latitude,omitempty"`
	Longitude  *float64               `json:"longitude,omitempty"`
	SpeedMph   *float64               `json:"speed_mph,omitempty"`
	Odometer   *float64               `json:"odometer_miles,omitempty"`
	Raw        map[string]interface{} `json:"raw,omitempty"`
	IndexedAt  time.Time              `json:"indexed_at"`
}

// NewClient creates an Elasticsearch archive client
func NewClient(cfg *config.ElasticsearchConfig) (Client, error) {
	if !cfg.Enabled {
		return &esClient{enabled: false}, nil
	}

	esCfg := elasticsearch.Config{
		Addresses: cfg.URLs,
	}
	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	esCfg.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch error: %s", res.String())
	}

	return &esClient{
		client:  client,
		index:   cfg.Index,
		enabled: true,
	}, nil
}

// IndexEvent indexes one telemetry event
func (e *esClient) IndexEvent(ctx context.Context, id string, event normalize.TelemetryEvent) error {
	if !e.enabled {
		return nil
	}

	doc, err := json.Marshal(archivedEvent{
		VehicleKey: event.VehicleKey,
		EventType:  string(event.EventType),
		Timestamp:  event.Timestamp,
		Latitude:   event.Latitude,
		Longitude:  event.Longitude,
		SpeedMph:   event.SpeedMph,
		Odometer:   event.OdometerMiles,
		Raw:        event.Raw,
		IndexedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: id,
		Body:       bytes.NewReader(doc),
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing event: %s", res.String())
	}
	return nil
}

// SearchEvents searches archived events
func (e *esClient) SearchEvents(ctx context.Context, query interface{}) ([]json.RawMessage, error) {
	if !e.enabled {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&buf),
		e.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching events: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	docs := make([]json.RawMessage, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		docs[i] = hit.Source
	}
	return docs, nil
}
