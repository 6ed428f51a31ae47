// Package loki provides a client to push log entries to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// labelSanitize replaces characters that are invalid in Loki label names/values.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// eventFields is the subset of a telemetry event JSON needed for stream labels.
type eventFields struct {
	UserID    string `json:"userId"`
	EventType string `json:"eventType"`
	Source    string `json:"source"`
	CreatedAt string `json:"createdAt"`
}

// eventLabels extracts stream labels and the event timestamp from a telemetry
// event payload. Unparseable payloads get no labels and the current time.
func eventLabels(rawJSON []byte) (map[string]string, time.Time) {
	labels := map[string]string{}
	ts := time.Now().UTC()
	var fields eventFields
	if err := json.Unmarshal(rawJSON, &fields); err != nil {
		return labels, ts
	}
	if fields.UserID != "" {
		labels["user_id"] = fields.UserID
	}
	if fields.EventType != "" {
		labels["event_type"] = fields.EventType
	}
	if fields.Source != "" {
		labels["source"] = fields.Source
	}
	if fields.CreatedAt != "" {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, fields.CreatedAt); err == nil {
				ts = t
				break
			}
		}
	}
	return labels, ts
}

// PushEventJSON pushes one telemetry event (a Kafka message value) to Loki,
// labeling the stream from the event's own fields.
func PushEventJSON(ctx context.Context, baseURL string, rawJSON []byte) error {
	labels, ts := eventLabels(rawJSON)
	return PushEvent(ctx, baseURL, ts, string(rawJSON), labels)
}

// PushEvent sends a single log line to Loki at the given base URL
// (e.g. http://localhost:3100). Label values are sanitized; the stream always
// carries job=complaintrack. Non-2xx responses are errors.
func PushEvent(ctx context.Context, baseURL string, timestamp time.Time, line string, labels map[string]string) error {
	if baseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = "complaintrack"
	for k, v := range labels {
		sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_")
		if sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	body := PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := strings.TrimSuffix(baseURL, "/") + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
