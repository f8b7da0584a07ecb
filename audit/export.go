package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// ExportJSON serializes every span belonging to traceID from store as a
// JSON array, the plain form spec §4.8 names ("export per trace to JSON").
func ExportJSON(store Store, traceID string) ([]byte, error) {
	spans, err := store.Query(context.Background(), Query{TraceID: traceID})
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(spans, "", "  ")
}

// otlpSpan is the minimal subset of the OTLP span JSON shape spec §4.8's
// "export ... to OTLP" names, following OpenTelemetry's
// resourceSpans/scopeSpans/spans nesting closely enough for ingestion by
// an OTLP-JSON-compatible collector without depending on the full
// go.opentelemetry.io/otel/sdk exporter machinery (this module already
// carries go.opentelemetry.io/otel as an indirect transitive dependency
// via the MCP SDK, not a direct SDK/exporter dependency, so OTLP spans are
// hand-assembled here rather than built through the OTel SDK's own span
// processor).
type otlpSpan struct {
	TraceID           string          `json:"traceId"`
	SpanID            string          `json:"spanId"`
	ParentSpanID      string          `json:"parentSpanId,omitempty"`
	Name              string          `json:"name"`
	Kind              string          `json:"kind"`
	StartTimeUnixNano int64           `json:"startTimeUnixNano"`
	EndTimeUnixNano   int64           `json:"endTimeUnixNano"`
	Attributes        []otlpAttribute `json:"attributes,omitempty"`
	Status            otlpStatus      `json:"status"`
}

type otlpAttribute struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type otlpStatus struct {
	Code    int    `json:"code"` // 0 unset, 1 ok, 2 error
	Message string `json:"message,omitempty"`
}

// ExportOTLP serializes every span belonging to traceID as an OTLP-JSON
// span array.
func ExportOTLP(store Store, traceID string) ([]byte, error) {
	spans, err := store.Query(context.Background(), Query{TraceID: traceID})
	if err != nil {
		return nil, err
	}

	out := make([]otlpSpan, 0, len(spans))
	for _, s := range spans {
		status := otlpStatus{Code: 1}
		if s.Error != "" {
			status = otlpStatus{Code: 2, Message: s.Error}
		}
		out = append(out, otlpSpan{
			TraceID:           s.TraceID,
			SpanID:            s.SpanID,
			ParentSpanID:      s.ParentSpanID,
			Name:              fmt.Sprintf("%s.%s", s.Type, s.Operation),
			Kind:              "internal",
			StartTimeUnixNano: s.StartTime.UnixNano(),
			EndTimeUnixNano:   s.EndTime.UnixNano(),
			Attributes: []otlpAttribute{
				{Key: "ai.span.type", Value: string(s.Type)},
				{Key: "ai.tokens.total", Value: s.Tokens.TotalTokens},
			},
			Status: status,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}
