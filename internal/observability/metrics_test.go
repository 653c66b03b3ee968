package observability

import "testing"

func TestMockMetricsRecordsCountsAndHistograms(t *testing.T) {
	m := NewMockMetrics()
	m.IncCounter("ingestion_docs_total", map[string]string{"status": "success"})
	m.IncCounter("ingestion_docs_total", map[string]string{"status": "success"})
	m.ObserveHistogram("ingestion_stage_ms", 12, map[string]string{"stage": "download"})
	m.ObserveHistogram("ingestion_stage_ms", 34, map[string]string{"stage": "chunk"})

	if m.Counters["ingestion_docs_total"] != 2 {
		t.Fatalf("expected 2 docs, got %d", m.Counters["ingestion_docs_total"])
	}
	if len(m.Hists["ingestion_stage_ms"]) != 2 {
		t.Fatalf("expected 2 histogram records, got %d", len(m.Hists["ingestion_stage_ms"]))
	}
}

func TestOtelMetricsNilReceiverNoops(t *testing.T) {
	var m *OtelMetrics
	m.IncCounter("x", nil)
	m.ObserveHistogram("y", 1, nil)
}
