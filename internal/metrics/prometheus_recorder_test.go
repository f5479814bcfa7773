package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObservePhaseDuration("compile", 150*time.Millisecond)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncPhaseResult("compile", ResultSuccess)
	pr.IncRunOutcome("completed")
	pr.IncModuleResult("transpile", ResultSuccess)
	pr.IncModuleResult("transpile", ResultSuccess)
	pr.IncModuleResult("transpile", ResultFailed)
	pr.IncAdvicePackage("example")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
	if got := counterValue(t, reg, "bundlekit_module_results_total", "success"); got != 2 {
		t.Fatalf("expected 2 successful modules, got %v", got)
	}
	if got := counterValue(t, reg, "bundlekit_run_outcomes_total", "completed"); got != 1 {
		t.Fatalf("expected 1 completed run, got %v", got)
	}
}

func counterValue(t *testing.T, reg *prom.Registry, name, labelValue string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObservePhaseDuration("compile", time.Second)
	pr.IncRunOutcome("crashed")
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncRunOutcome("aborted")

	path := filepath.Join(t.TempDir(), "nested", "bundlekit.prom")
	if err := WriteTextfile(reg, path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `bundlekit_run_outcomes_total{outcome="aborted"} 1`) {
		t.Fatalf("unexpected textfile contents:\n%s", data)
	}
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncPhaseResult("link", ResultCanceled)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bundlekit_phase_results_total") {
		t.Fatalf("metrics missing from response:\n%s", rec.Body.String())
	}
}
