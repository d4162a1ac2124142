package doctor

import (
	"encoding/json"
	"testing"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status   CheckStatus
		expected string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "fail"},
		{CheckStatus(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			if got := tc.status.String(); got != tc.expected {
				t.Errorf("got %q, want %q", got, tc.expected)
			}
		})
	}
}

// mockCheck is a test implementation of Check.
type mockCheck struct {
	name   string
	result CheckResult
	runs   int
}

func (m *mockCheck) Name() string { return m.name }
func (m *mockCheck) Run() CheckResult {
	m.runs++
	return m.result
}

func TestRunAll(t *testing.T) {
	first := &mockCheck{name: "user", result: CheckResult{Name: "user", Status: StatusPass}}
	second := &mockCheck{name: "unit", result: CheckResult{Name: "unit", Status: StatusFail}}

	results := RunAll([]Check{first, second})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "user" || results[1].Name != "unit" {
		t.Errorf("results out of order: %+v", results)
	}
	if first.runs != 1 || second.runs != 1 {
		t.Errorf("expected each check to run once, got %d and %d", first.runs, second.runs)
	}
}

func TestHasFailures(t *testing.T) {
	if HasFailures([]CheckResult{{Status: StatusPass}, {Status: StatusWarn}}) {
		t.Error("warnings are not failures")
	}
	if !HasFailures([]CheckResult{{Status: StatusPass}, {Status: StatusFail}}) {
		t.Error("expected a failure")
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name    string
		results []CheckResult
		want    string
	}{
		{"healthy", []CheckResult{{Status: StatusPass}}, "Tunnel is healthy"},
		{"one issue", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "1 issue found"},
		{"two issues", []CheckResult{{Status: StatusFail}, {Status: StatusWarn}}, "2 issues found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Summary(tc.results); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCheckResult_JSON(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "unit", Status: StatusWarn, Message: "drift"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":"unit","status":"warn","message":"drift"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestCheckResult_DecodesStatusJSON(t *testing.T) {
	var got []CheckResult
	in := `[{"name":"unit","status":"fail","message":"missing"},{"name":"binary","status":"pass","message":"ok"}]`
	if err := json.Unmarshal([]byte(in), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Status != StatusFail || got[1].Status != StatusPass {
		t.Errorf("got %+v", got)
	}

	var bad CheckResult
	if err := json.Unmarshal([]byte(`{"status":"maybe"}`), &bad); err == nil {
		t.Error("expected an error for an unknown status")
	}
}
