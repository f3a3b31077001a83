package instance

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSettings_Names(t *testing.T) {
	s := testSettings()

	tests := []struct {
		input         string
		wantContainer string
		wantInstance  string
	}{
		{"brave-otter", "squittal-brave-otter", "brave-otter"},
		{"squittal-brave-otter", "squittal-brave-otter", "brave-otter"},
		{"/squittal-brave-otter", "squittal-brave-otter", "brave-otter"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := s.ContainerName(tt.input); got != tt.wantContainer {
				t.Errorf("ContainerName(%q) = %q, want %q", tt.input, got, tt.wantContainer)
			}
			if got := s.InstanceName(tt.input); got != tt.wantInstance {
				t.Errorf("InstanceName(%q) = %q, want %q", tt.input, got, tt.wantInstance)
			}
		})
	}
}

func TestInstance_Redacted(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	inst := Instance{Name: "brave-otter", Owner: "u1", CreatedAt: created, Port: 40000}

	r := inst.Redacted()
	if r.Name != "" || r.Port != 0 {
		t.Errorf("Redacted() = %+v, want name and port cleared", r)
	}
	if r.Owner != "u1" || !r.CreatedAt.Equal(created) {
		t.Errorf("Redacted() = %+v, want owner and created_at kept", r)
	}
	if inst.Name != "brave-otter" {
		t.Error("Redacted() modified the receiver")
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "brave-otter") || strings.Contains(string(data), "40000") {
		t.Errorf("redacted JSON leaks name or port: %s", data)
	}
}

func TestInstance_Age(t *testing.T) {
	now := time.Now()
	inst := Instance{CreatedAt: now.Add(-90 * time.Minute)}
	if got := inst.Age(now); got != 90*time.Minute {
		t.Errorf("Age() = %v, want 90m", got)
	}
}
