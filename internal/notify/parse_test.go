package notify

import (
	"testing"
	"time"
)

func TestParseAlarmTime(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		spec string
		want time.Time
	}{
		{
			name: "past time rolls to tomorrow",
			spec: "09:00",
			want: time.Date(2025, 6, 2, 9, 0, 0, 0, time.Local),
		},
		{
			name: "future time fires today",
			spec: "10:30",
			want: time.Date(2025, 6, 1, 10, 30, 0, 0, time.Local),
		},
		{
			name: "exactly now rolls to tomorrow",
			spec: "10:00",
			want: time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local),
		},
		{
			name: "midnight",
			spec: "00:00",
			want: time.Date(2025, 6, 2, 0, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlarmTime(tt.spec, now)
			if err != nil {
				t.Fatalf("ParseAlarmTime(%q) error: %v", tt.spec, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseAlarmTime(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestParseAlarmTimeInvalid(t *testing.T) {
	t.Parallel()
	now := time.Now()
	for _, spec := range []string{"", "25:00", "12:60", "9am", "12-30", "banana"} {
		if _, err := ParseAlarmTime(spec, now); err == nil {
			t.Fatalf("ParseAlarmTime(%q): expected error", spec)
		}
	}
}

func TestParseTimerDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		spec string
		want time.Duration
	}{
		{"5min", 5 * time.Minute},
		{"1min", time.Minute},
		{"2h", 2 * time.Hour},
		{"90min", 90 * time.Minute},
	}
	for _, tt := range tests {
		got, err := ParseTimerDuration(tt.spec)
		if err != nil {
			t.Fatalf("ParseTimerDuration(%q) error: %v", tt.spec, err)
		}
		if got != tt.want {
			t.Fatalf("ParseTimerDuration(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestParseTimerDurationInvalid(t *testing.T) {
	t.Parallel()
	for _, spec := range []string{"", "abc", "0min", "-3h", "5", "5m", "1.5h", "5 min", "min", "h", "9999999min"} {
		if _, err := ParseTimerDuration(spec); err == nil {
			t.Fatalf("ParseTimerDuration(%q): expected error", spec)
		}
	}
}
