package domain

import "testing"

func TestParseMinuteOfDay(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{name: "time only", in: "17:00:00", want: 1020},
		{name: "with seconds", in: "18:07:30", want: 1087.5},
		{name: "full datetime", in: "2025-01-15 18:07:00", want: 1087},
		{name: "leading space", in: " 09:30:00", want: 570},
		{name: "garbage", in: "not-a-time", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMinuteOfDay(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseMinuteOfDay(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(1020); got != "17:00" {
		t.Fatalf("FormatClock(1020) = %q, want 17:00", got)
	}
	if got := FormatClock(1087.5); got != "18:07" {
		t.Fatalf("FormatClock(1087.5) = %q, want 18:07", got)
	}
	if got := FormatClock(1440); got != "00:00" {
		t.Fatalf("FormatClock(1440) = %q, want 00:00", got)
	}
}
