package gateway

import (
	"reflect"
	"testing"
)

func TestParsePairs(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		want        []pair
		wantSkipped int
	}{
		{
			name: "simple",
			body: "RA=156.3626\nDEC=46.6493",
			want: []pair{{"RA", "156.3626"}, {"DEC", "46.6493"}},
		},
		{
			name: "crlf and blank lines",
			body: "A=1\r\n\r\nB=2\r\n",
			want: []pair{{"A", "1"}, {"B", "2"}},
		},
		{
			name: "split on first equals",
			body: "EXPR=a=b",
			want: []pair{{"EXPR", "a=b"}},
		},
		{
			name: "empty value kept",
			body: "EMPTY=",
			want: []pair{{"EMPTY", ""}},
		},
		{
			name:        "malformed lines skipped",
			body:        "novalue\n=orphan\n  =x\nOK=1",
			want:        []pair{{"OK", "1"}},
			wantSkipped: 3,
		},
		{
			name: "surrounding spaces trimmed",
			body: "  KEY  =  value with spaces  ",
			want: []pair{{"KEY", "value with spaces"}},
		},
		{
			name: "empty body",
			body: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, skipped := parsePairs(tt.body)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("pairs = %v, want %v", got, tt.want)
			}
			if skipped != tt.wantSkipped {
				t.Errorf("skipped = %d, want %d", skipped, tt.wantSkipped)
			}
		})
	}
}

func TestParseKeys(t *testing.T) {
	got := parseKeys("RA\r\n\n  DEC \nNETSTAT\n")
	want := []string{"RA", "DEC", "NETSTAT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseKeys() = %v, want %v", got, want)
	}
	if got := parseKeys("\n\n"); got != nil {
		t.Errorf("parseKeys(blank) = %v, want nil", got)
	}
}

func TestParseDelay(t *testing.T) {
	tests := []struct {
		arg  string
		want float64
	}{
		{"2", 2},
		{" 0.5 ", 0.5},
		{"0.01", 0.25},
		{"1000", 60},
		{"fast", 1},
		{"", 1},
		{"NaN", 1},
	}
	for _, tt := range tests {
		if got := parseDelay(tt.arg); got != tt.want {
			t.Errorf("parseDelay(%q) = %v, want %v", tt.arg, got, tt.want)
		}
	}
}
