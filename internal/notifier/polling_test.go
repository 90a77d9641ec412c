package notifier

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
		ok   bool
	}{
		{"/screen", Command{Name: "screen"}, true},
		{"/recent 20", Command{Name: "recent", Args: []string{"20"}}, true},
		{"/Backtest@SwingBot 8 25", Command{Name: "backtest", Args: []string{"8", "25"}}, true},
		{"  /status  ", Command{Name: "status"}, true},
		{"hello there", Command{}, false},
		{"/", Command{}, false},
		{"/@SwingBot", Command{}, false},
		{"", Command{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseCommand(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if got.Name != tt.want.Name || !reflect.DeepEqual(got.Args, tt.want.Args) {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
