package app

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{name: "empty defaults to serve", args: []string{}, want: CommandServe},
		{name: "serve", args: []string{"serve"}, want: CommandServe},
		{name: "profile", args: []string{"profile"}, want: CommandProfile},
		{name: "healthcheck", args: []string{"healthcheck"}, want: CommandHealthcheck},
		{name: "unknown defaults to serve", args: []string{"worker"}, want: CommandServe},
		{name: "extra args are ignored", args: []string{"profile", "--pretty"}, want: CommandProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandServe, "serve"},
		{CommandProfile, "profile"},
		{CommandHealthcheck, "healthcheck"},
	}

	for _, tt := range tests {
		if got := string(tt.cmd); got != tt.want {
			t.Errorf("Command(%q) string = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
