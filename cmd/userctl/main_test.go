package main

import (
	"strings"
	"testing"
)

func TestParseCredentialLine(t *testing.T) {
	cases := []struct {
		line     string
		team     string
		username string
		password string
	}{
		{"Team Alpha - alpha:secret1", "Team Alpha", "alpha", "secret1"},
		{"Team Alpha - alpha:secret1,", "Team Alpha", "alpha", "secret1"},
		{"  Beta Squad  -  beta : pass word  ", "Beta Squad", "beta", "pass word"},
		{"gamma - gamma:pa:ss:word", "gamma", "gamma", "pa:ss:word"},
	}

	for _, tc := range cases {
		team, username, password, err := parseCredentialLine(tc.line)
		if err != nil {
			t.Errorf("parse %q: expected no error, got %v", tc.line, err)
			continue
		}
		if team != tc.team || username != tc.username || password != tc.password {
			t.Errorf("parse %q: expected (%q, %q, %q), got (%q, %q, %q)",
				tc.line, tc.team, tc.username, tc.password, team, username, password)
		}
	}
}

func TestParseCredentialLineRejectsMalformed(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"alpha:secret", "invalid format"},
		{"Team Alpha alpha:secret", "invalid format"},
		{"Team Alpha - alphasecret", "invalid format"},
		{"Team Alpha - :secret", "empty field"},
		{"Team Alpha - alpha:", "empty field"},
		{" - alpha:secret", "invalid format"},
	}

	for _, tc := range cases {
		_, _, _, err := parseCredentialLine(tc.line)
		if err == nil {
			t.Errorf("parse %q: expected an error", tc.line)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("parse %q: expected %q in error, got %v", tc.line, tc.want, err)
		}
	}
}
