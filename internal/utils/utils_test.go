package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Short", 21, "Short"},
		{"Exactly twenty-one ch", 21, "Exactly twenty-one ch"},
		{"Exactly twenty-one chars", 21, "Exactly twenty-one ch..."},
		{"Amélie Poulain et le fabuleux destin", 21, "Amélie Poulain et le ..."},
		{"", 21, ""},
	}

	for _, tt := range tests {
		if got := TruncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestIsRPCMethod(t *testing.T) {
	valid := []string{"Input.Up", "Player.PlayPause", "GUI.ShowNotification", "Application.SetVolume"}
	invalid := []string{"", "Input", "input.up", "Input.", ".Up", "Input.Up; rm", "Input.Up.Down"}

	for _, m := range valid {
		if !IsRPCMethod(m) {
			t.Errorf("%q should be a method", m)
		}
	}
	for _, m := range invalid {
		if IsRPCMethod(m) {
			t.Errorf("%q should not be a method", m)
		}
	}
}

func TestValidateRPCMethodTag(t *testing.T) {
	type payload struct {
		Method string `json:"method" validate:"required,rpcmethod"`
	}

	if err := Validate(payload{Method: "Input.Home"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Validate(payload{Method: "not a method"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msgs := FormatValidationErrors(err)
	if _, ok := msgs["method"]; !ok {
		t.Fatalf("expected error keyed by json name, got %v", msgs)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{BadRequestError("", nil), http.StatusBadRequest},
		{UnavailableError("down", errors.New("dial")), http.StatusServiceUnavailable},
		{ErrValidation, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestGetRequestIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	if ip := GetRequestIP(req); ip != "10.0.0.5" {
		t.Errorf("got %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "192.168.1.20, 10.0.0.1")
	if ip := GetRequestIP(req); ip != "192.168.1.20" {
		t.Errorf("got %q", ip)
	}

	tests := []struct {
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"[::1]:51234", "", "::1"},
		{"[fe80::1%eth0]:8080", "", "fe80::1%eth0"},
		{"10.0.0.5:51234", "2001:db8::7, 10.0.0.1", "2001:db8::7"},
		{"10.0.0.5:51234", "[2001:db8::7]:443", "2001:db8::7"},
		{"osmc", "", "osmc"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if tt.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tt.forwarded)
		}
		if ip := GetRequestIP(req); ip != tt.want {
			t.Errorf("GetRequestIP(%q, %q) = %q, want %q", tt.remoteAddr, tt.forwarded, ip, tt.want)
		}
	}
}

func TestErrorDetails(t *testing.T) {
	type payload struct {
		Volume int `json:"volume" validate:"max=100"`
	}

	tests := []struct {
		name    string
		err     error
		message string
		field   string
	}{
		{"app error", ValidationError("navigate gesture needs method", ErrValidation).WithDetails(map[string]any{"field": "method"}), "navigate gesture needs method", "field"},
		{"validator", Validate(payload{Volume: 120}), "Validation failed", "volume"},
		{"plain", errors.New("boom"), "boom", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message, details := ErrorDetails(tt.err)
			if message != tt.message {
				t.Errorf("message = %q, want %q", message, tt.message)
			}
			if tt.field == "" {
				if len(details) != 0 {
					t.Errorf("details = %v, want none", details)
				}
				return
			}
			if _, ok := details[tt.field]; !ok {
				t.Errorf("details = %v, want key %q", details, tt.field)
			}
		})
	}
}
