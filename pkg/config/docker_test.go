package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		inDocker bool
		expected string
	}{
		{"remote host unchanged", "mydb.example.com", true, "mydb.example.com"},
		{"localhost in docker", "localhost", true, dockerHostAlias},
		{"loopback ip in docker", "127.0.0.1", true, dockerHostAlias},
		{"localhost outside docker", "localhost", false, "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveHost(tt.input, tt.inDocker))
		})
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		inDocker bool
		expected string
	}{
		{"ollama in docker", "http://localhost:11434/v1", true, "http://host.docker.internal:11434/v1"},
		{"no port", "http://127.0.0.1/v1", true, "http://host.docker.internal/v1"},
		{"remote unchanged", "https://api.openai.com/v1", true, "https://api.openai.com/v1"},
		{"outside docker", "http://localhost:11434/v1", false, "http://localhost:11434/v1"},
		{"empty", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveURL(tt.input, tt.inDocker))
		})
	}
}

func TestResolveHostForDocker_RemoteHosts(t *testing.T) {
	for _, host := range []string{"mydb.example.com", "192.168.1.100", dockerHostAlias} {
		assert.Equal(t, host, ResolveHostForDocker(host))
	}
}
