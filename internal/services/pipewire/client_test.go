package pipewire_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pmxfactory/internal/services"
	"pmxfactory/internal/services/pipewire"
)

func TestCreateLinkByName(t *testing.T) {
	var got pipewire.LinkRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/links/by-name" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	link := pipewire.LinkRequest{OutputNodeName: "gain_1", OutputPortID: 1, InputNodeName: "xfade_9", InputPortID: 3}
	if err := pipewire.New(server.URL, server.Client()).CreateLinkByName(context.Background(), link); err != nil {
		t.Fatalf("CreateLinkByName returned error: %v", err)
	}
	if got != link {
		t.Fatalf("server saw %+v, want %+v", got, link)
	}
}

func TestCreateLinkByNameUnknownNode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "node not found", http.StatusNotFound)
	}))
	defer server.Close()

	err := pipewire.New(server.URL, server.Client()).CreateLinkByName(context.Background(), pipewire.LinkRequest{})
	if !errors.Is(err, services.ErrProtocol) {
		t.Fatalf("expected protocol marker, got %v", err)
	}
	var statusErr *services.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status error 404, got %v", err)
	}
}
