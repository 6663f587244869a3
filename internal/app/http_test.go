package app

import (
	"net/http"
	"reflect"
	"testing"
	"time"
)

func TestNewLLMHTTPClient_Config(t *testing.T) {
	c := newLLMHTTPClient(20 * time.Second)
	if c.Timeout != 25*time.Second {
		t.Fatalf("timeout=%v, want call timeout plus slack", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected http.Transport")
	}
	if tr.Proxy == nil {
		t.Fatalf("expected proxy from environment")
	}
	// Ensure we didn't return the default client's transport
	if reflect.ValueOf(http.DefaultTransport).Pointer() == reflect.ValueOf(tr).Pointer() {
		t.Fatalf("transport should not be default")
	}
}

func TestNewLLMHTTPClient_DefaultTimeout(t *testing.T) {
	c := newLLMHTTPClient(0)
	if c.Timeout != DefaultLLMTimeout+5*time.Second {
		t.Fatalf("timeout=%v", c.Timeout)
	}
}
