package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigErrorClassification(t *testing.T) {
	err := NewConfigf("unknown column %q", "Bogus")
	if !IsConfig(err) {
		t.Error("expected config error classification")
	}
	if IsRetrieval(err) {
		t.Error("config error must not classify as retrieval error")
	}
}

func TestConfigErrorWrapping(t *testing.T) {
	err := NewConfig(fmt.Errorf("resolving columns: %w", ErrUnknownColumn))
	if !errors.Is(err, ErrUnknownColumn) {
		t.Error("expected wrapped sentinel to survive classification")
	}

	wrapped := fmt.Errorf("processing directive: %w", err)
	if !IsConfig(wrapped) {
		t.Error("expected config classification through fmt.Errorf wrapping")
	}
}

func TestConfigErrorNil(t *testing.T) {
	if NewConfig(nil) != nil {
		t.Error("wrapping nil must return nil")
	}
	if IsConfig(nil) || IsRetrieval(nil) {
		t.Error("nil must not classify as any error kind")
	}
}

func TestAtLocation(t *testing.T) {
	err := NewConfigf("widths count mismatch")
	err = AtLocation(err, "docs/report.md:12")
	if !strings.Contains(err.Error(), "docs/report.md:12") {
		t.Errorf("expected location in message, got %q", err.Error())
	}

	// location is only attached once
	err = AtLocation(err, "docs/other.md:3")
	if strings.Contains(err.Error(), "other.md") {
		t.Errorf("location must not be overwritten, got %q", err.Error())
	}
}

func TestAtLocationNonConfig(t *testing.T) {
	err := NewRetrieval("stream-a", "", ErrUnauthorized)
	got := AtLocation(err, "docs/report.md:12")
	if got != err {
		t.Error("non-config errors must pass through unchanged")
	}
}

func TestRetrievalErrorClassification(t *testing.T) {
	err := NewRetrievalf("stream-a", "1042", "server returned 500")
	if !IsRetrieval(err) {
		t.Error("expected retrieval error classification")
	}
	if IsConfig(err) {
		t.Error("retrieval error must not classify as config error")
	}
	if !strings.Contains(err.Error(), "stream-a") || !strings.Contains(err.Error(), "1042") {
		t.Errorf("expected stream and snapshot in message, got %q", err.Error())
	}
}

func TestRetrievalErrorUnwrap(t *testing.T) {
	err := NewRetrieval("stream-a", "", ErrMalformedResponse)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Error("expected sentinel to be reachable via errors.Is")
	}
}
