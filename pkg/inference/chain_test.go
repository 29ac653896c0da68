package inference

import (
	"context"
	"errors"
	"testing"
)

func TestChainFallback(t *testing.T) {
	ctx := context.Background()

	// First oracle fails
	failing := WithError(errors.New("oracle 1 failed"))

	// Second oracle succeeds
	working := NewMock(`["stop", null, null, null]`)

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}
	defer chain.Close()

	resp, err := chain.Complete(ctx, &CompletionRequest{Prompt: "stop"})
	if err != nil {
		t.Fatalf("Chain complete failed: %v", err)
	}

	if resp.Text != `["stop", null, null, null]` {
		t.Errorf("Unexpected response: %s", resp.Text)
	}
	if failing.CallCount("Complete") != 1 || working.CallCount("Complete") != 1 {
		t.Errorf("Expected one call each, got %d and %d",
			failing.CallCount("Complete"), working.CallCount("Complete"))
	}
}

func TestChainFirstWins(t *testing.T) {
	first := NewMock("first")
	second := NewMock("second")

	chain, _ := NewChain(first, second)
	resp, err := chain.Complete(context.Background(), &CompletionRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("Chain complete failed: %v", err)
	}
	if resp.Text != "first" {
		t.Errorf("Expected first, got %s", resp.Text)
	}
	if second.CallCount("Complete") != 0 {
		t.Error("Second oracle should not be called")
	}
}

func TestChainAllFail(t *testing.T) {
	ctx := context.Background()

	p1 := WithError(errors.New("oracle 1 failed"))
	p2 := WithError(ErrEmptyResponse)

	chain, _ := NewChain(p1, p2)
	defer chain.Close()

	_, err := chain.Complete(ctx, &CompletionRequest{Prompt: "test"})
	if err == nil {
		t.Fatal("Expected error when all oracles fail")
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Expected ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(chainErr.Errors))
	}
	if !errors.Is(err, ErrEmptyResponse) {
		t.Error("ChainError should unwrap to member errors")
	}
}

func TestChainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p1 := WithError(context.Canceled)
	p2 := NewMock("unreached")

	chain, _ := NewChain(p1, p2)
	_, err := chain.Complete(ctx, &CompletionRequest{Prompt: "test"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if p2.CallCount("Complete") != 0 {
		t.Error("Chain should stop after cancellation")
	}
}

func TestChainName(t *testing.T) {
	a := NewMock("")
	a.NameValue = "gemini"
	b := NewMock("")
	b.NameValue = "grammar"

	chain, _ := NewChain(a, b)
	if got := chain.Name(); got != "gemini>grammar" {
		t.Errorf("Expected gemini>grammar, got %s", got)
	}
}

func TestChainEmpty(t *testing.T) {
	_, err := NewChain()
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestChainClose(t *testing.T) {
	p1 := NewMock("")
	p2 := NewMock("")
	p2.CloseFunc = func() error { return errors.New("close failed") }

	chain, _ := NewChain(p1, p2)
	if err := chain.Close(); err == nil {
		t.Error("Expected close error to surface")
	}
	if p1.CallCount("Close") != 1 || p2.CallCount("Close") != 1 {
		t.Error("Expected every oracle to be closed")
	}
}
