package tor

import (
	"testing"
	"time"
)

func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("creates with default timeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if embedded.startupTimeout != 3*time.Minute {
			t.Errorf("expected default timeout 3m, got %v", embedded.startupTimeout)
		}
	})

	t.Run("applies WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor(WithStartupTimeout(5 * time.Minute))
		if embedded.startupTimeout != 5*time.Minute {
			t.Errorf("expected timeout 5m, got %v", embedded.startupTimeout)
		}
	})
}

// TestEmbeddedTorMethods tests EmbeddedTor methods without starting Tor.
func TestEmbeddedTorMethods(t *testing.T) {
	t.Parallel()

	t.Run("IsRunning returns false before start", func(t *testing.T) {
		t.Parallel()

		if NewEmbeddedTor().IsRunning() {
			t.Error("expected IsRunning to be false before start")
		}
	})

	t.Run("ProxyURL is empty before start", func(t *testing.T) {
		t.Parallel()

		if got := NewEmbeddedTor().ProxyURL(); got != "" {
			t.Errorf("expected empty proxy URL, got %q", got)
		}
	})

	t.Run("ProxyURL uses socks5h scheme", func(t *testing.T) {
		t.Parallel()

		embedded := &EmbeddedTor{socksAddr: "127.0.0.1:39050"}
		if got := embedded.ProxyURL(); got != "socks5h://127.0.0.1:39050" {
			t.Errorf("unexpected proxy URL %q", got)
		}
	})

	t.Run("Stop is safe to call on unstarted instance", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if err := embedded.Stop(); err != nil {
			t.Errorf("expected no error stopping unstarted instance, got %v", err)
		}
		if err := embedded.Stop(); err != nil {
			t.Errorf("expected second Stop to succeed, got %v", err)
		}
	})
}
