package auth

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rmiah209/mamba-password-manager/internal/errs"
)

const (
	defaultRangeURL  = "https://api.pwnedpasswords.com/range/"
	breachUserAgent  = "mamba-password-manager/0.1"
	breachHTTPExpiry = 4 * time.Second
)

// BreachAdvisor queries the pwned-passwords range API using
// k-anonymity: only the first 5 hex characters of SHA1(password) leave
// the process. Advisory only; it is never a correctness dependency of
// the vault.
type BreachAdvisor struct {
	baseURL string
	client  *http.Client
}

// NewBreachAdvisor returns an advisor bound to the public range API.
func NewBreachAdvisor() *BreachAdvisor {
	return &BreachAdvisor{
		baseURL: defaultRangeURL,
		client:  &http.Client{Timeout: breachHTTPExpiry},
	}
}

// NewBreachAdvisorWithClient allows injecting the endpoint and client,
// used by tests and alternate deployments.
func NewBreachAdvisorWithClient(baseURL string, client *http.Client) *BreachAdvisor {
	if client == nil {
		client = &http.Client{Timeout: breachHTTPExpiry}
	}
	return &BreachAdvisor{baseURL: baseURL, client: client}
}

// LeakCount returns how many times the password appears in known
// breaches, or 0 when absent. A non-success response or transport
// failure is reported as errs.ErrService; callers decide whether to
// degrade to "unknown".
func (b *BreachAdvisor) LeakCount(ctx context.Context, password string) (int, error) {
	sum := sha1.Sum([]byte(password))
	hashHex := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := hashHex[:5], hashHex[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+prefix, nil)
	if err != nil {
		return 0, fmt.Errorf("breach request: %w", err)
	}
	req.Header.Set("User-Agent", breachUserAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: breach query: %v", errs.ErrService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: breach query: unexpected status %s", errs.ErrService, resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sep := strings.IndexByte(line, ':')
		if sep == -1 {
			continue
		}
		if !strings.EqualFold(line[:sep], suffix) {
			continue
		}

		count, err := strconv.Atoi(strings.TrimSpace(line[sep+1:]))
		if err != nil {
			return 0, fmt.Errorf("%w: breach parse count: %v", errs.ErrService, err)
		}
		return count, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("%w: breach read response: %v", errs.ErrService, err)
	}

	return 0, nil
}
