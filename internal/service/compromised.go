package service

import (
	"bufio"
	"context"
	"crypto/sha1" // #nosec G505 -- the k-anonymity range API is keyed by SHA-1.
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CompromisedPasswordChecker answers whether a candidate password appears in a
// known-compromised corpus.
type CompromisedPasswordChecker interface {
	Compromised(ctx context.Context, password string) (bool, error)
}

// RangeAPICompromisedChecker queries a havibeenpwned-style range endpoint
// using k-anonymity: only the first five hex characters of the SHA-1 digest
// leave the process.
type RangeAPICompromisedChecker struct {
	baseURL string
	client  *http.Client
}

func NewRangeAPICompromisedChecker(baseURL string) *RangeAPICompromisedChecker {
	return &RangeAPICompromisedChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *RangeAPICompromisedChecker) Compromised(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password)) // #nosec G401
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+prefix, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Add-Padding", "true")
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("compromised range lookup returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		entry, count, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(entry, suffix) && strings.TrimSpace(count) != "0" {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// StaticCompromisedChecker matches against a fixed list. Used in tests and
// when the range API is disabled but a local denylist is still wanted.
type StaticCompromisedChecker struct {
	entries map[string]struct{}
}

func NewStaticCompromisedChecker(passwords ...string) *StaticCompromisedChecker {
	entries := make(map[string]struct{}, len(passwords))
	for _, p := range passwords {
		entries[p] = struct{}{}
	}
	return &StaticCompromisedChecker{entries: entries}
}

func (c *StaticCompromisedChecker) Compromised(_ context.Context, password string) (bool, error) {
	_, ok := c.entries[password]
	return ok, nil
}

// NoopCompromisedChecker accepts every password.
type NoopCompromisedChecker struct{}

func (NoopCompromisedChecker) Compromised(context.Context, string) (bool, error) {
	return false, nil
}
