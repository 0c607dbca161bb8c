// Package brute resolves dictionary candidates under a domain.
package brute

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rootsploit/deepx/internal/subdomain"
)

// Bruteforcer resolves word.domain for every dictionary word.
type Bruteforcer struct {
	resolver    Resolver
	concurrency int
	timeout     time.Duration
	log         log.FieldLogger

	// DetectWildcard resolves a random label first and drops candidates that
	// only resolve to the wildcard answers.
	DetectWildcard bool
}

// New returns a brute forcer running at most concurrency lookups at once,
// each bounded by timeout.
func New(resolver Resolver, concurrency int, timeout time.Duration, logger log.FieldLogger) *Bruteforcer {
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Bruteforcer{
		resolver:       resolver,
		concurrency:    concurrency,
		timeout:        timeout,
		log:            logger,
		DetectWildcard: true,
	}
}

// Brute returns the candidates that resolve. Individual lookup failures and
// timeouts exclude the candidate; a cancelled ctx stops the batch and
// returns what resolved so far.
func (b *Bruteforcer) Brute(ctx context.Context, domain string, words []string) subdomain.Set {
	found := subdomain.NewSet()
	if len(words) == 0 {
		return found
	}

	var wildcard map[string]struct{}
	if b.DetectWildcard {
		var err error
		wildcard, err = b.wildcardAnswers(ctx, domain)
		if err != nil {
			b.log.WithField("domain", domain).WithError(err).Warn("wildcard check skipped")
		}
		if len(wildcard) > 0 {
			b.log.WithField("domain", domain).Warnf("wildcard DNS detected (%d answers), filtering matches", len(wildcard))
		}
	}

	candidates := make(map[string]struct{}, len(words))
	for _, w := range words {
		if h, ok := subdomain.Clean(w+"."+domain, domain); ok && h != domain {
			candidates[h] = struct{}{}
		}
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for host := range candidates {
		host := host
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			answers, err := b.lookup(ctx, host)
			if err != nil || len(answers) == 0 {
				return nil
			}
			if len(wildcard) > 0 && allIn(answers, wildcard) {
				return nil
			}
			mu.Lock()
			found.Add(host)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	b.log.WithFields(log.Fields{"domain": domain, "candidates": len(candidates), "resolved": found.Len()}).Info("brute force finished")
	return found
}

func (b *Bruteforcer) lookup(ctx context.Context, host string) ([]string, error) {
	lctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.resolver.Lookup(lctx, host)
}

// randomLabel returns a label no real zone is expected to hold.
var randomLabel = func() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("random label: %w", err)
	}
	return "deepx-" + strings.ReplaceAll(id.String(), "-", ""), nil
}

func (b *Bruteforcer) wildcardAnswers(ctx context.Context, domain string) (map[string]struct{}, error) {
	label, err := randomLabel()
	if err != nil {
		return nil, err
	}
	answers, err := b.lookup(ctx, label+"."+domain)
	if err != nil || len(answers) == 0 {
		return nil, nil
	}
	out := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		out[a] = struct{}{}
	}
	return out, nil
}

func allIn(answers []string, set map[string]struct{}) bool {
	for _, a := range answers {
		if _, ok := set[a]; !ok {
			return false
		}
	}
	return true
}
