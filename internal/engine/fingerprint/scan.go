package fingerprint

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emo-crab/observer-ward-sub000/internal/config"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/cluster"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/progress"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/stream"
	"github.com/emo-crab/observer-ward-sub000/internal/pkg/engerr"
)

// Options configures a single target's scan: network identity, timeouts,
// and the post-processing switches applied before results are returned.
type Options struct {
	Timeout         time.Duration
	UserAgent       string
	ProxyURL        *url.URL
	MaxBodySize     int
	OmitCertificate bool
	OmitRaw         bool
}

// OptionsFromConfig derives scan Options from the loaded engine
// configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	var proxyURL *url.URL
	if cfg.Probe.ProxyURL != "" {
		if u, err := url.Parse(cfg.Probe.ProxyURL); err == nil {
			proxyURL = u
		}
	}
	return Options{
		Timeout:         cfg.Timeouts.HTTP,
		UserAgent:       cfg.Probe.UserAgent,
		ProxyURL:        proxyURL,
		OmitCertificate: cfg.Probe.OmitCertificate,
		OmitRaw:         cfg.Probe.OmitRaw,
	}
}

// Scanner drives clustered templates against targets. One Scanner is
// built per scan run and shared read-only across every worker: the
// compiled ClusterType never mutates after Build.
type Scanner struct {
	clusters *cluster.Type
	options  Options
}

// NewScanner builds a Scanner from an already-clustered template set.
func NewScanner(clusters *cluster.Type, options Options) *Scanner {
	return &Scanner{clusters: clusters, options: options}
}

// Target runs the full probe plan against one target URI, dispatching on
// scheme: http/https run the HTTP flow; tcp and tls run the TCP flow. A
// bare host (or host:port) with no scheme tries HTTPS then HTTP,
// stopping at the first successful index fetch, so ambiguous hostnames
// don't double the probe count.
func (s *Scanner) Target(ctx context.Context, rawTarget string) (map[string]*MatchedResult, error) {
	progress.ReportStage(ctx, progress.StageProbe)

	scheme, rest := splitScheme(rawTarget)
	switch scheme {
	case "http", "https":
		base, err := url.Parse(rawTarget)
		if err != nil {
			return nil, engerr.NewUsageError(err)
		}
		return s.runHTTPTarget(ctx, base)
	case "tcp", "tls":
		host, port, err := splitHostPort(rest, defaultPortFor(scheme))
		if err != nil {
			return nil, engerr.NewUsageError(err)
		}
		results, runErr := s.runTCP(ctx, host, port, s.clusters)
		if runErr != nil {
			return nil, engerr.ParseContextError(runErr)
		}
		return results, nil
	default:
		return s.runBareHostTarget(ctx, rawTarget)
	}
}

// runHTTPTarget runs the HTTP flow against base.
func (s *Scanner) runHTTPTarget(ctx context.Context, base *url.URL) (map[string]*MatchedResult, error) {
	results, err := s.runHTTP(ctx, base, s.clusters)
	if err != nil {
		return nil, engerr.ParseContextError(err)
	}
	PostProcess(results, s.options.OmitCertificate, s.options.OmitRaw)
	progress.ReportStage(ctx, progress.StageMatch)
	return results, nil
}

// runBareHostTarget tries https then http against a scheme-less target,
// returning the first scheme whose index request succeeds.
func (s *Scanner) runBareHostTarget(ctx context.Context, host string) (map[string]*MatchedResult, error) {
	var lastErr error
	for _, scheme := range []string{"https", "http"} {
		base, err := url.Parse(scheme + "://" + host)
		if err != nil {
			return nil, engerr.NewUsageError(err)
		}
		results, runErr := s.runHTTP(ctx, base, s.clusters)
		if runErr == nil {
			PostProcess(results, s.options.OmitCertificate, s.options.OmitRaw)
			return results, nil
		}
		lastErr = runErr
	}
	return nil, engerr.ParseContextError(lastErr)
}

func splitScheme(target string) (scheme, rest string) {
	if idx := strings.Index(target, "://"); idx >= 0 {
		return strings.ToLower(target[:idx]), target[idx+3:]
	}
	return "", target
}

func splitHostPort(hostport string, fallbackPort int) (string, int, error) {
	if host, portStr, err := net.SplitHostPort(hostport); err == nil {
		port, convErr := strconv.Atoi(portStr)
		if convErr != nil {
			return "", 0, convErr
		}
		return host, port, nil
	}
	return hostport, fallbackPort, nil
}

func defaultPortFor(scheme string) int {
	if scheme == "tls" {
		return 443
	}
	return 80
}

// RunPool feeds targets through a fixed-size worker pool and streams each
// target's completed result map onto the returned channel. The pool size
// is workers (at least 1). Each target's outcome, error or results, is
// emitted onto the returned channel as a TargetResult; errors are also
// reported to ctx's attached progress.Publisher when present.
func RunPool(ctx context.Context, scanner *Scanner, targets []string, workers int) <-chan stream.Item {
	emitter, ch := stream.NewChannelEmitter(len(targets))
	if workers <= 0 {
		workers = 1
	}

	go func() {
		var wg sync.WaitGroup
		jobs := make(chan string)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for target := range jobs {
					results, err := scanner.Target(ctx, target)
					if err != nil {
						progress.ReportError(ctx, progress.StageProbe, err)
						_ = emitter.Emit(ctx, TargetResult{Target: target, Err: err})
						continue
					}
					_ = emitter.Emit(ctx, TargetResult{Target: target, Results: results})
				}
			}()
		}

		for _, target := range targets {
			select {
			case jobs <- target:
			case <-ctx.Done():
			}
		}
		close(jobs)
		wg.Wait()
		emitter.Close(nil)
	}()

	return ch
}

// TargetResult pairs one target with its scan outcome for consumers
// draining RunPool's channel.
type TargetResult struct {
	Target  string
	Results map[string]*MatchedResult
	Err     error
}
