package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/authmock"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const loadPassword = "Load-test-pass-1"

func main() {
	var (
		sessions    = flag.Int("sessions", 64, "number of signed-in clients")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "gateway calls to send")
		expireEvery = flag.Duration("expire-every", 50*time.Millisecond, "expire every access token at this interval (0 disables)")
		redisAddr   = flag.String("redis-addr", "", "redis address for the mock server; if empty, REDIS_ADDR env or miniredis is used")
		metricsAddr = flag.String("metrics-addr", "", "serve /metrics for the first client on this address while running")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	mock, err := authmock.NewServer(authmock.Options{
		Redis:   rdb,
		Hash:    authmock.FastHashParams(),
		GinMode: gin.ReleaseMode,
		Logger:  slog.New(slog.DiscardHandler),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mock server: %v\n", err)
		os.Exit(1)
	}
	defer mock.Close()

	baseURL, stopServer, err := serve(mock.Handler())
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen: %v\n", err)
		os.Exit(1)
	}
	defer stopServer()

	clients := make([]*goSession.Client, *sessions)
	fmt.Printf("signing in %d clients...\n", *sessions)
	startSeed := time.Now()
	for i := range clients {
		c, err := signIn(ctx, mock, baseURL, i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign in %d: %v\n", i, err)
			os.Exit(1)
		}
		defer c.Close()
		clients[i] = c
	}
	fmt.Printf("signed in in %s\n", time.Since(startSeed).Round(time.Millisecond))

	if *metricsAddr != "" {
		h, err := promexport.Handler(clients[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "metrics handler: %v\n", err)
			os.Exit(1)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", h)
		go func() { _ = http.ListenAndServe(*metricsAddr, mux) }()
		fmt.Printf("serving metrics at http://%s/metrics\n", *metricsAddr)
	}

	stopExpiry := expireLoop(mock, *expireEvery)
	stats := runCallPhase(ctx, clients, *ops, *concurrency)
	stopExpiry()

	fmt.Println("---- results ----")
	printStats("call", stats)
	printRefreshSummary(mock, clients)
}

func serve(h http.Handler) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		}
	}()
	return "http://" + ln.Addr().String(), func() { _ = srv.Close() }, nil
}

func signIn(ctx context.Context, mock *authmock.Server, baseURL string, i int) (*goSession.Client, error) {
	email := fmt.Sprintf("load-%d@example.com", i)
	if err := mock.AddUser(email, loadPassword); err != nil {
		return nil, err
	}
	c, err := goSession.New().
		WithBaseURL(baseURL).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		BuildContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.Login(ctx, email, loadPassword); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func expireLoop(mock *authmock.Server, every time.Duration) (stop func()) {
	if every <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				mock.ExpireAccessTokens()
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func runCallPhase(ctx context.Context, clients []*goSession.Client, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	began := time.Now()
	for w := range concurrency {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				c := clients[r.Intn(len(clients))]
				t0 := time.Now()
				_, err := c.Get(ctx, "/api/load", nil)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(began), latencies, failures)
}

type phaseStats struct {
	elapsed  time.Duration
	calls    int
	failures int64

	// quantiles holds p50, p95, p99 and max.
	quantiles [4]time.Duration
}

func computeStats(elapsed time.Duration, samples []time.Duration, failures int64) phaseStats {
	st := phaseStats{elapsed: elapsed, calls: len(samples), failures: failures}
	if len(samples) == 0 {
		return st
	}
	slices.Sort(samples)
	last := len(samples) - 1
	for i, q := range []float64{0.50, 0.95, 0.99, 1} {
		st.quantiles[i] = samples[int(float64(last)*q)]
	}
	return st
}

func (s phaseStats) rate() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.calls) / s.elapsed.Seconds()
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: calls=%d failures=%d elapsed=%s calls/sec=%.0f\n",
		name, s.calls, s.failures, s.elapsed.Round(time.Millisecond), s.rate())
	for i, label := range []string{"p50", "p95", "p99", "max"} {
		fmt.Printf("  %-4s %s\n", label, s.quantiles[i].Round(time.Microsecond))
	}
}

// printRefreshSummary compares refresh requests seen by the server with the
// flights the clients ran. With single-flight working the two match and the
// shared count carries the rest of the 401s.
func printRefreshSummary(mock *authmock.Server, clients []*goSession.Client) {
	var totals [3]uint64
	for _, c := range clients {
		totals[0] += c.Metrics().Value(goSession.MetricRefreshSuccess)
		totals[1] += c.Metrics().Value(goSession.MetricRefreshShared)
		totals[2] += c.Metrics().Value(goSession.MetricRequestRetried)
	}
	fmt.Printf("refresh: server_calls=%d %s=%d %s=%d %s=%d\n",
		mock.RefreshCalls(),
		goSession.MetricRefreshSuccess.Name(), totals[0],
		goSession.MetricRefreshShared.Name(), totals[1],
		goSession.MetricRequestRetried.Name(), totals[2],
	)
}
