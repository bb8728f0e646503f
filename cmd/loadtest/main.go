package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/fatih/color"
	"github.com/nikolaydubina/fpdecimal"
	"golang.org/x/time/rate"

	"github.com/erain9/tradeshield/pkg/backend/memory"
	"github.com/erain9/tradeshield/pkg/core"
	"github.com/erain9/tradeshield/pkg/feed"
	"github.com/erain9/tradeshield/pkg/server"
)

const (
	numWorkers      = 100
	ordersPerWorker = 1000
	maxReqsPerSec   = 50000
)

// invoker serializes invocations the way the host does: one message at a
// time against the contract state.
type invoker struct {
	mu      sync.Mutex
	handler *server.Handler
	height  int64
}

func (inv *invoker) execute(ctx context.Context, sender string, funds []core.Coin, msg *server.ExecuteMsg) (*server.Response, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.height++
	env := server.Env{Height: inv.height, Time: time.Now().UTC()}
	return inv.handler.Execute(ctx, env, server.MsgInfo{Sender: sender, Funds: funds}, msg)
}

func (inv *invoker) sudoClock(ctx context.Context) (*server.Response, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.height++
	env := server.Env{Height: inv.height, Time: time.Now().UTC()}
	return inv.handler.Sudo(ctx, env, &server.SudoMsg{ClockEndBlock: &server.ClockEndBlockMsg{}})
}

func main() {
	cancelRatio := flag.Float64("cancel-ratio", 0.3, "Fraction of orders to cancel after creation")
	flag.Parse()

	backend := memory.NewMemoryBackend()
	book := core.NewPendingBook(backend)
	gateway := core.GatewayFunc(func(context.Context, uint64, *core.Order) error { return nil })
	rates := feed.Static{"btc/usdc": fpdecimal.FromFloat(30000.0)}

	inv := &invoker{handler: server.NewHandler(book, core.NewCoordinator(book, gateway), rates, nil)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, cleaning up...")
		cancel()
	}()

	limiter := rate.NewLimiter(rate.Limit(maxReqsPerSec), maxReqsPerSec)
	createLatency := hdrhistogram.New(1, int64(10*time.Second/time.Microsecond), 3)
	cancelLatency := hdrhistogram.New(1, int64(10*time.Second/time.Microsecond), 3)
	var histMu sync.Mutex

	var wg sync.WaitGroup
	errChan := make(chan error, numWorkers*ordersPerWorker)

	start := time.Now()
	log.Printf("Starting %d workers, %d orders per worker...", numWorkers, ordersPerWorker)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			owner := fmt.Sprintf("trader-%d", workerID)
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for j := 0; j < ordersPerWorker; j++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				msg := randomCreateMsg(r)
				began := time.Now()
				resp, err := inv.execute(ctx, owner, []core.Coin{msg.Escrow}, &server.ExecuteMsg{CreateSpotOrder: msg})
				if err != nil {
					errChan <- fmt.Errorf("create: %w", err)
					continue
				}
				histMu.Lock()
				_ = createLatency.RecordValue(time.Since(began).Microseconds())
				histMu.Unlock()

				if r.Float64() >= *cancelRatio {
					continue
				}
				id, ok := createdOrderID(resp)
				if !ok {
					continue
				}

				began = time.Now()
				_, err = inv.execute(ctx, owner, nil, &server.ExecuteMsg{
					CancelSpotOrder: &server.CancelOrderMsg{ID: id},
				})
				if err != nil {
					errChan <- fmt.Errorf("cancel: %w", err)
					continue
				}
				histMu.Lock()
				_ = cancelLatency.RecordValue(time.Since(began).Microseconds())
				histMu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)
	close(errChan)

	var errCount int
	var firstErr error
	for err := range errChan {
		if firstErr == nil {
			firstErr = err
		}
		errCount++
	}

	// One trigger sweep over whatever survived the cancels.
	triggerResp, err := inv.sudoClock(ctx)
	if err != nil {
		log.Printf("Trigger sweep failed: %v", err)
	}

	printResults(duration, createLatency, cancelLatency, errCount, triggerResp)

	if errCount > 0 {
		log.Printf("First error: %v", firstErr)
		os.Exit(1)
	}
}

// randomCreateMsg alternates between limit buys below and limit sells
// above the static mark rate so a final trigger sweep exercises both
// bucket directions.
func randomCreateMsg(r *rand.Rand) *server.CreateOrderMsg {
	orderType := core.TypeLimitBuy
	rateOffset := -float64(r.Intn(2000) + 1)
	if r.Float64() < 0.5 {
		orderType = core.TypeLimitSell
		rateOffset = float64(r.Intn(2000) + 1)
	}

	return &server.CreateOrderMsg{
		OrderType: orderType,
		Price: &core.OrderPrice{
			BaseDenom:  "btc",
			QuoteDenom: "usdc",
			Rate:       fpdecimal.FromFloat(30000 + rateOffset),
		},
		Escrow: core.Coin{Denom: "usdc", Amount: fpdecimal.FromFloat(100.0)},
	}
}

func createdOrderID(resp *server.Response) (uint64, bool) {
	for _, event := range resp.Events {
		if event.Type != "order_created" {
			continue
		}
		var id uint64
		if _, err := fmt.Sscanf(event.Attributes["order_id"], "%d", &id); err == nil {
			return id, true
		}
	}
	return 0, false
}

func printResults(duration time.Duration, created, canceled *hdrhistogram.Histogram, errCount int, trigger *server.Response) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	bold.Println("\n=== Load test results ===")
	fmt.Printf("Duration:        %v\n", duration)
	fmt.Printf("Orders created:  %d (%.0f/s)\n", created.TotalCount(),
		float64(created.TotalCount())/duration.Seconds())
	fmt.Printf("Orders canceled: %d\n", canceled.TotalCount())
	if trigger != nil {
		fmt.Printf("Triggered:       %d\n", len(trigger.Events))
	}

	bold.Println("\nCreate latency (µs):")
	fmt.Printf("  p50=%d p99=%d p99.9=%d max=%d\n",
		created.ValueAtQuantile(50), created.ValueAtQuantile(99),
		created.ValueAtQuantile(99.9), created.Max())

	bold.Println("Cancel latency (µs):")
	fmt.Printf("  p50=%d p99=%d p99.9=%d max=%d\n",
		canceled.ValueAtQuantile(50), canceled.ValueAtQuantile(99),
		canceled.ValueAtQuantile(99.9), canceled.Max())

	if errCount > 0 {
		red.Printf("\nErrors: %d\n", errCount)
	} else {
		green.Println("\nNo errors")
	}
}
