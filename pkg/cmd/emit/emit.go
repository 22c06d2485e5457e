package emit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stleox/seetrace/pkg/config"
	pkgreporter "github.com/stleox/seetrace/pkg/reporter"
	pkgtracer "github.com/stleox/seetrace/pkg/tracer"
	"github.com/zeromicro/go-zero/core/threading"
)

var (
	emitOpts struct {
		workers     int
		traces      int
		depth       int
		fanout      int
		metricsAddr string
	}

	emitFlags = pflag.NewFlagSet("emit", pflag.ContinueOnError)
)

func init() {
	emitFlags.IntVar(&emitOpts.workers, "workers", 4, "Number of goroutines creating traces")
	emitFlags.IntVar(&emitOpts.traces, "traces", 100, "Traces created by every worker, 0 means until interrupted")
	emitFlags.IntVar(&emitOpts.depth, "depth", 3, "Depth of every trace, each level is a downstream service")
	emitFlags.IntVar(&emitOpts.fanout, "fanout", 2, "Children of every non-leaf span")
	emitFlags.StringVar(&emitOpts.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")
}

func New(vp *viper.Viper) *cobra.Command {
	emit := &cobra.Command{
		Use:   "emit",
		Short: "Create synthetic traces and report them to the configured sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			// init main context of `emit`
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			opts, err := config.Load(vp)
			if err != nil {
				return err
			}
			logrus.WithField("options", fmt.Sprintf("%+v", *opts)).Debug("SeeTrace loaded options")

			// init tracerManager
			config.MaxNumTracer = opts.MaxTracers
			tracerManager, err := pkgtracer.NewTracerManager(opts.Sampler)
			if err != nil {
				return err
			}

			// init reporter
			sinks, err := pkgreporter.NewSinks(ctx, opts)
			if err != nil {
				return err
			}
			reporter := pkgreporter.New(tracerManager, opts.ReportInterval, sinks...)
			if err := reporter.Start(); err != nil {
				return err
			}
			defer func() {
				// ctx 可能已被取消，收尾用新的 ctx
				closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer closeCancel()
				if err := reporter.Close(closeCtx); err != nil {
					logrus.WithError(err).Error("SeeTrace couldn't report the last spans")
				}
			}()

			if emitOpts.metricsAddr != "" {
				stop := serveMetrics(emitOpts.metricsAddr)
				defer stop()
			}

			gen := &generator{
				tm:     tracerManager,
				root:   opts.ServiceName,
				depth:  emitOpts.depth,
				fanout: emitOpts.fanout,
			}
			group := threading.NewRoutineGroup()
			for w := 0; w < emitOpts.workers; w++ {
				group.RunSafe(func() {
					gen.run(ctx, emitOpts.traces)
				})
			}
			group.Wait()

			logrus.WithFields(logrus.Fields{
				"traces":  gen.traces.Load(),
				"spans":   gen.spans.Load(),
				"tracers": tracerManager.Len(),
			}).Info("SeeTrace finished emitting")
			return gen.err()
		},
	}
	emit.Flags().AddFlagSet(emitFlags)
	return emit
}

func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	threading.GoSafe(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("SeeTrace couldn't serve metrics")
		}
	})
	logrus.WithField("addr", addr).Info("SeeTrace serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("SeeTrace couldn't stop serving metrics")
		}
	}
}

type tracerGetter interface {
	GetTracer(service string) (*pkgtracer.Tracer, error)
}

// generator builds traces whose level i is handled by service "<root>-<i>".
type generator struct {
	tm     tracerGetter
	root   string
	depth  int
	fanout int

	traces  atomic.Int64
	spans   atomic.Int64
	lastErr atomic.Pointer[error]
}

func (g *generator) run(ctx context.Context, n int) {
	for i := 0; n == 0 || i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		if err := g.trace(); err != nil {
			g.lastErr.Store(&err)
			return
		}
		g.traces.Add(1)
	}
}

func (g *generator) trace() error {
	t, err := g.tm.GetTracer(g.root)
	if err != nil {
		return err
	}
	root := t.StartSpan("request", pkgtracer.WithTags(
		pkgtracer.Tag{Key: "span.kind", Value: "server"},
		pkgtracer.Tag{Key: "http.method", Value: "GET"},
	))
	err = g.children(root, 1)
	if err != nil {
		root.SetTag("error", true)
	}
	root.Finish()
	g.spans.Add(1)
	return err
}

func (g *generator) children(parent *pkgtracer.Span, level int) error {
	if level >= g.depth {
		return nil
	}
	t, err := g.tm.GetTracer(fmt.Sprintf("%s-%d", g.root, level))
	if err != nil {
		return err
	}
	for i := 0; i < g.fanout; i++ {
		span := t.StartSpan(fmt.Sprintf("call-%d", i), pkgtracer.ChildOf(parent.Context()))
		// 模拟处理耗时
		time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
		span.Log(pkgtracer.Tag{Key: "event", Value: "handled"}, pkgtracer.Tag{Key: "level", Value: level})
		err := g.children(span, level+1)
		if err != nil {
			span.SetTag("error", true)
		}
		span.Finish()
		g.spans.Add(1)
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) err() error {
	if p := g.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}
