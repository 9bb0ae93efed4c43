// h1engine 是示例守护进程：对每个请求读完正文后回复 "Foobar" 并关闭连接。
//
// 配置取自 H1E_ 前缀的环境变量，指标通过 /metrics 暴露。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/favbox/h1engine/common/config"
	"github.com/favbox/h1engine/common/hlog"
	"github.com/favbox/h1engine/common/tracer/prometheus"
	"github.com/favbox/h1engine/network/netpoll"
	"github.com/favbox/h1engine/network/standard"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/consts"
	"github.com/favbox/h1engine/server"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const envPrefix = "H1E_"

type options struct {
	Network         string        `env:"NETWORK"          envDefault:"tcp"`
	Addr            string        `env:"ADDR"             envDefault:":8888"`
	Transport       string        `env:"TRANSPORT"        envDefault:"standard"`
	LimitsFile      string        `env:"LIMITS_FILE"`
	MetricsAddr     string        `env:"METRICS_ADDR"     envDefault:":9090"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"3m"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"     envDefault:"3m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	LogLevel        hlog.Level    `env:"LOG_LEVEL"        envDefault:"info"`
}

func main() {
	opts, err := loadOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "解析配置失败: %v\n", err)
		os.Exit(1)
	}
	hlog.SetLevel(opts.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, newServer(opts, prom.DefaultRegisterer), opts); err != nil {
		hlog.Errorf("h1engine 异常退出: %v", err)
		os.Exit(1)
	}
	hlog.Info("h1engine 已退出")
}

func loadOptions() (options, error) {
	var opts options
	if err := env.ParseWithOptions(&opts, env.Options{Prefix: envPrefix}); err != nil {
		return opts, err
	}
	opts.Transport = strings.ToLower(opts.Transport)
	if opts.Transport != "standard" && opts.Transport != "netpoll" {
		return opts, fmt.Errorf("不支持的传输器 %q", opts.Transport)
	}
	return opts, nil
}

func newServer(opts options, reg prom.Registerer) *server.Server {
	serverOpts := []config.Option{
		server.WithNetwork(opts.Network),
		server.WithHostPorts(opts.Addr),
		server.WithReadTimeout(opts.ReadTimeout),
		server.WithIdleTimeout(opts.IdleTimeout),
		server.WithExitWaitTime(opts.ShutdownTimeout),
		server.WithTracer(prometheus.NewTracer(reg, "")),
	}
	if opts.Transport == "netpoll" {
		serverOpts = append(serverOpts, server.WithTransport(netpoll.NewTransporter))
	} else {
		serverOpts = append(serverOpts, server.WithTransport(standard.NewTransporter))
	}
	if opts.LimitsFile != "" {
		serverOpts = append(serverOpts, server.WithLimitsFile(opts.LimitsFile))
	}
	return server.New(protocol.HandlerFunc(foobar), serverOpts...)
}

// 请求正文由连接任务在调用前读完。
func foobar(ctx context.Context, ex *protocol.Exchange) {
	hlog.CtxDebugf(ctx, "连接=%s 序号=%d %s %s 正文=%d 字节",
		ex.ConnID, ex.Seq, ex.Request.Method, ex.Request.Path, len(ex.Request.Body))
	ex.Response.SetStatusCode(consts.StatusOK)
	ex.Response.Header.Set("connection", "close")
	ex.Response.SetBodyString("Foobar")
}

func run(ctx context.Context, s *server.Server, opts options) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Run()
	})

	var metrics *http.Server
	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metrics = &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			hlog.Infof("指标服务监听地址=%s", opts.MetricsAddr)
			if err := metrics.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		hlog.Infof("开始优雅退出，最多等待 %s...", opts.ShutdownTimeout)
		sctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if metrics != nil {
			_ = metrics.Shutdown(sctx)
		}
		if err := s.Shutdown(sctx); err != nil {
			hlog.Warnf("关闭引擎: %v", err)
		}
		return nil
	})

	return g.Wait()
}
