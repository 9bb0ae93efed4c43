// Package prometheus 提供基于 Prometheus 的交换跟踪器。
package prometheus

import (
	"context"
	"errors"
	"strconv"

	errs "github.com/favbox/h1engine/common/errors"
	"github.com/favbox/h1engine/common/tracer"
	"github.com/favbox/h1engine/common/tracer/stats"
	"github.com/favbox/h1engine/protocol"
	"github.com/favbox/h1engine/protocol/consts"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultNamespace = "h1engine"

var sizeBuckets = []float64{100, 1000, 10000, 100000, 1000000, 10000000}

// Tracer 将每次交换的耗时、状态码、收发大小和错误类别写入 Prometheus 指标。
//
// 耗时依赖 HTTPStart/HTTPFinish 事件，跟踪级别至少为 stats.LevelBase；
// 分阶段耗时（读标头、100 Continue、读正文、处理、写响应）需要 stats.LevelDetailed。
type Tracer struct {
	exchanges *prom.CounterVec
	duration  *prom.HistogramVec
	phases    *prom.HistogramVec
	inFlight  prom.Gauge
	recvSize  prom.Histogram
	sendSize  prom.Histogram
	errors    *prom.CounterVec
}

var _ tracer.Tracer = (*Tracer)(nil)

// NewTracer 在 reg 上注册指标并返回跟踪器。reg 为 nil 时使用默认注册表。
func NewTracer(reg prom.Registerer, namespace string) *Tracer {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	factory := promauto.With(reg)

	return &Tracer{
		exchanges: factory.NewCounterVec(
			prom.CounterOpts{
				Namespace: namespace,
				Name:      "exchanges_total",
				Help:      "Total number of request/response exchanges",
			},
			[]string{"method", "status"},
		),
		duration: factory.NewHistogramVec(
			prom.HistogramOpts{
				Namespace: namespace,
				Name:      "exchange_duration_seconds",
				Help:      "Exchange duration from first request byte to flushed response",
				Buckets:   prom.DefBuckets,
			},
			[]string{"method"},
		),
		phases: factory.NewHistogramVec(
			prom.HistogramOpts{
				Namespace: namespace,
				Name:      "exchange_phase_duration_seconds",
				Help:      "Duration of each exchange phase",
				Buckets:   prom.DefBuckets,
			},
			[]string{"phase"},
		),
		inFlight: factory.NewGauge(
			prom.GaugeOpts{
				Namespace: namespace,
				Name:      "exchanges_in_flight",
				Help:      "Number of exchanges currently in progress",
			},
		),
		recvSize: factory.NewHistogram(
			prom.HistogramOpts{
				Namespace: namespace,
				Name:      "request_size_bytes",
				Help:      "Request head plus body size in bytes",
				Buckets:   sizeBuckets,
			},
		),
		sendSize: factory.NewHistogram(
			prom.HistogramOpts{
				Namespace: namespace,
				Name:      "response_size_bytes",
				Help:      "Response head plus body size in bytes",
				Buckets:   sizeBuckets,
			},
		),
		errors: factory.NewCounterVec(
			prom.CounterOpts{
				Namespace: namespace,
				Name:      "exchange_errors_total",
				Help:      "Total number of exchanges that ended with an error",
			},
			[]string{"kind"},
		),
	}
}

// Start 实现 tracer.Tracer 接口。
func (t *Tracer) Start(ctx context.Context, ex *protocol.Exchange) context.Context {
	t.inFlight.Inc()
	return ctx
}

// Finish 实现 tracer.Tracer 接口。
func (t *Tracer) Finish(ctx context.Context, ex *protocol.Exchange) {
	t.inFlight.Dec()

	method := MethodLabel(ex.Request.Method)
	status := "-"
	if ex.Response.StatusCode > 0 {
		status = strconv.Itoa(ex.Response.StatusCode)
	}
	t.exchanges.WithLabelValues(method, status).Inc()

	st := ex.GetTraceInfo().Stats()
	if st.GetEvent(stats.HTTPStart) != nil && st.GetEvent(stats.HTTPFinish) != nil {
		t.duration.WithLabelValues(method).Observe(st.Elapsed(stats.HTTPStart, stats.HTTPFinish).Seconds())
	}
	for _, p := range stats.Phases {
		// 未经历的阶段（如无 Expect 的请求没有 continue）不计入
		if st.GetEvent(p.Start) == nil || st.GetEvent(p.Finish) == nil {
			continue
		}
		t.phases.WithLabelValues(p.Name).Observe(st.Elapsed(p.Start, p.Finish).Seconds())
	}
	t.recvSize.Observe(float64(st.RecvSize()))
	t.sendSize.Observe(float64(st.SendSize()))

	if err := st.Error(); err != nil {
		t.errors.WithLabelValues(ErrorKind(err)).Inc()
	}
}

// 方法标签只取标准方法，其余归为 other，以免客户端任意构造的方法名撑大指标序列。
var knownMethods = map[string]struct{}{
	consts.MethodGet:     {},
	consts.MethodHead:    {},
	consts.MethodPost:    {},
	consts.MethodPut:     {},
	consts.MethodPatch:   {},
	consts.MethodDelete:  {},
	consts.MethodConnect: {},
	consts.MethodOptions: {},
	consts.MethodTrace:   {},
}

// MethodLabel 返回请求方法对应的指标标签：标准方法原样返回，空值为 "-"，其余为 "other"。
func MethodLabel(method string) string {
	if method == "" {
		return "-"
	}
	if _, ok := knownMethods[method]; ok {
		return method
	}
	return "other"
}

// ErrorKind 返回错误对应的指标标签。
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, errs.ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, errs.ErrHeaderTooLarge):
		return "header_too_large"
	case errors.Is(err, errs.ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, errs.ErrInvalidWriteSequence):
		return "invalid_write_sequence"
	case errors.Is(err, errs.ErrInvalidReadSequence):
		return "invalid_read_sequence"
	case errors.Is(err, errs.ErrTimeout):
		return "timeout"
	case errors.Is(err, errs.ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
