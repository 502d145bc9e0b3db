// Package clip находит, строит и нормализует области подрезки вставок блоков:
// обход иерархии вставок, построение границ, перенос вложенных подрезанных
// вставок на верхний уровень и проверку сохранения их внешнего вида.
package clip

import (
	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName - имя трейсера ядра по умолчанию
const TracerName = "github.com/annel0/blockclip/internal/clip"

// Options - зависимости и параметры ядра. Нулевые значения заменяются умолчаниями.
type Options struct {
	Engine  drawing.Engine
	Logger  *logging.Logger
	Metrics *Metrics
	Tracer  trace.Tracer

	MaxDepth        int
	Epsilon         float64
	Tolerance       float64
	DefaultColor    drawing.Color
	DefaultLinetype string
	ClipDictionary  string
	ClipEntry       string
}

// Service связывает компоненты ядра над одним чертежом.
type Service struct {
	Detector *Detector
	Walker   *Walker
	Builder  *Builder
	Resolver *Resolver
	Promoter *Promoter
	Verifier *Verifier
}

// New собирает компоненты из opts
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.GetClipLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(TracerName)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = geom.DefaultEpsilon
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}

	base := deps{
		engine:  opts.Engine,
		log:     opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
	detector := NewDetector(opts.ClipDictionary, opts.ClipEntry)
	resolver := NewResolver(opts.Engine, opts.DefaultColor, opts.DefaultLinetype)
	builder := &Builder{deps: base, detector: detector, eps: opts.Epsilon}

	return &Service{
		Detector: detector,
		Walker:   &Walker{deps: base, detector: detector, maxDepth: opts.MaxDepth},
		Builder:  builder,
		Resolver: resolver,
		Promoter: &Promoter{deps: base, builder: builder, resolver: resolver},
		Verifier: &Verifier{deps: base, resolver: resolver, tolerance: opts.Tolerance},
	}
}
