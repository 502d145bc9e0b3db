package clip

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// deps - общие зависимости компонентов ядра
type deps struct {
	engine  drawing.Engine
	log     *logging.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// operation - span и замер длительности одной операции
type operation struct {
	name    string
	span    trace.Span
	start   time.Time
	metrics *Metrics
}

func (d *deps) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	ctx, span := d.tracer.Start(ctx, "clip."+name, trace.WithAttributes(attrs...))
	return ctx, &operation{name: name, span: span, start: time.Now(), metrics: d.metrics}
}

func (o *operation) end(err error) {
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		o.metrics.failure(err)
	}
	o.span.End()
	o.metrics.observe(o.name, time.Since(o.start).Seconds())
}

// instance читает вставку; отсутствие переводится в InstanceNotFound
func (d *deps) instance(id drawing.ObjectID) (*drawing.BlockInstance, error) {
	inst, err := drawing.InstanceOf(d.engine, id)
	if err != nil {
		if errors.Is(err, drawing.ErrNotFound) || errors.Is(err, drawing.ErrNotInstance) {
			return nil, newError(InstanceNotFound, err, "вставка %s не найдена", id)
		}
		return nil, newError(TransactionFailed, err, "ошибка чтения вставки %s", id)
	}
	return inst, nil
}

// chain читает вставки пути (от внешней к целевой), проверяет, что каждая
// лежит в определении предыдущей, и возвращает их составное преобразование.
func (d *deps) chain(path []drawing.ObjectID) ([]*drawing.BlockInstance, geom.Matrix, error) {
	if len(path) == 0 {
		return nil, geom.Matrix{}, newError(InvalidInput, nil, "путь к вставке пуст")
	}

	out := make([]*drawing.BlockInstance, 0, len(path))
	acc := geom.Identity()
	for i, id := range path {
		inst, err := d.instance(id)
		if err != nil {
			return nil, geom.Matrix{}, err
		}
		if i > 0 {
			parent := out[i-1]
			def, err := d.engine.Definition(parent.BlockName)
			if err != nil {
				return nil, geom.Matrix{}, newError(InvalidInput, err, "определение %s не найдено", parent.BlockName)
			}
			if inst.Owner != def.ID {
				return nil, geom.Matrix{}, newError(InvalidInput, nil,
					"вставка %s не принадлежит определению %s", id, parent.BlockName)
			}
		}
		acc = acc.Multiply(inst.Transform)
		out = append(out, inst)
	}
	return out, acc, nil
}

// inTransaction выполняет fn в одной транзакции движка.
// При ошибке транзакция откатывается; ошибки движка оборачиваются в TransactionFailed.
func (d *deps) inTransaction(fn func(tx drawing.Transaction) error) error {
	tx, err := d.engine.Begin()
	if err != nil {
		return newError(TransactionFailed, err, "не удалось открыть транзакцию")
	}

	if err := fn(tx); err != nil {
		if abortErr := tx.Abort(); abortErr != nil {
			d.log.Error("Откат транзакции не удался: %v", abortErr)
		}
		var clipErr *Error
		if errors.As(err, &clipErr) {
			return err
		}
		return newError(TransactionFailed, err, "изменение чертежа отменено")
	}

	if err := tx.Commit(); err != nil {
		if abortErr := tx.Abort(); abortErr != nil {
			d.log.Debug("Откат после неудачной фиксации: %v", abortErr)
		}
		return newError(TransactionFailed, err, "не удалось зафиксировать транзакцию")
	}
	return nil
}
