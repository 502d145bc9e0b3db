package clip

import (
	"context"
	"math"
	"strings"

	"github.com/annel0/blockclip/internal/drawing"
	"go.opentelemetry.io/otel/attribute"
)

// Promoter переносит вложенные подрезанные вставки на верхний уровень
// с сохранением внешнего вида и управляет монопольным отображением.
type Promoter struct {
	deps
	builder  *Builder
	resolver *Resolver
}

// RecordOutcome - результат обработки одной записи при изоляции
type RecordOutcome struct {
	Record     ClippedInstanceRecord `json:"record"`
	InstanceID drawing.ObjectID      `json:"instance_id,omitempty"` // изолированная вставка
	Promoted   bool                  `json:"promoted"`
	Reused     bool                  `json:"reused,omitempty"` // копия уже была перенесена ранее
	Err        error                 `json:"-"`
}

// OK сообщает, что запись обработана успешно
func (o RecordOutcome) OK() bool {
	return o.Err == nil
}

// IsolationSummary - итог IsolateClippedInstances. Outcomes[i] относится к records[i].
type IsolationSummary struct {
	Outcomes []RecordOutcome    `json:"outcomes"`
	Isolated []drawing.ObjectID `json:"isolated"`
	Promoted int                `json:"promoted"`
	Failed   int                `json:"failed"`
}

// Success истинно, если изолирована хотя бы одна вставка
func (s *IsolationSummary) Success() bool {
	return len(s.Isolated) > 0
}

// PromoteToTopLevel создает на верхнем уровне копию вложенной вставки с составным
// преобразованием, собственным слоем оригинала и разрешенными цветом и типом линий.
// Область подрезки переносится без изменений. Для NestLevel == 0 возвращается сама вставка.
func (p *Promoter) PromoteToTopLevel(ctx context.Context, rec ClippedInstanceRecord) (*drawing.BlockInstance, error) {
	inst, _, err := p.promoteTraced(ctx, rec)
	return inst, err
}

func (p *Promoter) promoteTraced(ctx context.Context, rec ClippedInstanceRecord) (*drawing.BlockInstance, bool, error) {
	_, op := p.begin(ctx, "PromoteToTopLevel",
		attribute.String("instance", string(rec.InstanceID)),
		attribute.Int("nest_level", rec.NestLevel),
	)
	inst, created, err := p.promote(rec)
	op.end(err)
	return inst, created, err
}

func (p *Promoter) promote(rec ClippedInstanceRecord) (*drawing.BlockInstance, bool, error) {
	orig, err := p.instance(rec.InstanceID)
	if err != nil {
		return nil, false, err
	}
	if rec.NestLevel == 0 {
		return orig, false, nil
	}

	path := rec.Path
	if len(path) == 0 || path[len(path)-1] != rec.InstanceID {
		return nil, false, newError(InvalidInput, nil, "путь записи не ведет к вставке %s", rec.InstanceID)
	}
	chain, _, err := p.chain(path)
	if err != nil {
		return nil, false, err
	}
	top := chain[0].Owner

	name, scale := p.resolver.ResolveLinetype(chain)
	promoted := &drawing.BlockInstance{
		BlockName:     orig.BlockName,
		Transform:     rec.WorldTransform,
		Layer:         orig.Layer,
		Color:         drawing.ExplicitColor(p.resolver.ResolveColor(chain)),
		Linetype:      drawing.ExplicitLinetype(name),
		LinetypeScale: scale,
		Array:         orig.Array,
		Extension:     orig.Extension.Clone(),
	}
	dict, entry := p.builder.detector.Marker()
	raw, hasMarker := p.builder.detector.marker(orig)
	if d, ok := promoted.Extension[dict]; ok {
		delete(d, entry)
		if len(d) == 0 {
			delete(promoted.Extension, dict)
		}
	}

	if existing := p.findCopy(top, promoted, orig); existing != nil {
		p.log.Debug("Вставка %s уже перенесена как %s", rec.InstanceID, existing.ID)
		return existing, false, nil
	}

	var id drawing.ObjectID
	var mechanism string
	err = p.inTransaction(func(tx drawing.Transaction) error {
		var err error
		id, err = tx.AddInstance(top, promoted)
		if err != nil {
			return err
		}
		promoted.ID = id

		switch {
		case orig.Clip != nil:
			mechanism, err = p.builder.writeRegion(tx, promoted, orig.Clip)
			return err
		case hasMarker:
			mechanism = MethodExtension
			return tx.SetExtension(id, dict, entry, raw)
		}
		return nil
	})
	if err != nil {
		p.metrics.promotion(false)
		return nil, false, err
	}
	if mechanism != "" {
		p.metrics.boundaryWritten(mechanism)
	}
	p.metrics.promotion(true)

	out, err := p.instance(id)
	if err != nil {
		return nil, false, err
	}
	p.log.Info("Вставка %s (%s, уровень %d) перенесена на верхний уровень как %s",
		rec.InstanceID, rec.BlockName, rec.NestLevel, id)
	return out, true, nil
}

// findCopy ищет в контейнере top ранее перенесенную копию: то же определение,
// преобразование, слой, цвет, тип линий и та же область подрезки.
func (p *Promoter) findCopy(top drawing.ObjectID, want, orig *drawing.BlockInstance) *drawing.BlockInstance {
	ids, err := p.engine.Entities(top)
	if err != nil {
		return nil
	}
	origRegion, _, err := p.builder.regionOf(orig)
	if err != nil || origRegion == nil {
		return nil
	}
	for _, id := range ids {
		if id == orig.ID {
			continue
		}
		ent, err := p.engine.Entity(id)
		if err != nil {
			continue
		}
		inst, ok := ent.(*drawing.BlockInstance)
		if !ok || !strings.EqualFold(inst.BlockName, want.BlockName) || inst.Layer != want.Layer {
			continue
		}
		if !inst.Transform.NearlyEqual(want.Transform, p.builder.eps) {
			continue
		}
		if inst.Color.Kind != drawing.Explicit || !inst.Color.Value.Equal(want.Color.Value) {
			continue
		}
		if inst.Linetype.Kind != drawing.Explicit || !strings.EqualFold(inst.Linetype.Name, want.Linetype.Name) ||
			math.Abs(inst.LinetypeScale-want.LinetypeScale) > p.builder.eps {
			continue
		}
		region, _, err := p.builder.regionOf(inst)
		if err != nil || !sameRegion(region, origRegion, p.builder.eps) {
			continue
		}
		return inst
	}
	return nil
}

func sameRegion(a, b *drawing.ClipRegion, eps float64) bool {
	if a == nil || b == nil || a.Inverted != b.Inverted || len(a.Points) != len(b.Points) {
		return false
	}
	for i := range a.Points {
		if !a.Points[i].NearlyEqual(b.Points[i], eps) {
			return false
		}
	}
	return true
}

// IsolateClippedInstances переносит вложенные записи на верхний уровень (по одной
// транзакции на запись), оставляет записи верхнего уровня на месте и включает
// монопольное отображение всех затронутых вставок. Ошибка одной записи
// фиксируется в итоге и не прерывает обработку остальных.
func (p *Promoter) IsolateClippedInstances(ctx context.Context, records []ClippedInstanceRecord) (*IsolationSummary, error) {
	ctx, op := p.begin(ctx, "IsolateClippedInstances", attribute.Int("records", len(records)))
	summary, err := p.isolate(ctx, records)
	op.end(err)
	return summary, err
}

func (p *Promoter) isolate(ctx context.Context, records []ClippedInstanceRecord) (*IsolationSummary, error) {
	summary := &IsolationSummary{Outcomes: make([]RecordOutcome, 0, len(records))}

	for _, rec := range records {
		outcome := RecordOutcome{Record: rec}
		if rec.NestLevel == 0 {
			if _, err := p.instance(rec.InstanceID); err != nil {
				outcome.Err = err
			} else {
				outcome.InstanceID = rec.InstanceID
			}
		} else {
			inst, created, err := p.promoteTraced(ctx, rec)
			switch {
			case err != nil:
				outcome.Err = err
			case created:
				outcome.InstanceID = inst.ID
				outcome.Promoted = true
				summary.Promoted++
			default:
				outcome.InstanceID = inst.ID
				outcome.Reused = true
			}
		}

		if outcome.Err != nil {
			summary.Failed++
			p.log.Warn("Запись %s не изолирована: %v", rec.InstanceID, outcome.Err)
		} else if !containsID(summary.Isolated, outcome.InstanceID) {
			summary.Isolated = append(summary.Isolated, outcome.InstanceID)
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	if len(summary.Isolated) == 0 {
		return summary, newError(NoClippedBlocksFound, nil, "нет подрезанных вставок для изоляции")
	}

	err := p.inTransaction(func(tx drawing.Transaction) error {
		return tx.SetIsolation(summary.Isolated)
	})
	if err != nil {
		return summary, err
	}

	p.log.Info("Изолировано вставок: %d (перенесено %d, ошибок %d)",
		len(summary.Isolated), summary.Promoted, summary.Failed)
	return summary, nil
}

// ClearIsolation снимает монопольное отображение
func (p *Promoter) ClearIsolation(ctx context.Context) error {
	_, op := p.begin(ctx, "ClearIsolation")
	err := p.inTransaction(func(tx drawing.Transaction) error {
		return tx.SetIsolation(nil)
	})
	op.end(err)
	return err
}

func containsID(ids []drawing.ObjectID, id drawing.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
