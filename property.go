package dbpfindex

import (
	"context"

	"github.com/hupe1980/dbpfindex/exemplar"
	"github.com/hupe1980/dbpfindex/internal/pool"
	"github.com/hupe1980/dbpfindex/tgi"
)

// GetProperty returns property id of ex, falling back to its parent cohort
// chain when ex does not define it. The walk stops at a parent that is not
// registered, that is not an exemplar or cohort, or that was already
// visited. A missing property is reported with ok == false, never as an
// error; errors come from decoding a parent.
func (idx *Index) GetProperty(ctx context.Context, ex *exemplar.Exemplar, id exemplar.PropertyID) (prop exemplar.Property, ok bool, err error) {
	if ex == nil {
		return exemplar.Property{}, false, nil
	}
	if prop, ok = ex.Property(id); ok || !ex.HasParent() {
		return prop, ok, nil
	}

	w := pool.Get()
	defer pool.Put(w)
	return idx.walkParents(ctx, w, ex.Parent, id)
}

// EntryProperty decodes e and resolves id through its cohort chain. The
// entry itself counts as visited, so a cohort naming itself as parent ends
// the walk.
func (idx *Index) EntryProperty(ctx context.Context, e *Entry, id exemplar.PropertyID) (exemplar.Property, bool, error) {
	ex, err := e.Exemplar(ctx)
	if err != nil {
		return exemplar.Property{}, false, err
	}
	if prop, ok := ex.Property(id); ok || !ex.HasParent() {
		return prop, ok, nil
	}

	w := pool.Get()
	defer pool.Put(w)
	w.Visit(e.pos)
	return idx.walkParents(ctx, w, ex.Parent, id)
}

func (idx *Index) walkParents(ctx context.Context, w *pool.Walk, parent tgi.TGI, id exemplar.PropertyID) (exemplar.Property, bool, error) {
	for parent.Type != 0 {
		if err := ctx.Err(); err != nil {
			return exemplar.Property{}, false, err
		}
		e, ok := idx.Find(tgi.Exact(parent))
		if !ok || !e.IsExemplar() {
			break
		}
		if !w.Visit(e.pos) {
			idx.logger.DebugContext(ctx, "cohort cycle", "entry", e.String(), "depth", len(w.Chain))
			break
		}
		ex, err := e.Exemplar(ctx)
		if err != nil {
			return exemplar.Property{}, false, err
		}
		if prop, ok := ex.Property(id); ok {
			return prop, true, nil
		}
		parent = ex.Parent
	}
	return exemplar.Property{}, false, nil
}

// PropertyValue is GetProperty returning only the value.
func (idx *Index) PropertyValue(ctx context.Context, ex *exemplar.Exemplar, id exemplar.PropertyID) (exemplar.Value, bool, error) {
	prop, ok, err := idx.GetProperty(ctx, ex, id)
	return prop.Value, ok, err
}
