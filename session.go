package tessera

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/tessera/internal/columnar"
	"github.com/hupe1980/tessera/internal/layout"
	"github.com/hupe1980/tessera/schema"
)

// sessionResources is what a session must give back when it ends. It is
// kept apart from Session so that it can be released by a cleanup once an
// abandoned session is collected.
type sessionResources struct {
	mu      sync.Mutex
	done    bool
	release func()
	writer  *columnar.Writer
}

func (r *sessionResources) free() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	if r.writer != nil {
		r.writer.Discard()
	}
	if r.release != nil {
		r.release()
	}
}

// Session is a read or write capability on one array.
//
// Writes are buffered in memory and become visible to sessions opened after
// Close returns. A session dropped without Close or Abort discards its
// writes and gives its write lease back once it is garbage collected.
type Session struct {
	engine  *Engine
	uri     string
	mode    Mode
	schema  *schema.Schema
	reader  *columnar.Reader
	res     *sessionResources
	cleanup runtime.Cleanup
	log     *Logger
	closed  bool
}

// Schema returns the schema of the array.
func (s *Session) Schema() *schema.Schema { return s.schema }

// Mode returns the mode the session was opened with.
func (s *Session) Mode() Mode { return s.mode }

// URI returns the URI the session was opened on.
func (s *Session) URI() string { return s.uri }

// Commit returns the commit ID the session observes. A freshly created
// array is at commit 1. After a successful Close a write session reports
// the commit it published.
func (s *Session) Commit() uint64 { return s.reader.Manifest().ID }

// Close ends the session. For a write session it first writes all pending
// tiles and publishes them as a new commit; the write lease is released
// even if that fails. Closing a closed session is a no-op.
func (s *Session) Close() error {
	return s.CloseContext(context.Background())
}

// CloseContext is Close with a context bounding the commit.
func (s *Session) CloseContext(ctx context.Context) (err error) {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()

	if s.mode == ModeRead {
		s.res.free()
		return nil
	}

	start := time.Now()
	w := s.res.writer
	tiles, size := w.Pending(), w.Reserved()

	m, err := w.Flush(ctx)
	if err == nil {
		s.reader = w.Reader()
	}
	s.res.free()
	err = translateError(err)

	var commit uint64
	if m != nil {
		commit = m.ID
	}
	s.engine.opts.metricsCollector.RecordCommit(tiles, size, time.Since(start), err)
	s.engine.opts.logger.LogCommit(ctx, s.uri, commit, tiles, err)
	return err
}

// Abort ends the session without committing pending writes.
func (s *Session) Abort() {
	if s.closed {
		return
	}
	s.closed = true
	s.cleanup.Stop()
	s.res.free()
	s.log.Debug("session aborted", "mode", s.mode)
}

func (s *Session) check(op Mode) error {
	if s.closed {
		return ErrClosed
	}
	if s.mode != op {
		return fmt.Errorf("%w: %s on a %s session", ErrIncompatibleMode, op, s.mode)
	}
	return nil
}

// Write stores buffers into region. Each buffer must hold exactly one cell
// per region cell, in the schema's cell order, and match its attribute's
// cell type. Attributes without a buffer are left untouched. Everything is
// validated before any tile is modified.
func (s *Session) Write(ctx context.Context, region Region, buffers map[string]Buffer) (err error) {
	start := time.Now()
	defer func() {
		s.engine.opts.metricsCollector.RecordWrite(region.NumCells(), time.Since(start), err)
		s.engine.opts.logger.LogWrite(ctx, s.uri, region, len(buffers), err)
	}()

	if err := s.check(ModeWrite); err != nil {
		return err
	}
	if len(buffers) == 0 {
		return fmt.Errorf("%w: no attribute buffers", ErrAttributeSchemaMismatch)
	}
	if err := s.schema.Domain().CheckRegion(region); err != nil {
		return err
	}

	names := make([]string, 0, len(buffers))
	for name := range buffers {
		names = append(names, name)
	}
	slices.Sort(names)

	cells := region.NumCells()
	attrs := make([]int, 0, len(buffers))
	for _, name := range names {
		idx, ok := s.schema.AttributeIndex(name)
		if !ok {
			return fmt.Errorf("%w: %q is not in the schema", ErrAttributeSchemaMismatch, name)
		}
		attr, buf := s.schema.AttributeAt(idx), buffers[name]
		if buf.Type != attr.Type {
			return fmt.Errorf("%w: %q is %s, buffer holds %s", ErrAttributeSchemaMismatch, name, attr.Type, buf.Type)
		}
		if len(buf.Data)%attr.Type.Size() != 0 {
			return &ShapeMismatchError{Attribute: name, Expected: cells, Actual: -1}
		}
		if n := buf.Len(); n != cells {
			return &ShapeMismatchError{Attribute: name, Expected: cells, Actual: n}
		}
		attrs = append(attrs, idx)
	}

	w := s.res.writer
	plan, err := w.Reader().Layout().Plan(region)
	if err != nil {
		return err
	}
	tiles, err := w.Prepare(ctx, attrs, plan)
	if err != nil {
		return translateError(err)
	}
	for i, idx := range attrs {
		src := buffers[s.schema.AttributeAt(idx).Name].Data
		for j, ov := range plan {
			columnar.WriteOverlap(tiles[i][j], ov, src)
		}
	}
	return nil
}

// Read returns the cells of region for the named attributes, or for all
// attributes in schema order when none are named. Output buffers are in
// the schema's cell order and owned by the caller.
func (s *Session) Read(ctx context.Context, region Region, attrs ...string) (res Result, err error) {
	start := time.Now()
	defer func() {
		s.engine.opts.metricsCollector.RecordRead(region.NumCells(), time.Since(start), err)
		s.engine.opts.logger.LogRead(ctx, s.uri, region, res.names, err)
	}()

	if err := s.check(ModeRead); err != nil {
		return Result{}, err
	}
	idx, err := s.selectAttributes(attrs)
	if err != nil {
		return Result{}, err
	}
	if err := s.schema.Domain().CheckRegion(region); err != nil {
		return Result{}, err
	}
	plan, err := s.reader.Layout().Plan(region)
	if err != nil {
		return Result{}, err
	}

	// Unwritten cells fail the read before any output is allocated.
	for _, a := range idx {
		if err := s.reader.CheckPlan(a, plan); err != nil {
			return Result{}, translateError(err)
		}
	}

	cells := region.NumCells()
	out := Result{
		Region:  region.Clone(),
		names:   make([]string, len(idx)),
		buffers: make(map[string]Buffer, len(idx)),
	}
	for i, a := range idx {
		attr := s.schema.AttributeAt(a)
		cs := int64(attr.Type.Size())
		if cells > math.MaxInt/cs {
			return Result{}, fmt.Errorf("%w: %d cells of %s do not fit in memory", ErrInvalidRegion, cells, attr.Name)
		}
		dst := make([]byte, cells*cs)
		for _, ov := range plan {
			if err := s.reader.ReadOverlap(ctx, a, ov, dst); err != nil {
				return Result{}, translateError(err)
			}
		}
		out.names[i] = attr.Name
		out.buffers[attr.Name] = Buffer{Type: attr.Type, Data: dst}
	}
	return out, nil
}

func (s *Session) selectAttributes(names []string) ([]int, error) {
	if len(names) == 0 {
		idx := make([]int, s.schema.NumAttributes())
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	idx := make([]int, 0, len(names))
	for _, name := range names {
		i, ok := s.schema.AttributeIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
		}
		if !slices.Contains(idx, i) {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

// NonEmptyDomain returns the bounding box of all cells written as of the
// session's commit. ok is false when nothing has been written.
func (s *Session) NonEmptyDomain() (box Region, ok bool) {
	lay := s.reader.Layout()
	grow := func(r Region) {
		if box == nil {
			box = r.Clone()
			return
		}
		for i := range box {
			box[i].Lo = min(box[i].Lo, r[i].Lo)
			box[i].Hi = max(box[i].Hi, r[i].Hi)
		}
	}

	for _, a := range s.reader.Manifest().Attributes {
		for _, ti := range a.Tiles {
			tc := layout.TileCoord(ti.Coord)
			if int64(ti.Written.GetCardinality()) == lay.ValidCells(tc) {
				grow(lay.TileRegion(tc))
				continue
			}
			it := ti.Written.Iterator()
			for it.HasNext() {
				coord, err := lay.Decode(tc, int64(it.Next()))
				if err != nil {
					continue
				}
				pt := make(Region, len(coord))
				for i, c := range coord {
					pt[i] = Range{Lo: c, Hi: c}
				}
				grow(pt)
			}
		}
	}
	return box, box != nil
}
