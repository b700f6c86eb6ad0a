// Package tessera is an embedded storage engine for dense multi-dimensional
// arrays.
//
// An array is described by a schema: a domain of integer dimensions, each
// with closed bounds and a tile extent, and one or more fixed-size
// attributes. Cells are grouped into tiles and every attribute is stored in
// its own tiles, so a read touches only the attributes it selects.
//
// # Quick Start
//
//	dom, _ := schema.DefineDomain(
//	    schema.Dimension{Name: "rows", Lo: 1, Hi: 4, Extent: 4},
//	    schema.Dimension{Name: "cols", Lo: 1, Hi: 4, Extent: 4},
//	)
//	s, _ := schema.DefineSchema(dom, []schema.Attribute{
//	    {Name: "a1", Type: schema.Scalar(schema.Uint8)},
//	}, false)
//
//	eng := tessera.New()
//	_ = eng.CreateArray(ctx, "./my_array", s)
//
//	w, _ := eng.OpenArray(ctx, "./my_array", tessera.ModeWrite)
//	_ = w.Write(ctx, tessera.R(1, 4, 1, 4), map[string]tessera.Buffer{
//	    "a1": tessera.NewBuffer[uint8](values...),
//	})
//	_ = w.Close() // commit
//
//	r, _ := eng.OpenArray(ctx, "./my_array", tessera.ModeRead)
//	defer r.Close()
//	res, _ := r.Read(ctx, tessera.R(1, 2, 2, 4), "a1")
//
// # Sessions
//
// Writes are invisible until the write session is closed; Close writes the
// dirty tiles as new immutable blobs and then atomically publishes a new
// commit. A read session sees the commit that was current when it opened,
// regardless of later commits. Only one write session may be open per array;
// a second one fails with ErrIncompatibleMode instead of waiting.
//
// Engine.Do wraps a session so that it is committed when the callback
// succeeds and discarded when it fails or panics.
//
// # Errors
//
// Every error matches one kind: ErrSchema, ErrDomain, ErrShapeMismatch,
// ErrConcurrency, ErrNotFound or ErrStorageIO. Only ErrStorageIO is worth
// retrying (see IsRetryable). Reading cells that were never written fails
// with ErrTileNotFound; there is no fill value.
//
// # Storage
//
// By default URIs are local directories. WithStorage plugs in another
// blobstore.Resolver, for example blobstore.NewMemoryResolver for
// ephemeral arrays.
package tessera
