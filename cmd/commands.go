package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hupe1980/tessera"
	"github.com/hupe1980/tessera/schema"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withEngine runs fn with an engine built from cfg and closes it afterwards.
func withEngine(cfg *engineConfig, stderr io.Writer, fn func(*tessera.Engine) error) error {
	eng, err := cfg.newEngine(stderr)
	if err != nil {
		return err
	}
	defer eng.Close()
	return fn(eng)
}

func newCreateCommand(cfg *engineConfig, stdout, stderr io.Writer) *cobra.Command {
	var (
		dims, attrs           []string
		cellOrder, tileOrder string
	)
	ccmd := &cobra.Command{
		Use:   "create <uri>",
		Short: "Create a dense array",
		Long: `
			Creates an empty dense array at uri.

			tessera create ./quickstart_dense \
			    --dim rows:1:4:4:int32 --dim cols:1:4:4:int32 \
			    --attr a1:uint8 --attr a2:float32x2
`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			s, err := buildSchema(dims, attrs, cellOrder, tileOrder)
			if err != nil {
				return err
			}
			return withEngine(cfg, stderr, func(eng *tessera.Engine) error {
				if err := eng.CreateArray(c.Context(), args[0], s); err != nil {
					return err
				}
				_, err := fmt.Fprintf(stdout, "created %s: %s\n", args[0], s)
				return err
			})
		},
	}

	flags := ccmd.Flags()
	flags.StringArrayVar(&dims, "dim", nil, "Dimension as name:lo:hi:extent[:int32|int64], repeated in order.")
	flags.StringArrayVar(&attrs, "attr", nil, "Attribute as name:type, e.g. a2:float32x2, repeated in order.")
	flags.StringVar(&cellOrder, "cell-order", "row-major", "Cell order within a tile.")
	flags.StringVar(&tileOrder, "tile-order", "row-major", "Order of tiles in the tile grid.")
	return ccmd
}

func buildSchema(dims, attrs []string, cellOrder, tileOrder string) (*schema.Schema, error) {
	ds := make([]schema.Dimension, len(dims))
	for i, s := range dims {
		d, err := parseDimension(s)
		if err != nil {
			return nil, err
		}
		ds[i] = d
	}
	dom, err := schema.DefineDomain(ds...)
	if err != nil {
		return nil, err
	}

	as := make([]schema.Attribute, len(attrs))
	for i, s := range attrs {
		a, err := parseAttribute(s)
		if err != nil {
			return nil, err
		}
		as[i] = a
	}

	co, err := schema.ParseOrder(cellOrder)
	if err != nil {
		return nil, err
	}
	to, err := schema.ParseOrder(tileOrder)
	if err != nil {
		return nil, err
	}
	return schema.DefineSchema(dom, as, false, schema.WithCellOrder(co), schema.WithTileOrder(to))
}

type schemaJSON struct {
	CellOrder  string          `json:"cell_order"`
	TileOrder  string          `json:"tile_order"`
	Dimensions []dimensionJSON `json:"dimensions"`
	Attributes []attributeJSON `json:"attributes"`
}

type dimensionJSON struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Lo     int64  `json:"lo"`
	Hi     int64  `json:"hi"`
	Extent int64  `json:"extent"`
}

type attributeJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func toSchemaJSON(s *schema.Schema) schemaJSON {
	out := schemaJSON{
		CellOrder: s.CellOrder().String(),
		TileOrder: s.TileOrder().String(),
	}
	for _, d := range s.Domain().Dimensions() {
		out.Dimensions = append(out.Dimensions, dimensionJSON{Name: d.Name, Type: d.Type.String(), Lo: d.Lo, Hi: d.Hi, Extent: d.Extent})
	}
	for _, a := range s.Attributes() {
		out.Attributes = append(out.Attributes, attributeJSON{Name: a.Name, Type: a.Type.String()})
	}
	return out
}

func newSchemaCommand(cfg *engineConfig, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <uri>",
		Short: "Print the schema of an array as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withEngine(cfg, stderr, func(eng *tessera.Engine) error {
				s, err := eng.LoadSchema(c.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(stdout, toSchemaJSON(s))
			})
		},
	}
}

type infoJSON struct {
	URI            string     `json:"uri"`
	Commit         uint64     `json:"commit"`
	NonEmptyDomain [][2]int64 `json:"non_empty_domain"`
	Schema         schemaJSON `json:"schema"`
}

func regionJSON(r tessera.Region) [][2]int64 {
	out := make([][2]int64, len(r))
	for i, rg := range r {
		out[i] = [2]int64{rg.Lo, rg.Hi}
	}
	return out
}

func newInfoCommand(cfg *engineConfig, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "info <uri>",
		Short: "Print the current commit and non-empty domain of an array",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withEngine(cfg, stderr, func(eng *tessera.Engine) error {
				return eng.Do(c.Context(), args[0], tessera.ModeRead, func(r *tessera.Session) error {
					info := infoJSON{
						URI:    args[0],
						Commit: r.Commit(),
						Schema: toSchemaJSON(r.Schema()),
					}
					if box, ok := r.NonEmptyDomain(); ok {
						info.NonEmptyDomain = regionJSON(box)
					}
					return printJSON(stdout, info)
				})
			})
		},
	}
}

type readJSON struct {
	Region     [][2]int64     `json:"region"`
	Attributes map[string]any `json:"attributes"`
}

func newReadCommand(cfg *engineConfig, stdout, stderr io.Writer) *cobra.Command {
	var (
		region string
		attrs  []string
	)
	ccmd := &cobra.Command{
		Use:   "read <uri>",
		Short: "Read a region of an array as JSON",
		Long: `
			Reads the cells of a region in the array's cell order. Tuple cells are
			flattened.

			tessera read ./quickstart_dense --region 1:2,2:4 --attr a1
`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withEngine(cfg, stderr, func(eng *tessera.Engine) error {
				return eng.Do(c.Context(), args[0], tessera.ModeRead, func(r *tessera.Session) error {
					q := r.Query().Select(attrs...)
					if region != "" {
						reg, err := parseRegion(region)
						if err != nil {
							return err
						}
						q.Region(reg)
					}
					res, err := q.Do(c.Context())
					if err != nil {
						return err
					}
					return printJSON(stdout, toReadJSON(res))
				})
			})
		},
	}
	flags := ccmd.Flags()
	flags.StringVarP(&region, "region", "r", "", "Region as lo:hi per dimension, comma separated. Defaults to the whole domain.")
	flags.StringSliceVarP(&attrs, "attr", "a", nil, "Attributes to read. Defaults to all.")
	return ccmd
}

func toReadJSON(res tessera.Result) readJSON {
	out := readJSON{Region: regionJSON(res.Region), Attributes: make(map[string]any, res.Len())}
	for _, name := range res.Attributes() {
		b, _ := res.Buffer(name)
		v, err := decodeValues(b)
		if err != nil {
			v = err.Error()
		}
		out.Attributes[name] = v
	}
	return out
}

func newWriteCommand(cfg *engineConfig, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var region string
	ccmd := &cobra.Command{
		Use:   "write <uri>",
		Short: "Write a region of an array from JSON on stdin",
		Long: `
			Reads a JSON object mapping attribute names to flattened cell values
			from stdin and writes it to the region as one commit.

			echo '{"a1": [1, 2]}' | tessera write ./quickstart_dense --region 1:1,1:2
`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			reg, err := parseRegion(region)
			if err != nil {
				return err
			}
			dec := json.NewDecoder(stdin)
			dec.UseNumber()
			var in map[string][]json.Number
			if err := dec.Decode(&in); err != nil {
				return fmt.Errorf("decode input: %w", err)
			}

			return withEngine(cfg, stderr, func(eng *tessera.Engine) error {
				err := eng.Do(c.Context(), args[0], tessera.ModeWrite, func(w *tessera.Session) error {
					buffers := make(map[string]tessera.Buffer, len(in))
					for name, nums := range in {
						attr, ok := w.Schema().Attribute(name)
						if !ok {
							return fmt.Errorf("%w: %q", tessera.ErrAttributeSchemaMismatch, name)
						}
						b, err := encodeValues(attr.Type, nums)
						if err != nil {
							return fmt.Errorf("attribute %q: %w", name, err)
						}
						buffers[name] = b
					}
					return w.Write(c.Context(), reg, buffers)
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(stdout, "wrote %d cells to %s\n", reg.NumCells(), args[0])
				return err
			})
		},
	}
	ccmd.Flags().StringVarP(&region, "region", "r", "", "Region as lo:hi per dimension, comma separated.")
	_ = ccmd.MarkFlagRequired("region")
	return ccmd
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, rc *cobra.Command) error {
	return rc.ExecuteContext(ctx)
}
