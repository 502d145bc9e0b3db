package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/annel0/blockclip/internal/clip"
	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/logging"
	"github.com/annel0/blockclip/internal/vec"
	"github.com/spf13/cobra"
)

// open загружает чертеж и собирает над ним ядро
func (a *app) open(name string) (*drawing.Database, *clip.Service, error) {
	db, err := a.store.LoadDrawing(name)
	if err != nil {
		return nil, nil, err
	}
	return db, a.service(db), nil
}

func (a *app) save(name string, db *drawing.Database) error {
	if _, err := a.store.SaveDrawing(name, db); err != nil {
		return fmt.Errorf("ошибка сохранения %s: %w", name, err)
	}
	return nil
}

func formatPath(path []drawing.ObjectID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	return strings.Join(parts, "/")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRecords(w io.Writer, records []clip.ClippedInstanceRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBLOCK\tMETHOD\tLEVEL\tPOSITION\tLAYER\tPATH")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t(%.4f, %.4f)\t%s\t%s\n",
			r.InstanceID, r.BlockName, r.DetectionMethod, r.NestLevel,
			r.WorldPosition.X, r.WorldPosition.Y, r.Layer, formatPath(r.Path))
	}
	return tw.Flush()
}

func (a *app) findRecords(cmd *cobra.Command, svc *clip.Service, db *drawing.Database, layer string) ([]clip.ClippedInstanceRecord, error) {
	if layer != "" {
		return svc.Walker.FindClippedInstancesByLayer(cmd.Context(), db.ModelSpace(), layer)
	}
	return svc.Walker.FindClippedInstances(cmd.Context(), db.ModelSpace())
}

func (a *app) findCmd() *cobra.Command {
	var (
		layer  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "find <name>",
		Short: "Найти подрезанные вставки на любой глубине вложенности",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, svc, err := a.open(args[0])
			if err != nil {
				return err
			}
			records, err := a.findRecords(cmd, svc, db, layer)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return writeRecords(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "только вставки на этом слое")
	cmd.Flags().BoolVar(&asJSON, "json", false, "вывод в JSON")
	return cmd
}

func (a *app) clipCmd() *cobra.Command {
	var pathArg, rectArg, polygonArg string
	cmd := &cobra.Command{
		Use:   "clip <name>",
		Short: "Построить границу подрезки по точкам в мировых координатах",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := parsePath(pathArg)
			if err != nil {
				return err
			}

			var (
				mode   clip.Mode
				points []vec.Vec2
			)
			switch {
			case rectArg != "" && polygonArg != "":
				return errors.New("укажите только один из флагов --rect и --polygon")
			case rectArg != "":
				mode = clip.Rectangle
				points, err = parseRect(rectArg)
			case polygonArg != "":
				mode = clip.Polygon
				points, err = parsePolygon(polygonArg)
			default:
				return errors.New("укажите --rect или --polygon")
			}
			if err != nil {
				return err
			}

			db, svc, err := a.open(args[0])
			if err != nil {
				return err
			}
			region, err := svc.Builder.BuildBoundary(cmd.Context(), path, points, mode)
			if err != nil {
				return err
			}
			if err := a.save(args[0], db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: граница из %d вершин (%s)\n", path[len(path)-1], len(region.Points), mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&pathArg, "path", "", "путь к вставке: внешняя/.../целевая")
	cmd.Flags().StringVar(&rectArg, "rect", "", "противоположные углы: x1,y1,x2,y2")
	cmd.Flags().StringVar(&polygonArg, "polygon", "", "вершины: x,y;x,y;x,y")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func (a *app) autoclipCmd() *cobra.Command {
	var pathArg string
	cmd := &cobra.Command{
		Use:   "autoclip <name>",
		Short: "Подрезать вставку по габариту ее определения",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := parsePath(pathArg)
			if err != nil {
				return err
			}
			db, svc, err := a.open(args[0])
			if err != nil {
				return err
			}
			region, err := svc.Builder.AutoBuildBoundary(cmd.Context(), path)
			if err != nil {
				return err
			}
			if err := a.save(args[0], db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: граница из %d вершин\n", path[len(path)-1], len(region.Points))
			return nil
		},
	}
	cmd.Flags().StringVar(&pathArg, "path", "", "путь к вставке: внешняя/.../целевая")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func (a *app) unclipCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "unclip <name>",
		Short: "Снять подрезку со вставки",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, svc, err := a.open(args[0])
			if err != nil {
				return err
			}
			if err := svc.Builder.RemoveBoundary(cmd.Context(), drawing.ObjectID(id)); err != nil {
				return err
			}
			if err := a.save(args[0], db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: подрезка снята\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "идентификатор вставки")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) isolateCmd() *cobra.Command {
	var (
		layer  string
		verify bool
	)
	cmd := &cobra.Command{
		Use:   "isolate <name>",
		Short: "Перенести подрезанные вставки на верхний уровень и изолировать их",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, svc, err := a.open(args[0])
			if err != nil {
				return err
			}
			records, err := a.findRecords(cmd, svc, db, layer)
			if err != nil {
				return err
			}

			// Одна вставка общего определения дает несколько записей с разными путями,
			// поэтому снимки привязаны к позиции записи, а не к идентификатору.
			snapshots := make(map[int]clip.Snapshot, len(records))
			if verify {
				for i, rec := range records {
					snap, err := svc.Verifier.Capture(rec)
					if err != nil {
						logging.Warn("Не удалось снять внешний вид %s: %v", formatPath(rec.Path), err)
						continue
					}
					snapshots[i] = snap
				}
			}

			summary, isoErr := svc.Promoter.IsolateClippedInstances(cmd.Context(), records)
			out := cmd.OutOrStdout()
			if summary != nil {
				for _, o := range summary.Outcomes {
					switch {
					case !o.OK():
						fmt.Fprintf(out, "FAIL %s: %v\n", o.Record.InstanceID, o.Err)
					case o.Promoted:
						fmt.Fprintf(out, "PROMOTED %s -> %s\n", o.Record.InstanceID, o.InstanceID)
					case o.Reused:
						fmt.Fprintf(out, "REUSED %s -> %s\n", o.Record.InstanceID, o.InstanceID)
					default:
						fmt.Fprintf(out, "TOP %s\n", o.InstanceID)
					}
				}
				fmt.Fprintf(out, "изолировано %d, перенесено %d, ошибок %d\n",
					len(summary.Isolated), summary.Promoted, summary.Failed)
			}
			if isoErr != nil {
				return isoErr
			}
			if err := a.save(args[0], db); err != nil {
				return err
			}

			if !verify {
				return nil
			}
			failed := 0
			for i, o := range summary.Outcomes {
				pre, ok := snapshots[i]
				if !o.OK() || !ok {
					continue
				}
				post, _ := db.Instance(o.InstanceID)
				report := svc.Verifier.Verify(pre, post)
				if report.Passed() {
					fmt.Fprintf(out, "VERIFY %s: ok\n", o.InstanceID)
					continue
				}
				failed++
				for _, c := range report.Failed() {
					fmt.Fprintf(out, "VERIFY %s: %s ожидалось %s, получено %s\n", o.InstanceID, c.Field, c.Expected, c.Actual)
				}
			}
			if failed > 0 {
				return fmt.Errorf("проверка внешнего вида не пройдена для %d вставок", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "только вставки на этом слое")
	cmd.Flags().BoolVar(&verify, "verify", false, "сравнить внешний вид до и после переноса")
	return cmd
}

func (a *app) unisolateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unisolate <name>",
		Short: "Снять изоляцию отображения",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, svc, err := a.open(args[0])
			if err != nil {
				return err
			}
			if err := svc.Promoter.ClearIsolation(cmd.Context()); err != nil {
				return err
			}
			if err := a.save(args[0], db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "изоляция снята")
			return nil
		},
	}
}
