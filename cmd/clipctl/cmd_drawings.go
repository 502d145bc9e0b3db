package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/logging"
	"github.com/spf13/cobra"
)

func (a *app) importCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Импортировать чертеж из YAML-документа",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := drawing.ParseDocument(data)
			if err != nil {
				return err
			}
			db, err := doc.Build()
			if err != nil {
				return fmt.Errorf("ошибка построения чертежа: %w", err)
			}
			if name == "" {
				base := filepath.Base(args[0])
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}
			info, err := a.store.SaveDrawing(name, db)
			if err != nil {
				return err
			}
			logging.Info("Чертеж %s импортирован из %s", name, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s: вставок %d, определений %d\n", info.Name, info.Instances, info.Definitions)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "имя чертежа в хранилище (по умолчанию имя файла)")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Выгрузить чертеж в YAML-документ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store.LoadDrawing(args[0])
			if err != nil {
				return err
			}
			data, err := drawing.ExportDocument(db).Marshal()
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "файл результата (по умолчанию stdout)")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Показать сохраненные чертежи",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := a.store.ListDrawings()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSAVED\tINSTANCES\tDEFINITIONS\tSIZE")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d/%d\n",
					info.Name, info.SavedAt.Format(time.RFC3339),
					info.Instances, info.Definitions, info.StoredSize, info.RawSize)
			}
			return w.Flush()
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Удалить чертеж из хранилища",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.DeleteDrawing(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s удален\n", args[0])
			return nil
		},
	}
}
