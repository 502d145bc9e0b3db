package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/annel0/blockclip/internal/clip"
	"github.com/annel0/blockclip/internal/config"
	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/logging"
	"github.com/annel0/blockclip/internal/observability"
	"github.com/annel0/blockclip/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app - состояние одного запуска clipctl
type app struct {
	// Глобальные флаги
	configPath  string
	dataDir     string
	metricsAddr string

	cfg      *config.Config
	store    *storage.DrawingStorage
	registry *prometheus.Registry
	metrics  *clip.Metrics
	server   *http.Server
	shutdown func(context.Context) error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "clipctl",
		Short: "Поиск, построение и нормализация подрезок вставок блоков",
		Long: `clipctl работает с чертежами, сохраненными в локальном хранилище.

Чертеж импортируется из YAML-документа, после чего можно искать подрезанные
вставки, строить и снимать границы подрезки и переносить вложенные
подрезанные вставки на верхний уровень с проверкой внешнего вида.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "путь к YAML-конфигурации (иначе BLOCKCLIP_CONFIG)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "каталог хранилища чертежей")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "адрес HTTP-эндпоинта /metrics (например, :2112)")

	root.AddCommand(
		a.importCmd(),
		a.exportCmd(),
		a.listCmd(),
		a.deleteCmd(),
		a.findCmd(),
		a.clipCmd(),
		a.autoclipCmd(),
		a.unclipCmd(),
		a.isolateCmd(),
		a.unisolateCmd(),
	)
	return root
}

// setup читает конфигурацию и поднимает логирование, телеметрию, метрики и хранилище
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.Storage.DataDir = a.dataDir
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	a.cfg = cfg

	logger, err := logging.NewLogger("clipctl", logging.ParseLevel(cfg.Log.Level))
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	logging.GetLoggerManager().Reset()

	a.shutdown, err = observability.InitTelemetry(cmd.Context(), cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("ошибка инициализации телеметрии: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = clip.NewMetrics(a.registry)
	if cfg.Metrics.Addr != "" {
		a.server = observability.ServeMetrics(cfg.Metrics.Addr, a.registry)
	}

	a.store, err = storage.NewDrawingStorage(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	logging.Debug("Хранилище чертежей: %s", cfg.Storage.DataDir)
	return nil
}

// close освобождает ресурсы в обратном порядке
func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Error("Ошибка закрытия хранилища: %v", err)
		}
	}
	if a.server != nil {
		if err := a.server.Shutdown(context.Background()); err != nil {
			logging.Error("Ошибка остановки /metrics: %v", err)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			logging.Error("Ошибка остановки телеметрии: %v", err)
		}
	}
	logging.CloseDefaultLogger()
}

// service собирает ядро подрезки над чертежом по конфигурации
func (a *app) service(db *drawing.Database) *clip.Service {
	e := a.cfg.Engine
	return clip.New(clip.Options{
		Engine:          db,
		Logger:          logging.GetClipLogger(),
		Metrics:         a.metrics,
		MaxDepth:        e.MaxDepth,
		Epsilon:         e.Epsilon,
		Tolerance:       e.Tolerance,
		DefaultColor:    drawing.ACI(e.DefaultColor),
		DefaultLinetype: e.DefaultLinetype,
		ClipDictionary:  e.ClipDictionary,
		ClipEntry:       e.ClipEntry,
	})
}

// formatError добавляет к сообщению категорию ошибки ядра
func formatError(err error) string {
	if kind := clip.KindOf(err); kind != clip.KindUnknown {
		return fmt.Sprintf("ошибка: %v [%s]", err, kind)
	}
	return fmt.Sprintf("ошибка: %v", err)
}

// execute выполняет команду и возвращает код завершения
func execute(args []string, stdout, stderr io.Writer) int {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, formatError(err))
		var clipErr *clip.Error
		if errors.As(err, &clipErr) {
			return 2
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
