package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"1CLockAnalyzer/alert"
	"1CLockAnalyzer/analyze"
	"1CLockAnalyzer/batch"
	"1CLockAnalyzer/clickhouseclient"
	"1CLockAnalyzer/config"
	"1CLockAnalyzer/forecast"
	"1CLockAnalyzer/ingest"
	"1CLockAnalyzer/itsm"
	"1CLockAnalyzer/logger"
	"1CLockAnalyzer/models"
	"1CLockAnalyzer/storage"
	"1CLockAnalyzer/watcher"
	"1CLockAnalyzer/webhook"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup загружает конфиг, инициализирует логгер и контекст с сигналами.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, context.Context, context.CancelFunc, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("загрузка %s: %w", cfgPath, err)
	}
	lg, err := logger.InitZap(cfg.Logging.LogFile)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return cfg, lg, ctx, stop, nil
}

// connectStore подключается к ClickHouse и проверяет доступность.
// Недоступное хранилище валит весь прогон сразу.
func connectStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*clickhouseclient.Client, error) {
	ch, err := clickhouseclient.New(cfg.ClickHouse, lg.Named("clickhouse"))
	if err != nil {
		return nil, err
	}
	if err := ch.Ping(ctx); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "1clockanalyzer",
		Short:         "Анализ блокировок 1С: техжурнал в ClickHouse, тренды, алерты",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "путь к config.yaml")
	root.AddCommand(newIngestCmd(), newAnalyzeCmd(), newWatchCmd(), newWebhookCmd(), newPredictDiskCmd())
	return root
}

func newIngestCmd() *cobra.Command {
	var (
		dir       string
		pattern   string
		workers   int
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Разовая загрузка каталога техжурнала в ClickHouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, ctx, stop, err := setup(cmd)
			if err != nil {
				return err
			}
			defer stop()
			defer lg.Sync()

			if dir == "" {
				dir = cfg.Ingest.Directory
			}
			if dir == "" {
				return fmt.Errorf("каталог техжурнала не задан (--dir или Ingest.Directory)")
			}
			if pattern == "" {
				pattern = cfg.Ingest.FilePattern
			}
			if workers <= 0 {
				workers = cfg.Ingest.Workers
			}
			if batchSize <= 0 {
				batchSize = cfg.Ingest.BatchSize
			}

			ch, err := connectStore(ctx, cfg, lg)
			if err != nil {
				return err
			}
			defer ch.Close()

			ing := ingest.NewIngestor(ch, batchSize, lg.Named("ingestor"))
			sched := ingest.NewScheduler(ing, workers, lg.Named("scheduler"))
			total, err := sched.ProcessDirectory(ctx, dir, pattern)
			lg.Info("Загрузка завершена", zap.Int("records", total))
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "каталог с техжурналом")
	cmd.Flags().StringVar(&pattern, "pattern", "", "паттерн файлов (по умолчанию *.log)")
	cmd.Flags().IntVar(&workers, "workers", 0, "число воркеров")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "размер пачки вставки")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Часовой прогон анализа блокировок и эскалации",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, ctx, stop, err := setup(cmd)
			if err != nil {
				return err
			}
			defer stop()
			defer lg.Sync()

			if days <= 0 {
				days = cfg.Analyze.Days
			}

			ch, err := connectStore(ctx, cfg, lg)
			if err != nil {
				return err
			}
			defer ch.Close()

			tickets, err := itsm.New(cfg.ITSM, lg.Named("itsm"))
			if err != nil {
				return err
			}
			var notifier alert.Notifier
			if tg := alert.NewTelegram(cfg.Telegram, lg.Named("telegram")); tg != nil {
				notifier = tg
			}
			dispatcher := alert.NewDispatcher(notifier, tickets, lg.Named("dispatcher"))

			_, err = analyze.NewAnalyzer(ch, dispatcher, days, lg.Named("analyzer")).Run(ctx)
			if errors.Is(err, analyze.ErrNoData) {
				// Пустая таблица — не авария, но оператор должен это увидеть.
				lg.Warn("Статистика блокировок пуста, анализ пропущен")
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "окно анализа в днях (по умолчанию 7)")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Непрерывное слежение за каталогами техжурнала",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, ctx, stop, err := setup(cmd)
			if err != nil {
				return err
			}
			defer stop()
			defer lg.Sync()

			if len(cfg.Watch.LogDirectoryMap) == 0 {
				return fmt.Errorf("Watch.LogDirectoryMap пуст — следить не за чем")
			}

			ch, err := connectStore(ctx, cfg, lg)
			if err != nil {
				return err
			}
			defer ch.Close()

			store, err := storage.New(cfg)
			if err != nil {
				return err
			}

			batchCh := make(chan models.TechLogEvent, cfg.Watch.BatchSize*2)
			w := watcher.New(watcher.Config{
				Dirs:        cfg.Watch.LogDirectoryMap,
				FilePattern: cfg.Watch.FilePattern,
				Logger:      lg.Named("watcher"),
				Store:       store,
			}, batchCh)
			batcher := batch.NewBatcher(cfg.Watch.BatchSize, cfg.Watch.BatchInterval,
				lg.Named("batcher"), ch)

			lg.Info("Сервис слежения стартует")
			var wg sync.WaitGroup
			wg.Add(1)
			go func() { defer wg.Done(); w.Start(ctx) }()
			wg.Add(1)
			go func() { defer wg.Done(); batcher.Run(ctx, batchCh) }()

			<-ctx.Done()
			lg.Info("Получен сигнал остановки, начинаем завершение работы")
			wg.Wait()
			lg.Info("Сервис завершил работу")
			return nil
		},
	}
}

func newWebhookCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "HTTP-приёмник алертов Alertmanager",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, ctx, stop, err := setup(cmd)
			if err != nil {
				return err
			}
			defer stop()
			defer lg.Sync()

			if port <= 0 {
				port = cfg.Webhook.Port
			}
			tickets, err := itsm.New(cfg.ITSM, lg.Named("itsm"))
			if err != nil {
				return err
			}
			return webhook.NewServer(tickets, lg.Named("webhook")).ListenAndServe(ctx, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "порт приёмника (по умолчанию 5000)")
	return cmd
}

func newPredictDiskCmd() *cobra.Command {
	var (
		historyDays int
		limitGB     float64
	)
	cmd := &cobra.Command{
		Use:   "predict-disk",
		Short: "Прогноз заполнения диска по истории из PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, ctx, stop, err := setup(cmd)
			if err != nil {
				return err
			}
			defer stop()
			defer lg.Sync()

			if historyDays <= 0 {
				historyDays = cfg.Forecast.HistoryDays
			}
			if limitGB <= 0 {
				limitGB = cfg.Forecast.DiskLimitGB
			}

			store, err := forecast.NewStore(cfg.Postgres, lg.Named("postgres"))
			if err != nil {
				return err
			}
			defer store.Close()

			var notifier forecast.Notifier
			if tg := alert.NewTelegram(cfg.Telegram, lg.Named("telegram")); tg != nil {
				notifier = tg
			}
			return forecast.NewPredictor(store, notifier, historyDays, limitGB,
				lg.Named("predictor")).Run(ctx)
		},
	}
	cmd.Flags().IntVar(&historyDays, "history-days", 0, "глубина истории (по умолчанию 60)")
	cmd.Flags().Float64Var(&limitGB, "limit-gb", 0, "критический объём диска, ГБ")
	return cmd
}
