package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ivlev/vidzoom/internal/config"
	"github.com/ivlev/vidzoom/internal/engine"
	"github.com/ivlev/vidzoom/internal/source"
	"github.com/ivlev/vidzoom/internal/system"
	"github.com/ivlev/vidzoom/internal/timeline"
)

var buildVersion = "dev"

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	configPtr := flag.String("config", "vidzoom.toml", "Путь к TOML-конфигу (необязательно)")
	inputPtr := flag.String("input", "", "Путь к видео, PDF или папке с изображениями (по умолчанию: самое свежее видео в input/video/)")
	projectPtr := flag.String("project", "", "YAML-проект с событиями зума")
	outputPtr := flag.String("output", "", "Путь к результату (если пусто, генерируется автоматически в output/)")
	previewAtPtr := flag.Float64("preview-at", -1, "Отрендерить один кадр в момент времени (сек) вместо экспорта")
	previewOutPtr := flag.String("preview-out", "output/preview.png", "PNG для -preview-at и -watch")
	watchPtr := flag.Bool("watch", false, "Следить за файлом -project и перерисовывать превью")
	suggestPtr := flag.Bool("suggest", false, "Предложить события зума по кадру и сохранить проект")
	suggestAtPtr := flag.Float64("suggest-at", 0, "Момент времени (сек) для -suggest")
	batchPtr := flag.Bool("batch", false, "Применить -project как шаблон ко всем видео из batch.input_dir")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности")
	widthPtr := flag.Int("width", 0, "Ширина")
	heightPtr := flag.Int("height", 0, "Высота")
	fpsPtr := flag.Int("fps", 0, "FPS")

	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	cfg.BuildVersion = buildVersion

	// Флаги имеют приоритет над файлом и окружением
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputPath = *inputPtr
		case "project":
			cfg.ProjectPath = *projectPtr
		case "output":
			cfg.OutputPath = *outputPtr
		case "stats":
			cfg.ShowStats = *statsPtr
		case "width":
			cfg.Render.Width = *widthPtr
		case "height":
			cfg.Render.Height = *heightPtr
		case "fps":
			cfg.Render.FPS = *fpsPtr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	for _, d := range []string{cfg.Batch.InputDir, cfg.Export.OutputDir, "projects"} {
		os.MkdirAll(d, 0755)
	}

	level := slog.LevelWarn
	if cfg.ShowStats {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *batchPtr {
		runBatch(ctx, cfg, logger)
		return
	}

	if cfg.InputPath == "" {
		latest, err := system.FindLatestVideo(cfg.Batch.InputDir)
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите видео в %s/", err, cfg.Batch.InputDir)
		}
		cfg.InputPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", cfg.InputPath)
	}

	src, err := source.Open(ctx, cfg.InputPath, sourceOptions(cfg))
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации источника: %v", err)
	}

	project, err := engine.NewProject(cfg, src, nil, logger)
	if err != nil {
		src.Close()
		log.Fatalf("[-] Ошибка проекта: %v", err)
	}
	defer project.Close()

	if cfg.ProjectPath != "" {
		if err := project.LoadDocument(cfg.ProjectPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("[-] Ошибка чтения проекта: %v", err)
		}
		fmt.Printf("[*] Проект: %s (%d событий)\n", cfg.ProjectPath, len(project.ListEvents()))
	}

	w, h := src.Size()
	fmt.Println("--- [PROJECT: ZOOM TIMELINE] ---")
	fmt.Printf("[*] Источник: %s | %dx%d | %.2fs\n", cfg.InputPath, w, h, src.Duration())
	fmt.Printf("[*] Разрешение: %dx%d @ %d FPS\n", cfg.Render.Width, cfg.Render.Height, cfg.Render.FPS)
	fmt.Println("-----------------------------")

	switch {
	case *suggestPtr:
		runSuggest(project, *suggestAtPtr)
	case *watchPtr:
		runWatch(ctx, project, *previewAtPtr, *previewOutPtr)
	case *previewAtPtr >= 0:
		if err := writePreview(project, *previewAtPtr, *previewOutPtr); err != nil {
			log.Fatalf("[-] Ошибка превью: %v", err)
		}
		fmt.Printf("[+++] Успех! Превью: %s\n", *previewOutPtr)
	default:
		runExport(ctx, project)
	}
}

func sourceOptions(cfg *config.Config) source.Options {
	return source.Options{
		FPS:          float64(cfg.Render.FPS),
		PageDuration: cfg.Render.PageDuration,
		DPI:          cfg.Render.DPI,
	}
}

func runExport(ctx context.Context, project *engine.Project) {
	cfg := project.Config
	output := cfg.OutputPath
	if output == "" {
		output = engine.OutputPath(cfg.Export.OutputDir, cfg.InputPath, time.Now())
	}

	fmt.Printf("[*] Экспорт %d событий...\n", len(project.ListEvents()))
	report, err := project.ExportToFile(ctx, output, func(percent float64) {
		fmt.Printf("[>] Экспорт: %.0f%%\n", percent)
	})
	if err != nil {
		log.Fatalf("[-] Ошибка экспорта: %v", err)
	}

	if cfg.ShowStats {
		fmt.Print(report.String())
		if err := engine.AppendBenchmarkLog("benchmark.log", report); err != nil {
			fmt.Printf("[!] Не удалось записать benchmark.log: %v\n", err)
		}
	}
	fmt.Printf("[+++] Успех! Результат: %s\n", report.Output)
}

func runSuggest(project *engine.Project, at float64) {
	if err := project.Source.Seek(at); err != nil {
		log.Fatalf("[-] Ошибка перемотки: %v", err)
	}
	added, err := project.Suggest(at)
	if err != nil {
		log.Fatalf("[-] Ошибка анализа кадра: %v", err)
	}
	for _, e := range added {
		fmt.Printf("[>] %.2fs-%.2fs x%.1f регион (%.2f, %.2f, %.2f, %.2f)\n",
			e.StartTime, e.End(), e.Level, e.Region.X, e.Region.Y, e.Region.Width, e.Region.Height)
	}

	path := project.Config.ProjectPath
	if path == "" {
		path = timeline.DocumentPath("projects")
	}
	if err := project.SaveDocument(path); err != nil {
		log.Fatalf("[-] Ошибка сохранения проекта: %v", err)
	}
	fmt.Printf("[+++] Успех! Добавлено событий: %d, проект: %s\n", len(added), path)
}

func runWatch(ctx context.Context, project *engine.Project, at float64, out string) {
	path := project.Config.ProjectPath
	if path == "" {
		log.Fatalf("[-] Для -watch нужен -project")
	}
	at = max(at, 0)
	if err := writePreview(project, at, out); err != nil {
		log.Fatalf("[-] Ошибка превью: %v", err)
	}
	fmt.Printf("[*] Слежу за %s, превью: %s (Ctrl+C для выхода)\n", path, out)

	err := project.WatchDocument(ctx, path, func(events []timeline.Event, err error) {
		if err != nil {
			fmt.Printf("[!] Проект не перечитан: %v\n", err)
			return
		}
		if err := writePreview(project, at, out); err != nil {
			fmt.Printf("[!] Ошибка превью: %v\n", err)
			return
		}
		fmt.Printf("[>] Перечитано событий: %d\n", len(events))
	})
	if err != nil {
		log.Fatalf("[-] Ошибка наблюдения: %v", err)
	}
}

func writePreview(project *engine.Project, at float64, out string) error {
	img, err := project.PreviewAt(at)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runBatch(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	if cfg.ProjectPath == "" {
		latest, err := timeline.FindLatestDocument("projects")
		if err != nil {
			log.Fatalf("[-] Для -batch нужен -project с шаблоном событий: %v", err)
		}
		cfg.ProjectPath = latest
		fmt.Printf("[*] Шаблон: %s\n", cfg.ProjectPath)
	}
	doc, err := timeline.ReadDocument(cfg.ProjectPath)
	if err != nil {
		log.Fatalf("[-] Ошибка чтения шаблона: %v", err)
	}
	inputs, err := system.ListVideos(cfg.Batch.InputDir)
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	if len(inputs) == 0 {
		log.Fatalf("[-] В %s нет видео", cfg.Batch.InputDir)
	}
	fmt.Printf("[*] Пакетный экспорт: %d видео, %d событий в шаблоне, потоков: %d\n",
		len(inputs), len(doc.Events), cfg.Batch.Workers)

	batch := &engine.Batch{
		Config: cfg,
		Logger: logger,
		OnStatus: func(item engine.BatchItem) {
			switch item.Status {
			case engine.StatusCompleted:
				fmt.Printf("[>] %s: %s -> %s\n", filepath.Base(item.Input), item.Status, item.Report.Output)
			case engine.StatusError:
				fmt.Printf("[!] %s: %s: %v\n", filepath.Base(item.Input), item.Status, item.Err)
			default:
				fmt.Printf("[>] %s: %s\n", filepath.Base(item.Input), item.Status)
			}
		},
	}
	items := batch.Run(ctx, inputs, doc.Events)

	failed := 0
	for _, item := range items {
		if item.Status == engine.StatusError {
			failed++
		}
	}
	if failed > 0 {
		log.Fatalf("[-] Ошибок: %d из %d", failed, len(items))
	}
	fmt.Printf("[+++] Успех! Обработано видео: %d\n", len(items))
}
