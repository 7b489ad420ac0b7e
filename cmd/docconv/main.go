package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/Lllllllleong/documentconverter/internal/models"
	"github.com/Lllllllleong/documentconverter/internal/server"
	"github.com/Lllllllleong/documentconverter/internal/services"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("docconv failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	outFlag := &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Value:   ".",
		Usage:   "directory the converted document is copied into",
	}
	keepFlag := &cli.BoolFlag{
		Name:  "keep-scratch",
		Usage: "keep the request scratch directory (extracted images, processed scans)",
	}

	return &cli.App{
		Name:  "docconv",
		Usage: "convert PDFs and scanned images into editable documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "optional dotenv file loaded before reading configuration",
			},
		},
		Before: func(c *cli.Context) error {
			path := c.String("env-file")
			if _, err := os.Stat(path); err == nil {
				if err := godotenv.Load(path); err != nil {
					return fmt.Errorf("failed to load %s: %w", path, err)
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "pdf",
				Usage:     "convert a PDF, transcribing its embedded images",
				ArgsUsage: "<file.pdf>",
				Flags:     []cli.Flag{outFlag, keepFlag},
				Action: func(c *cli.Context) error {
					return convert(c, models.PipelinePDF)
				},
			},
			{
				Name:      "image",
				Usage:     "convert a photographed or scanned page",
				ArgsUsage: "<scan.png>",
				Flags:     []cli.Flag{outFlag, keepFlag},
				Action: func(c *cli.Context) error {
					return convert(c, models.PipelineImage)
				},
			},
			{
				Name:  "serve",
				Usage: "serve the upload and download endpoints",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Value:   ":8080",
						Usage:   "listen address",
						EnvVars: []string{"DOCCONV_ADDR"},
					},
				},
				Action: serve,
			},
		},
	}
}

func convert(c *cli.Context, kind string) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file, got %d", c.NArg())
	}
	input := c.Args().First()

	converter, err := services.NewConverter(c.Context)
	if err != nil {
		return err
	}
	defer converter.Close()

	src, err := os.Open(input)
	if err != nil {
		return models.NewStageError(models.StageIntake, models.ErrUpload, err)
	}
	defer src.Close()

	scope, err := services.NewScratchScope(converter.Config.ScratchRoot)
	if err != nil {
		return err
	}
	if !c.Bool("keep-scratch") {
		defer scope.Remove()
	}

	sourcePath, err := services.SaveUpload(scope, filepath.Base(input), src)
	if err != nil {
		return err
	}
	result, err := converter.Pipeline(kind).Run(c.Context, services.Request{Scope: scope, SourcePath: sourcePath, OriginalFilename: filepath.Base(input)})
	if err != nil {
		return err
	}

	dest := filepath.Join(c.String("out"), result.Filename)
	if err := copyFile(result.OutputPath, dest); err != nil {
		return models.NewStageError(models.StageWrite, models.ErrWrite, err)
	}
	fmt.Fprintln(c.App.Writer, dest)
	if c.Bool("keep-scratch") {
		slog.Info("Scratch directory kept.", "path", scope.Root)
	}
	return nil
}

func serve(c *cli.Context) error {
	converter, err := services.NewConverter(c.Context)
	if err != nil {
		return err
	}
	defer converter.Close()

	config := converter.Config
	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           server.New(converter.PDF, converter.Image, config.ScratchRoot, config.MaxUploadBytes).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening.", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-c.Context.Done():
		slog.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
