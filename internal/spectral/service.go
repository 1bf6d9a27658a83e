package spectral

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/audiolibrelab/soundcheck/internal/audio"
	"github.com/audiolibrelab/soundcheck/internal/config"
	"github.com/audiolibrelab/soundcheck/internal/transcode"
)

// Service answers POST /process_file like the production analysis backend
type Service struct {
	points     int
	port       string
	processDir string
	transcoder *transcode.Transcoder
	app        *fiber.App
}

func NewService(cfg *config.Config, port string) *Service {
	if port == "" {
		port = cfg.AnalysisServer.Port
	}
	s := &Service{
		points:     cfg.AnalysisServer.Points,
		port:       port,
		processDir: filepath.Join(os.TempDir(), "soundcheck-analysis"),
		transcoder: transcode.New(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "soundcheck-analysis",
		BodyLimit:             64 << 20,
		DisableStartupMessage: true,
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Post(cfg.API.ProcessPath, s.handleProcess)
	s.app = app

	return s
}

// App exposes the fiber application, mainly for tests
func (s *Service) App() *fiber.App {
	return s.app
}

// Listen serves until ctx is cancelled
func (s *Service) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting analysis service", "port", s.port, "points", s.points)
		errCh <- s.app.Listen(":" + s.port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down analysis service")
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

func (s *Service) handleProcess(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "multipart field 'file' missing"})
	}

	slog.Debug("Analysis request", "file", fh.Filename, "size", fh.Size, "content_type", fh.Header.Get("Content-Type"))

	pcm, err := s.decode(c, fh)
	if err != nil {
		slog.Error("Failed to decode upload", "file", fh.Filename, "error", err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	result := Analyze(pcm, s.points)
	slog.Info("Analyzed upload", "file", fh.Filename, "class", result.Class, "duration", fmt.Sprintf("%.2fs", pcm.Duration()))
	return c.JSON(result)
}

// decode reads WAV uploads directly and transcodes anything else with ffmpeg first
func (s *Service) decode(c *fiber.Ctx, fh *multipart.FileHeader) (*audio.PCM, error) {
	filename := fh.Filename
	if strings.EqualFold(filepath.Ext(filename), ".wav") {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		return audio.ReadWAV(f)
	}

	if err := os.MkdirAll(s.processDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	input := filepath.Join(s.processDir, uuid.NewString()+strings.ToLower(filepath.Ext(filename)))
	if err := c.SaveFile(fh, input); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	defer os.Remove(input)

	wavPath, err := s.transcoder.ToWAV(c.Context(), input, 0)
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	return audio.ReadWAVFile(wavPath)
}
