package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	hook "github.com/robotn/gohook"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundcheck/internal/gesture"
	"github.com/audiolibrelab/soundcheck/internal/screen"
	"github.com/audiolibrelab/soundcheck/internal/service"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a clip from the microphone",
	Long: `Record a clip from the configured capture source. With --hold, recording starts
once the hold key has been pressed for recording.long_press_delay and stops when it is
released. Without it, press Enter to start and Enter again to stop.

The finished recording becomes the selection for the remaining pipeline steps.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hold, _ := cmd.Flags().GetBool("hold")
		key, _ := cmd.Flags().GetString("key")
		if !cmd.Flags().Changed("key") {
			key = cfg.Recording.HoldKey
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := newService()
		defer svc.Close()

		slog.Info("Record command started", "backend", svc.Backend().GetType(), "hold", hold)

		if !hold {
			if err := svc.RunPipeline(ctx, "r", "", os.Stdin, os.Stdout); err != nil {
				return err
			}
			return executePipeline(ctx, svc, service.StepRecord, "")
		}

		sel, err := recordWhileHeld(ctx, svc.Screen(), key)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded: %s\n", sel.URI)

		return executePipeline(ctx, svc, service.StepRecord, "")
	},
}

// recordWhileHeld records while key is held down, using global keyboard events
func recordWhileHeld(ctx context.Context, scr *screen.Screen, key string) (*screen.Selection, error) {
	code, ok := hook.Keycode[key]
	if !ok {
		return nil, fmt.Errorf("unknown hold key: %s", key)
	}

	scr.Mount(ctx)

	press := gesture.NewLongPress(cfg.Recording.LongPressDelay, func() {
		if err := scr.StartRecording(ctx); err != nil {
			slog.Error("Failed to start recording", "error", err)
		}
	})

	events := hook.Start()
	defer hook.End()

	done := make(chan struct{})
	defer close(done)
	keys := make(chan bool)
	go func() {
		defer close(keys)
		for ev := range events {
			if ev.Keycode != code {
				continue
			}
			var down bool
			switch ev.Kind {
			case hook.KeyHold:
				down = true
			case hook.KeyUp:
			default:
				continue
			}
			select {
			case keys <- down:
			case <-done:
				return
			}
		}
	}()

	fmt.Printf("Hold '%s' to record, release to stop (Ctrl+C to quit)\n", key)
	return holdLoop(ctx, scr, press, keys)
}

// holdLoop feeds key transitions (true for down) into press until a recording has been stopped
func holdLoop(ctx context.Context, scr *screen.Screen, press *gesture.LongPress, keys <-chan bool) (*screen.Selection, error) {
	for {
		select {
		case <-ctx.Done():
			// Stop a running recording so the file is finalized
			press.Release()
			if sel, err := scr.StopRecording(context.Background()); err == nil {
				return sel, nil
			}
			return nil, ctx.Err()

		case down, ok := <-keys:
			if !ok {
				return nil, fmt.Errorf("keyboard hook closed")
			}
			if down {
				press.Press()
				continue
			}
			if !press.Release() {
				slog.Debug("Key released before long press")
				continue
			}
			sel, err := scr.StopRecording(ctx)
			if errors.Is(err, screen.ErrNotRecording) {
				// the long press fired but recording failed to start
				slog.Warn("Nothing recorded, hold the key to try again")
				continue
			}
			if err != nil {
				return nil, err
			}
			return sel, nil
		}
	}
}

func init() {
	recordCmd.Flags().Bool("hold", false, "record while a key is held instead of pressing Enter twice")
	recordCmd.Flags().String("key", "space", "hold key (overrides recording.hold_key)")
}
