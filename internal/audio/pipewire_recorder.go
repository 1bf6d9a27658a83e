package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/soundcheck/internal/config"
	"github.com/audiolibrelab/soundcheck/internal/transcode"
)

const pipeWireRecordCommand = "pw-record"

// PipeWireRecorder implements the Recorder interface by running pw-record
type PipeWireRecorder struct {
	cfg        *config.Config
	logWriter  io.Writer
	allowed    func() bool
	command    string
	stopWait   time.Duration
	transcoder *transcode.Transcoder

	// Recording state
	mutex   sync.RWMutex
	status  Status
	session *SessionInfo

	// pw-record process
	recordCmd *exec.Cmd
	stderrBuf strings.Builder
	outputWG  sync.WaitGroup
}

// NewPipeWireRecorder creates a new PipeWire-based recorder.
// allowed reports whether the current audio mode permits recording.
func NewPipeWireRecorder(cfg *config.Config, logWriter io.Writer, allowed func() bool) *PipeWireRecorder {
	if logWriter == nil {
		logWriter = io.Discard
	}
	if allowed == nil {
		allowed = func() bool { return true }
	}

	return &PipeWireRecorder{
		cfg:        cfg,
		logWriter:  logWriter,
		allowed:    allowed,
		command:    pipeWireRecordCommand,
		stopWait:   5 * time.Second,
		transcoder: transcode.New(),
		status:     StatusIdle,
	}
}

// Start launches pw-record into a fresh session file
func (r *PipeWireRecorder) Start(ctx context.Context) (*SessionInfo, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.status == StatusRecording {
		return nil, ErrAlreadyRecording
	}
	if !r.allowed() {
		return nil, ErrRecordingNotAllowed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := newSession(r.cfg)
	if err != nil {
		r.status = StatusError
		return nil, err
	}

	if err := r.startProcess(session.OutputFile); err != nil {
		r.status = StatusError
		return nil, fmt.Errorf("failed to start %s: %w", r.command, err)
	}

	r.session = session
	r.status = StatusRecording

	slog.Info("PipeWire recording started", "id", session.ID, "file", session.OutputFile, "source", r.cfg.Audio.Source)
	return copySession(session), nil
}

// Stop ends the current recording session and returns the finished file
func (r *PipeWireRecorder) Stop(ctx context.Context) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.status != StatusRecording || r.session == nil {
		return "", ErrNotRecording
	}

	slog.Debug("Stopping PipeWire recording...")

	if err := r.stopProcess(); err != nil {
		r.status = StatusError
		r.session = nil
		return "", fmt.Errorf("failed to stop %s: %w", r.command, err)
	}

	outputFile := r.session.OutputFile
	if err := ensureWAVFile(outputFile, r.session.SampleRate, r.session.Channels); err != nil {
		r.status = StatusError
		r.session = nil
		return "", err
	}

	outputFile = finalizeRecording(ctx, r.transcoder, outputFile, r.cfg.Audio.Format)

	r.status = StatusIdle
	r.session = nil
	slog.Debug("PipeWire recording completed successfully", "output", outputFile)

	return outputFile, nil
}

// GetStatus returns the current status and session info
func (r *PipeWireRecorder) GetStatus() (Status, *SessionInfo) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.status, copySession(r.session)
}

// Cleanup kills a leftover pw-record process
func (r *PipeWireRecorder) Cleanup() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.recordCmd != nil && r.recordCmd.Process != nil {
		r.recordCmd.Process.Kill()
		// pipes must be drained before Wait
		r.outputWG.Wait()
		r.recordCmd.Wait()
	}
	r.recordCmd = nil
	r.status = StatusIdle
	r.session = nil

	slog.Debug("PipeWire recorder cleaned up")
	return nil
}

// buildArgs returns the pw-record argument list
func (r *PipeWireRecorder) buildArgs(outputFile string) []string {
	args := []string{
		"--rate", fmt.Sprintf("%d", r.cfg.Audio.SampleRate),
		"--channels", fmt.Sprintf("%d", r.cfg.Audio.Channels),
		"--format", "s16",
	}
	if source := r.cfg.Audio.Source; source != "" && source != "disabled" {
		args = append(args, "--target", nodeOf(source))
	}
	return append(args, outputFile)
}

func (r *PipeWireRecorder) startProcess(outputFile string) error {
	os.Remove(outputFile)

	args := r.buildArgs(outputFile)
	slog.Debug("Starting pw-record", "command", r.command+" "+strings.Join(args, " "))

	cmd := exec.Command(r.command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	r.recordCmd = cmd
	r.stderrBuf.Reset()

	r.outputWG.Add(2)
	go r.readOutput(stdout, nil, "stdout")
	go r.readOutput(stderr, &r.stderrBuf, "stderr")

	return nil
}

// readOutput forwards process output to the log writer
func (r *PipeWireRecorder) readOutput(pipe io.ReadCloser, buffer *strings.Builder, label string) {
	defer r.outputWG.Done()

	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		if buffer != nil {
			buffer.WriteString(line + "\n")
		}
		fmt.Fprintln(r.logWriter, line)
		slog.Debug("pw-record output", "stream", label, "line", line)
	}
}

// stopProcess interrupts pw-record and force kills it after stopWait
func (r *PipeWireRecorder) stopProcess() error {
	if r.recordCmd == nil {
		return nil
	}
	cmd := r.recordCmd
	r.recordCmd = nil

	if cmd.Process != nil {
		slog.Debug("Sending SIGINT to pw-record process")
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Debug("Failed to send interrupt, falling back to SIGKILL", "error", err)
			cmd.Process.Kill()
		}
	}

	done := make(chan error, 1)
	go func() {
		r.outputWG.Wait()
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && !interruptedExit(err) {
			slog.Debug("pw-record stderr", "output", r.stderrBuf.String())
			return fmt.Errorf("pw-record process failed: %w", err)
		}
		slog.Debug("pw-record exited")
		return nil

	case <-time.After(r.stopWait):
		slog.Warn("pw-record did not exit within timeout, force killing")
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-done
		return nil
	}
}

// interruptedExit reports whether err only reflects the interrupt we sent
func interruptedExit(err error) bool {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	if exitErr.ExitCode() == 255 || exitErr.ExitCode() == 130 {
		return true
	}
	if exitErr.ProcessState != nil {
		state := exitErr.ProcessState.String()
		return state == "signal: interrupt" || state == "signal: killed"
	}
	return false
}
