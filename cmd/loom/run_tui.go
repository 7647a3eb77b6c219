package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/loomhq/loom/internal/events"
	"github.com/loomhq/loom/internal/orchestrator"
	"github.com/loomhq/loom/internal/tui"
)

// runTUIMode runs the coordinator behind a live TUI. The coordinator
// drives the event sink; its completion is delivered to the TUI as a
// RunDoneMsg so the final answer shows in the footer.
func runTUIMode(ctx context.Context, coord *orchestrator.Coordinator, sink *events.ChannelSink, request string) error {
	// Log output corrupts the alternate screen.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tui.NewProgram(sink.Events())

	done := make(chan error, 1)
	go func() {
		result, err := coord.Run(runCtx, request)
		if err != nil {
			program.Send(tui.RunDoneMsg{Err: err})
		} else {
			program.Send(tui.RunDoneMsg{Answer: result.Answer})
		}
		sink.Close()
		done <- err
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("TUI failed: %w", err)
	}

	// Quitting the TUI aborts any still-running work.
	cancel()
	if err := <-done; err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Run aborted.")
			return nil
		}
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}
