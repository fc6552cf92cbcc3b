package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
	"github.com/eliteGoblin/focusd/screen_guard/internal/policy"
	"github.com/eliteGoblin/focusd/screen_guard/internal/usecase"
)

func runSimulate(cmd *cobra.Command, args []string) error {
	p, err := policy.NewRegistry().Resolve(policyID)
	if err != nil {
		return err
	}
	return simulate(cmd.InOrStdin(), cmd.OutOrStdout(), p, zap.NewNop())
}

// scriptObserver stands in for the OS recording-status broadcast.
type scriptObserver struct {
	failNext bool
	callback func(bool)
	next     domain.ObserverHandle
}

func (o *scriptObserver) Subscribe(cb func(bool)) (domain.ObserverHandle, error) {
	if o.failNext {
		o.failNext = false
		return 0, fmt.Errorf("%w: scripted failure", domain.ErrSubscriptionUnavailable)
	}
	o.next++
	o.callback = cb
	return o.next, nil
}

func (o *scriptObserver) Unsubscribe(domain.ObserverHandle) error {
	o.callback = nil
	return nil
}

// printSink prints every request it receives.
type printSink struct {
	out io.Writer
}

func (s *printSink) SetScreenshotBlocking(enabled bool) {
	fmt.Fprintf(s.out, "  -> %s=%s\n", domain.ActionScreenshotBlock, onOff(enabled))
}

func (s *printSink) SetBlurOverlay(enabled bool) {
	fmt.Fprintf(s.out, "  -> %s=%s\n", domain.ActionBlurOverlay, onOff(enabled))
}

// simulate feeds a line-oriented event script through a controller.
func simulate(in io.Reader, out io.Writer, p policy.ProtectionPolicy, logger *zap.Logger) error {
	observer := &scriptObserver{}
	controller := usecase.NewController(observer, &printSink{out: out}, p, logger)

	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fmt.Fprintf(out, "> %s\n", line)

		var err error
		switch fields := strings.Fields(strings.ToLower(line)); fields[0] {
		case "launch":
			err = controller.OnLaunch()
		case "activate":
			err = controller.OnActivate()
		case "resign":
			err = controller.OnResignActive()
		case "terminate":
			err = controller.OnTerminate()
		case "fail-subscribe":
			observer.failNext = true
		case "capture":
			if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
				return fmt.Errorf("line %d: expected 'capture on' or 'capture off'", lineNo)
			}
			capturing := fields[1] == "on"
			if observer.callback == nil {
				// A late delivery after release, or a reading in degraded mode
				err = controller.OnCaptureStatusChanged(capturing)
				break
			}
			observer.callback(capturing)
		default:
			return fmt.Errorf("line %d: unknown event %q", lineNo, fields[0])
		}
		if err != nil {
			fmt.Fprintf(out, "  ! %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	s := controller.Snapshot()
	fmt.Fprintf(out, "final: phase=%s capture=%s block=%s blur=%s degraded=%t\n",
		s.Phase, s.Capture, onOff(s.State.ScreenshotBlockEnabled), onOff(s.State.BlurEnabled), s.Degraded)
	return nil
}
