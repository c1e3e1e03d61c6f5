package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"wipe-go/internal/certdoc"
	"wipe-go/internal/wipe"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var eraseCmd = &cobra.Command{
	Use:   "erase PATH",
	Short: "Erase a drive and issue a certificate",
	Long: `Erase overwrites every block of the drive at PATH and, once the last
pass is verified, issues a sealed certificate of erasure.

  quick   one random pass
  secure  three passes (random, zero, random)

The erase only starts after confirmation: type DELETE at the prompt, or pass
--confirm DELETE or --yes. Ctrl-C cancels a running erase; the drive is then
partially overwritten and no certificate is issued.`,
	Args: cobra.ExactArgs(1),
	RunE: runErase,
}

func runErase(cmd *cobra.Command, args []string) error {
	methodName, _ := cmd.Flags().GetString("method")
	method, err := wipe.ParseEraseMethod(methodName)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")

	a, err := newApp(cmd.Context(), "Erase", args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	format, err := formatFlag(cmd, a.ExportFormat())
	if err != nil {
		return err
	}
	if output != "" && format == certdoc.FormatText {
		return fmt.Errorf("--output needs a json, yaml or toml format")
	}

	sess, err := a.StartWorkflow(args[0], overridesFromFlags(cmd))
	if err != nil {
		a.Fail()
		return err
	}
	if _, err := sess.SelectMethod(method); err != nil {
		a.Fail()
		return err
	}
	snap, err := sess.RequestErase()
	if err != nil {
		a.Fail()
		return err
	}

	fmt.Printf("Drive:  %s\n", snap.Drive.Summary())
	if snap.Drive.Model != "" || snap.Drive.Serial != "" {
		fmt.Printf("        %s %s\n", snap.Drive.Model, snap.Drive.Serial)
	}
	fmt.Printf("Method: %s (%s)\n", snap.Method, snap.Method.Description())
	fmt.Println("All data on this drive will be permanently destroyed.")

	decision, err := confirmation(cmd)
	if err != nil {
		sess.CancelConfirmation()
		a.Fail()
		return err
	}

	// From here on Ctrl-C cancels the erase instead of killing the process.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := newProgressPrinter(term.IsTerminal(int(os.Stdout.Fd())))
	unwatch := sess.Watch(progress.show)
	defer unwatch()

	if _, err := sess.SubmitConfirmation(decision); err != nil {
		sess.CancelConfirmation()
		a.Fail()
		return err
	}

	done := make(chan wipe.Snapshot, 1)
	go func() { done <- sess.Wait() }()

	select {
	case snap = <-done:
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "\nCancelling...")
		sess.CancelErase()
		snap = <-done
	}
	progress.finish()

	if snap.State != wipe.StateCompleted || snap.Certificate == nil {
		a.Fail()
		return fmt.Errorf("erase did not complete: %w", snap.Err)
	}

	cert := *snap.Certificate
	text, err := certdoc.Render(cert, certdoc.FormatText)
	if err != nil {
		return err
	}
	fmt.Println()
	os.Stdout.Write(text)

	if output != "" {
		doc, err := certdoc.Render(cert, format)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, doc, 0o644); err != nil {
			return fmt.Errorf("writing certificate: %w", err)
		}
		fmt.Printf("\nCertificate written to %s\n", output)
	}
	return nil
}

// confirmation builds the operator's decision from flags, or prompts for
// it when stdin is a terminal.
func confirmation(cmd *cobra.Command) (wipe.ConfirmationDecision, error) {
	typed, _ := cmd.Flags().GetString("confirm")
	yes, _ := cmd.Flags().GetBool("yes")
	if typed != "" || yes {
		return wipe.ConfirmationDecision{TypedText: typed, Acknowledged: yes}, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return wipe.ConfirmationDecision{}, fmt.Errorf("confirmation required: pass --confirm DELETE or --yes")
	}
	line, err := promptLine("Type DELETE to confirm: ")
	if err != nil {
		return wipe.ConfirmationDecision{}, err
	}
	return wipe.ConfirmationDecision{TypedText: line}, nil
}

// progressPrinter renders snapshots as a single updating line on a
// terminal, or one line per phase otherwise.
type progressPrinter struct {
	tty bool

	mu        sync.Mutex
	lastPhase int
	lastLine  string
	printed   bool
}

func newProgressPrinter(tty bool) *progressPrinter {
	return &progressPrinter{tty: tty, lastPhase: -1}
}

func (p *progressPrinter) show(snap wipe.Snapshot) {
	if snap.Progress == nil || snap.State != wipe.StateErasing {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	st := snap.Progress
	if !p.tty {
		if st.PhaseIndex != p.lastPhase {
			fmt.Printf("%3.0f%%  %s\n", st.Percent, st.PhaseLabel)
			p.lastPhase = st.PhaseIndex
		}
		return
	}

	const width = 30
	filled := int(st.Percent / 100 * width)
	line := fmt.Sprintf("[%s%s] %3.0f%%  %s", strings.Repeat("#", filled), strings.Repeat(".", width-filled), st.Percent, st.PhaseLabel)
	if line == p.lastLine {
		return
	}
	fmt.Printf("\r%-80s", line)
	p.lastLine = line
	p.printed = true
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		fmt.Println()
	}
}
