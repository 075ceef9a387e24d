package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/moyoez/pairdrop-go/session"
	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/transfer"
	"github.com/moyoez/pairdrop-go/types"
)

// statePrinter logs state changes for the one-shot CLI.
type statePrinter struct {
	last session.Snapshot
}

func newStatePrinter() *statePrinter {
	return &statePrinter{}
}

func (p *statePrinter) OnSnapshot(s session.Snapshot) {
	if s.State == p.last.State && s.Progress == p.last.Progress && s.Error == p.last.Error {
		p.last = s
		return
	}
	p.last = s
	switch {
	case s.Error != "":
		tool.DefaultLogger.Infof("State: %s (%s)", s.State, s.Error)
	case s.State == session.StateTransferring:
		tool.DefaultLogger.Infof("State: %s %d%%", s.State, s.Progress)
	default:
		tool.DefaultLogger.Infof("State: %s", s.State)
	}
}

// waitFor polls the client until done reports true or ctx ends.
func waitFor(ctx context.Context, client *session.Client, done func(session.Snapshot) bool) (session.Snapshot, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		s := client.Snapshot()
		if done(s) {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-client.Done():
			return client.Snapshot(), session.ErrClosed
		case <-ticker.C:
		}
	}
}

// runOnce pairs with -code/-qr, sends -file if given and then stays paired until interrupted.
func runOnce(ctx context.Context, client *session.Client, remote *transfer.Client, cfg types.Config) int {
	code, token := cfg.Code, cfg.Token
	if cfg.QRPayload != "" {
		var err error
		code, token, err = tool.ParsePairingPayload(cfg.QRPayload)
		if err != nil {
			tool.DefaultLogger.Errorf("The QR code does not contain a valid 6-digit code.")
			return 2
		}
		if token == "" {
			token = cfg.Token
		}
	}
	if code == "" {
		tool.DefaultLogger.Errorf("Nothing to do: pass -code, -qr or -serve")
		return 2
	}

	var err error
	if cfg.UseRestValidate {
		if remote == nil {
			tool.DefaultLogger.Errorf("-useRestValidate needs apiBase in config or -useApiBase")
			return 2
		}
		remote.Token = token
		var validated *types.ValidateCodeResponse
		validated, err = remote.ValidateCode(ctx, code)
		if err != nil {
			tool.DefaultLogger.Errorf("%v", err)
			return 1
		}
		if validated.Token == "" {
			validated.Token = token
		}
		err = client.SubmitValidated(code, *validated)
	} else {
		err = client.SubmitCode(code, token)
	}
	if err != nil {
		tool.DefaultLogger.Errorf("%s", session.UserMessage(err))
		return 2
	}

	snap, err := waitFor(ctx, client, func(s session.Snapshot) bool {
		return s.State == session.StateConnected || (s.State == session.StateInput && s.Error != "")
	})
	if err != nil {
		return 1
	}
	if snap.State != session.StateConnected {
		tool.DefaultLogger.Errorf("Pairing failed: %s", snap.Error)
		return 1
	}
	tool.DefaultLogger.Infof("Paired with session %s", snap.SessionId)

	if cfg.File == "" {
		tool.DefaultLogger.Info("No -file given, staying paired until interrupted")
		<-ctx.Done()
		return 0
	}

	f, err := tool.OpenLocalFile(cfg.File)
	if err != nil {
		tool.DefaultLogger.Errorf("%v", err)
		return 2
	}
	if err := client.ChooseFile(f); err != nil {
		tool.DefaultLogger.Errorf("%s", session.UserMessage(err))
		return 2
	}
	if err := client.Send(); err != nil {
		tool.DefaultLogger.Errorf("%s", session.UserMessage(err))
		return 1
	}

	snap, err = waitFor(ctx, client, func(s session.Snapshot) bool {
		return s.State == session.StateCompleted || s.State == session.StateError
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_ = client.CancelTransfer()
		}
		return 1
	}
	if snap.State == session.StateError {
		tool.DefaultLogger.Errorf("Transfer failed: %s", snap.Error)
		return 1
	}
	tool.DefaultLogger.Infof("Sent %s (%s)", f.Name(), snap.FileId)
	return 0
}

// runGenerate asks the REST API for a new code and prints it with a scannable QR.
func runGenerate(ctx context.Context, apiBase, token string) int {
	if apiBase == "" {
		tool.DefaultLogger.Errorf("-generate needs apiBase in config or -useApiBase")
		return 2
	}
	resp, err := transfer.NewClient(apiBase, token).GenerateCode(ctx)
	if err != nil {
		tool.DefaultLogger.Errorf("%v", err)
		return 1
	}

	q, err := qrcode.New(tool.BuildPairingPayload(resp.Code, token), qrcode.Medium)
	if err != nil {
		tool.DefaultLogger.Errorf("Failed to encode QR code: %v", err)
		return 1
	}
	fmt.Println(renderQR(q.Bitmap()))
	fmt.Printf("Code: %s\nSession: %s\nExpires: %s\n", resp.Code, resp.SessionId, resp.ExpiresAt)
	return 0
}

// renderQR draws two bitmap rows per text line with half blocks.
func renderQR(bitmap [][]bool) string {
	var b strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteRune(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func runProbe(endpoint string) int {
	host, err := tool.SocketHost(endpoint)
	if err != nil {
		tool.DefaultLogger.Errorf("%v", err)
		return 2
	}
	if !tool.QuickICMPProbe(host, time.Second) {
		tool.DefaultLogger.Warnf("%s did not answer a quick ICMP probe, measuring anyway", host)
	}
	stats, err := tool.ProbeHost(host, 3, 3*time.Second)
	if err != nil {
		tool.DefaultLogger.Errorf("%v", err)
		return 1
	}
	tool.DefaultLogger.Infof("%s (%s): %d/%d replies, avg rtt %s, loss %.0f%%",
		host, stats.IPAddr, stats.PacketsRecv, stats.PacketsSent, stats.AvgRtt, stats.PacketLoss)
	if stats.PacketsRecv == 0 {
		return 1
	}
	return 0
}
