package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ttseval/internal/storage"
	"ttseval/internal/tts"
	"ttseval/internal/workbook"
)

// transport is what generate needs from a connection beyond tts.Transport.
type transport interface {
	tts.Transport
	Close() error
}

func newGenerateCommand(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Synthesize audio for every workbook item",
		Long:  "Sends every row of every sheet to the TTS socket server and writes the returned WAV files under the audio directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.generate(cmd, dryRun)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", false, "Answer requests locally with silent audio instead of contacting the server")
	flags.String("audio-dir", a.v.GetString("audio_dir"), "Directory receiving <sheet>/<item>.wav")
	flags.String("tts-url", a.v.GetString("tts_url"), "TTS Socket.IO server URL")
	flags.String("model", a.v.GetString("tts_model"), "TTS model name")
	flags.Int("speaker", a.v.GetInt("tts_speaker"), "TTS speaker index")
	flags.Duration("interval", a.v.GetDuration("tts_interval"), "Delay between requests")
	flags.Duration("timeout", a.v.GetDuration("tts_timeout"), "How long to wait for all results")
	flags.Bool("insecure", a.v.GetBool("tts_insecure_skip_verify"), "Skip TLS certificate verification")

	for key, name := range map[string]string{
		"audio_dir":                "audio-dir",
		"tts_url":                  "tts-url",
		"tts_model":                "model",
		"tts_speaker":              "speaker",
		"tts_interval":             "interval",
		"tts_timeout":              "timeout",
		"tts_insecure_skip_verify": "insecure",
	} {
		cobra.CheckErr(a.v.BindPFlag(key, flags.Lookup(name)))
	}

	return cmd
}

func (a *app) generate(cmd *cobra.Command, dryRun bool) error {
	ctx := cmd.Context()
	cfg := a.cfg

	wb, err := workbook.Open(cfg.WorkbookPath)
	if err != nil {
		return err
	}

	jobs := tts.CollectJobs(a.logger, wb)
	if len(jobs) == 0 {
		a.logger.Info("no items to synthesize")
		return nil
	}

	sink := storage.NewAudioDir(cfg.AudioDir)
	session := tts.NewSession(a.logger, sink, jobs, tts.Options{
		Model:        cfg.TTSModel,
		Speaker:      cfg.TTSSpeaker,
		Interval:     cfg.TTSInterval,
		Timeout:      cfg.TTSTimeout,
		PollInterval: cfg.TTSPollInterval,
	})

	var conn transport
	if dryRun {
		a.logger.Info("dry run: using local stub server")
		conn = tts.NewStubClient(session.HandleEvent)
	} else {
		client, err := tts.Dial(ctx, a.logger, cfg.TTSURL, session.HandleEvent, tts.DialOptions{
			InsecureSkipVerify: cfg.TTSInsecureSkipVerify,
		})
		if err != nil {
			return fmt.Errorf("connect to %s: %w", cfg.TTSURL, err)
		}
		conn = client
	}

	summary, runErr := session.Run(ctx, conn)
	closeErr := conn.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: requests %d, results %d, failed %d, unknown %d, timed out %t\n",
		summary.RunID, summary.Submitted, summary.Completed, summary.Failed, summary.Unknown, summary.TimedOut)

	return errors.Join(runErr, closeErr)
}
