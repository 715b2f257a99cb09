package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/homeprice/engine/inference"
	"github.com/WessleyAI/homeprice/pkg/natsutil"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var natsURL string
	var subject string
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print prediction events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			if natsURL == "" {
				natsURL = cfg.NATSURL
			}
			if subject == "" {
				subject = cfg.PredictionSubject
			}
			if natsURL == "" {
				return usageError("watch needs --nats or NATS_URL")
			}

			nc, err := nats.Connect(natsURL, nats.Name("pricectl-watch"))
			if err != nil {
				return fmt.Errorf("nats connect: %w", err)
			}
			defer nc.Close()

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var mu sync.Mutex
			seen := 0
			out := cmd.OutOrStdout()
			sub, err := natsutil.Subscribe(nc, subject, func(_ context.Context, evt inference.PredictionEvent) {
				mu.Lock()
				defer mu.Unlock()
				if count > 0 && seen >= count {
					return
				}
				seen++
				if ctx.jsonFlag {
					_ = writeJSON(cmd, evt)
				} else {
					fmt.Fprintln(out, renderTable(
						[]string{"At", "ID", "Prediction", "Active features"},
						[][]string{{
							evt.At.Format(time.RFC3339),
							evt.ID,
							strconv.FormatFloat(evt.Prediction, 'f', 2, 64),
							strconv.Itoa(nonZeroFeatures(evt.Features)),
						}},
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
					))
				}
				if count > 0 && seen == count {
					cancel()
				}
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()
			if err := nc.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", subject)

			<-runCtx.Done()
			if cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats", "", "NATS server URL (overrides NATS_URL)")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject to subscribe to (overrides PREDICTION_SUBJECT)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many events (0 = run until interrupted)")
	return cmd
}

func nonZeroFeatures(features map[string]float64) int {
	n := 0
	for _, v := range features {
		if v != 0 {
			n++
		}
	}
	return n
}
