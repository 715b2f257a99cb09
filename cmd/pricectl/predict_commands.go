package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/WessleyAI/homeprice/engine/artifact"
	"github.com/WessleyAI/homeprice/engine/domain"
	"github.com/WessleyAI/homeprice/engine/encoder"
	"github.com/WessleyAI/homeprice/engine/inference"
	"github.com/WessleyAI/homeprice/engine/mlclient"
)

// parseAssignments turns key=value arguments into form input.
func parseAssignments(args []string) (domain.RawInput, error) {
	raw := make(domain.RawInput, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usageError("expected field=value, got %q", arg)
		}
		raw[key] = value
	}
	return raw, nil
}

// readInput merges a JSON object from --input (or "-" for stdin) with the
// key=value arguments; arguments win.
func readInput(cmd *cobra.Command, inputPath string, args []string) (domain.RawInput, error) {
	raw := domain.RawInput{}
	if inputPath != "" {
		var r io.Reader = cmd.InOrStdin()
		if inputPath != "-" {
			f, err := os.Open(inputPath)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		dec := json.NewDecoder(r)
		dec.UseNumber()
		var body map[string]any
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		for k, v := range body {
			switch v := v.(type) {
			case nil:
			case string:
				raw[k] = v
			case json.Number:
				raw[k] = v.String()
			default:
				return nil, fmt.Errorf("decode input: field %q must be a string or number", k)
			}
		}
	}
	fromArgs, err := parseAssignments(args)
	if err != nil {
		return nil, err
	}
	for k, v := range fromArgs {
		raw[k] = v
	}
	return raw, nil
}

func describeFieldErrors(err error) error {
	fields := domain.ValidationErrors(err)
	if len(fields) == 0 {
		return err
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s=%q", f.Field, f.Value)
	}
	return fmt.Errorf("invalid numeric input: %s: %w", strings.Join(parts, ", "), err)
}

func printFallbacks(w io.Writer, report encoder.Report) {
	for _, f := range report.Fallbacks {
		fmt.Fprintf(w, "warning: %s %q not recognised, encoded as 0\n", f.Field, f.Label)
	}
	if report.LocationDropped {
		fmt.Fprintf(w, "warning: %s is not a known location feature, dropped\n", report.Location)
	}
}

func vectorRows(v *domain.FeatureVector) [][]string {
	names := v.Schema().Names()
	values := v.Values()
	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name, strconv.FormatFloat(values[i], 'f', -1, 64)}
	}
	return rows
}

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var inputPath string
	var nonZero bool

	cmd := &cobra.Command{
		Use:   "encode [field=value ...]",
		Short: "Encode form input into the model feature vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, inputPath, args)
			if err != nil {
				return err
			}
			paths, err := ctx.paths()
			if err != nil {
				return err
			}
			schema, err := artifact.LoadSchema(paths.Schema)
			if err != nil {
				return err
			}
			vec, report, err := encoder.EncodeDetailed(raw, schema)
			if err != nil {
				return describeFieldErrors(err)
			}
			printFallbacks(cmd.ErrOrStderr(), report)

			if ctx.jsonFlag {
				return writeJSON(cmd, map[string]any{"features": vec.Map(), "values": vec.Values(), "report": report})
			}
			rows := vectorRows(vec)
			if nonZero {
				filtered := rows[:0]
				for _, r := range rows {
					if r[1] != "0" {
						filtered = append(filtered, r)
					}
				}
				rows = filtered
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Feature", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "JSON object of fields to read (- for stdin)")
	cmd.Flags().BoolVar(&nonZero, "non-zero", false, "Only show features with a non-zero value")
	return cmd
}

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var inputPath string
	var remote string

	cmd := &cobra.Command{
		Use:   "predict [field=value ...]",
		Short: "Predict a price locally or through the ml-worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, inputPath, args)
			if err != nil {
				return err
			}
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			paths, err := ctx.paths()
			if err != nil {
				return err
			}
			logger := ctx.logger(cmd.ErrOrStderr())
			if remote == "" {
				remote = cfg.MLWorkerURL
			}

			var svc *inference.Service
			if remote == "" {
				bundle, err := artifact.LoadFiles(paths)
				if err != nil {
					return err
				}
				svc = inference.FromBundle(bundle, inference.DefaultOptions(), logger)
			} else {
				schema, err := artifact.LoadSchema(paths.Schema)
				if err != nil {
					return err
				}
				opts := mlclient.DefaultOptions()
				opts.Timeout = cfg.MLWorkerTimeout
				client, err := mlclient.Dial(remote, opts, logger)
				if err != nil {
					return err
				}
				defer client.Close()
				svc = inference.New(schema, client, client, inference.DefaultOptions(), logger)
			}

			p, err := svc.Predict(cmd.Context(), raw)
			if err != nil {
				return describeFieldErrors(err)
			}
			printFallbacks(cmd.ErrOrStderr(), p.Report)

			if ctx.jsonFlag {
				return writeJSON(cmd, map[string]any{
					"id":             p.ID,
					"prediction":     p.Rounded,
					"raw_prediction": p.Value,
					"features":       p.Vector.Map(),
				})
			}
			printer := message.NewPrinter(language.Make(cfg.DisplayLocale))
			fmt.Fprintln(cmd.OutOrStdout(), printer.Sprintf("Predicted price: %.2f", p.Rounded))
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "JSON object of fields to read (- for stdin)")
	cmd.Flags().StringVar(&remote, "remote", "", "ml-worker address (overrides ML_WORKER_URL)")
	return cmd
}
