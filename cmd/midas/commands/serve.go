package commands

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"midas/internal/agents"
	"midas/internal/join"
	"midas/internal/model"
	"midas/internal/outbound"
	"midas/internal/status"
	"midas/lib/configutil"
	"midas/lib/security"
	"midas/lib/serviceutil"
	"midas/lib/telemetry"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the asynchronous join callback listener.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config](*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		telemetry.InstrumentPerfStats(cmd.Context())

		provider := cfg.provider()
		coordinator := join.NewCoordinator(
			outbound.NewPipeline(cfg.gate(), nil, cfg.hooks()),
			join.NewHTTPConsentSink(cfg.ConsentURL, nil),
			join.NewHTTPStatusPublisher(cfg.StatusURL, nil),
		)

		mux := http.NewServeMux()
		mux.HandleFunc("POST /join/callback/{merchant}", func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			slug := r.PathValue("merchant")

			merchant, err := provider.Merchant(ctx, slug, model.JourneyJoin)
			if err != nil {
				slog.ErrorContext(ctx, "unknown callback merchant", "merchant", slug, "err", err)
				writeResult(w, http.StatusNotFound, false)
				return
			}

			recordID := r.URL.Query().Get("record_uid")
			negotiator, err := security.New(merchant.Security, security.Deps{RecordID: recordID})
			if err != nil {
				slog.ErrorContext(ctx, "bad merchant security config", "merchant", slug, "err", err)
				writeResult(w, http.StatusInternalServerError, false)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeResult(w, http.StatusBadRequest, false)
				return
			}

			_, err = coordinator.HandleCallback(ctx, join.Request{
				Envelope: outbound.Envelope{
					MessageID: r.URL.Query().Get("message_uid"),
					RecordID:  recordID,
					Journey:   model.JourneyJoin,
				},
				Credentials: map[string]any{},
				Merchant:    merchant,
				Negotiator:  negotiator,
				Errors:      agents.ErrorMapFor(slug),
			}, join.Callback{Headers: r.Header, Body: body})
			if err != nil {
				slog.WarnContext(ctx, "callback processing failed", "merchant", slug, "err", err)
				if status.KindOf(err) == status.KindValidation {
					writeResult(w, http.StatusBadRequest, false)
				} else {
					writeResult(w, http.StatusInternalServerError, false)
				}
				return
			}
			writeResult(w, http.StatusOK, true)
		})

		port := cfg.Port
		if port == 0 {
			port = 8090
		}
		serviceutil.StartHttpServer(port, mux)
	},
}

func writeResult(w http.ResponseWriter, code int, success bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]bool{"success": success})
}
