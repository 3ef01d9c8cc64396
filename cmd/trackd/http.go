package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier"
	"github.com/mitchellmoss/package-tracker/internal/registry"
	"github.com/mitchellmoss/package-tracker/internal/scheduler"
	"github.com/mitchellmoss/package-tracker/internal/webhook"
	"github.com/pkg/errors"
)

type httpOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	ingestor  *webhook.Ingestor
	carriers  *carrier.Selector
}

type addPackageRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier,omitempty"`
	Note           string `json:"note,omitempty"`
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

type noteRequest struct {
	Note string `json:"note"`
}

func runHTTPServer(ctx context.Context, opts httpOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, opts.scheduler.Stats())
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		opts.scheduler.Trigger()
		writeJSON(w, http.StatusOK, map[string]bool{"triggered": true})
	})

	r.Route("/v1/packages", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, opts.registry.List())
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req addPackageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			// Catch typo'd carriers here; a package with an unknown
			// carrier could only ever fail its updates.
			if req.Carrier != "" && !opts.carriers.Known(req.Carrier) {
				writeError(w, http.StatusBadRequest,
					errors.Errorf("unknown carrier %q", req.Carrier))
				return
			}
			p, err := opts.registry.Add(req.TrackingNumber, req.Carrier, req.Note)
			if err != nil {
				if errors.Is(err, registry.ErrDuplicateTracking) {
					writeError(w, http.StatusConflict, err)
					return
				}
				writeError(w, http.StatusBadRequest, err)
				return
			}
			opts.registry.SaveBestEffort(r.Context())
			// New packages are immediately eligible; no need to wait for
			// the next refresh pass.
			opts.scheduler.ScheduleUpdate(p.TrackingNumber)
			writeJSON(w, http.StatusCreated, p)
		})

		r.Route("/{trackingNumber}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				p, ok := opts.registry.Get(chi.URLParam(r, "trackingNumber"))
				if !ok {
					writeError(w, http.StatusNotFound, registry.ErrUnknownTracking)
					return
				}
				writeJSON(w, http.StatusOK, p)
			})

			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				trackingNumber := chi.URLParam(r, "trackingNumber")
				opts.registry.Remove(trackingNumber)
				opts.scheduler.Forget(trackingNumber)
				opts.registry.SaveBestEffort(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/refresh", func(w http.ResponseWriter, r *http.Request) {
				queued := opts.scheduler.RefreshNow(chi.URLParam(r, "trackingNumber"))
				if !queued {
					if _, ok := opts.registry.Get(chi.URLParam(r, "trackingNumber")); !ok {
						writeError(w, http.StatusNotFound, registry.ErrUnknownTracking)
						return
					}
					// Already queued or in flight; that's fine.
				}
				writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
			})

			r.Post("/archive", func(w http.ResponseWriter, r *http.Request) {
				var req archiveRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				if err := opts.registry.SetArchived(chi.URLParam(r, "trackingNumber"), req.Archived); err != nil {
					writeError(w, http.StatusNotFound, err)
					return
				}
				opts.registry.SaveBestEffort(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			r.Put("/note", func(w http.ResponseWriter, r *http.Request) {
				var req noteRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				if err := opts.registry.SetNote(chi.URLParam(r, "trackingNumber"), req.Note); err != nil {
					writeError(w, http.StatusNotFound, err)
					return
				}
				opts.registry.SaveBestEffort(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})

	r.Post("/v1/webhooks/shippo", func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := opts.ingestor.Ingest(ev); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		opts.registry.SaveBestEffort(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
