package dock

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/promptdock/fault"
	"github.com/hazyhaar/promptdock/insert"
	"github.com/hazyhaar/promptdock/kit"
	"github.com/hazyhaar/promptdock/library"
	"github.com/hazyhaar/promptdock/shield"
	"github.com/hazyhaar/promptdock/site"
)

// Handler returns the local HTTP API.
func (d *Dock) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(d.logger) {
		r.Use(mw)
	}
	d.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the API routes on r.
func (d *Dock) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "composers": len(d.Composers())})
	})

	r.Get("/composers", d.endpoint("list_composers", func(ctx context.Context, _ *http.Request) (any, error) {
		return d.View(), nil
	}))
	r.Post("/insert", d.endpoint("insert", d.handleInsert))

	r.Route("/prompts", func(r chi.Router) {
		r.Get("/", d.endpoint("list_prompts", func(ctx context.Context, req *http.Request) (any, error) {
			if req.URL.Query().Get("recommended") == "1" {
				return d.lib.Recommend(ctx)
			}
			return d.lib.Search(ctx, req.URL.Query().Get("q"))
		}))
		r.Post("/", d.endpoint("save_prompt", func(ctx context.Context, req *http.Request) (any, error) {
			var p library.Prompt
			if err := decode(req, &p); err != nil {
				return nil, err
			}
			return d.lib.SavePrompt(ctx, &p)
		}))
		r.Get("/{id}", d.endpoint("get_prompt", func(ctx context.Context, req *http.Request) (any, error) {
			return d.lib.GetPrompt(ctx, chi.URLParam(req, "id"))
		}))
		r.Delete("/{id}", d.endpoint("delete_prompt", func(ctx context.Context, req *http.Request) (any, error) {
			id := chi.URLParam(req, "id")
			if err := d.lib.DeletePrompt(ctx, id); err != nil {
				return nil, err
			}
			return map[string]string{"deleted": id}, nil
		}))
	})

	r.Route("/sites", func(r chi.Router) {
		r.Get("/", d.endpoint("list_sites", func(ctx context.Context, _ *http.Request) (any, error) {
			return d.siteViews(), nil
		}))
		r.Post("/", d.endpoint("add_site", d.handleAddSite))
	})
}

type insertBody struct {
	PromptID   string            `json:"prompt_id,omitempty"`
	Text       string            `json:"text,omitempty"`
	Mode       string            `json:"mode,omitempty"`
	ComposerID int64             `json:"composer_id,omitempty"`
	Values     map[string]string `json:"values,omitempty"`
}

func (d *Dock) handleInsert(ctx context.Context, req *http.Request) (any, error) {
	var b insertBody
	if err := decode(req, &b); err != nil {
		return nil, err
	}
	if (b.PromptID == "") == (b.Text == "") {
		return nil, badRequest("exactly one of prompt_id and text is required")
	}
	c, err := d.target(ctx, b.ComposerID)
	if err != nil {
		return nil, err
	}
	if b.PromptID != "" {
		if b.Mode != "" {
			return nil, badRequest("mode applies to text insertions only")
		}
		err = d.InsertPrompt(ctx, c, b.PromptID, library.StaticValues(b.Values))
	} else {
		var mode insert.Mode
		if b.Mode != "" {
			if mode, err = insert.ParseMode(b.Mode); err != nil {
				return nil, err
			}
		}
		err = d.InsertText(c, b.Text, mode)
	}
	if err != nil {
		return nil, err
	}
	return viewOf(c, true), nil
}

type siteView struct {
	ID        string   `json:"id"`
	Pattern   string   `json:"match_pattern,omitempty"`
	Selectors []string `json:"input_selectors"`
	Strategy  string   `json:"strategy,omitempty"`
}

func (d *Dock) siteViews() []siteView {
	ps := d.registry.Profiles()
	out := make([]siteView, 0, len(ps))
	for _, p := range ps {
		out = append(out, siteView{ID: p.ID, Pattern: p.Pattern, Selectors: p.Selectors, Strategy: string(p.Strategy)})
	}
	return out
}

// handleAddSite stores the descriptor and registers it on the live page,
// then rescans.
func (d *Dock) handleAddSite(ctx context.Context, req *http.Request) (any, error) {
	var desc site.Descriptor
	if err := decode(req, &desc); err != nil {
		return nil, err
	}
	if desc.ID != "" && d.registry.Get(desc.ID) != nil {
		return nil, fault.Config(fault.KindSite, desc.ID, "duplicate id")
	}
	saved, err := d.lib.AddSite(ctx, desc)
	if err != nil {
		return nil, err
	}
	if _, err := d.registry.RegisterCustom(saved); err != nil {
		return nil, err
	}
	d.Detect()
	return saved, nil
}

// --- plumbing ---

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func badRequest(msg string) error { return badRequestError(msg) }

func decode(req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}

// endpoint adapts a handler to kit.Endpoint, so HTTP calls are logged
// like MCP calls, and maps errors to status codes.
func (d *Dock) endpoint(op string, h func(context.Context, *http.Request) (any, error)) http.HandlerFunc {
	ep := kit.Logging(d.logger, op)(func(ctx context.Context, req any) (any, error) {
		return h(ctx, req.(*http.Request))
	})
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := ep(r.Context(), r)
		if err != nil {
			status := statusOf(err)
			if status >= 500 {
				shield.GetLogger(r.Context()).Error("dock: request failed", "op", op, "error", err)
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func statusOf(err error) int {
	var bad badRequestError
	var unknown *UnknownComposerError
	var missing *library.MissingVariableError
	switch {
	case errors.As(err, &bad), errors.As(err, &missing),
		errors.Is(err, fault.ErrConfig), errors.Is(err, library.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrNotFound), errors.As(err, &unknown):
		return http.StatusNotFound
	case errors.Is(err, ErrNoComposer), errors.Is(err, fault.ErrStaleTarget):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// ListenAndServe serves Handler on addr until ctx ends.
func (d *Dock) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: d.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	d.logger.Info("dock: http listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		srv.Shutdown(context.Background())
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
